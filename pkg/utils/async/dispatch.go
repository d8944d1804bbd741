package async

import (
	"context"

	"github.com/secmon-lab/zatsugaku/pkg/utils/errutil"
	"github.com/secmon-lab/zatsugaku/pkg/utils/logging"
)

// Dispatch runs handler in a new goroutine with a background context.
// The request logger is carried over; errors and panics are logged.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	bgCtx := logging.With(context.Background(), logging.From(ctx))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.From(bgCtx).Error("panic in async handler", "panic", r)
			}
		}()

		if err := handler(bgCtx); err != nil {
			_ = errutil.Handle(bgCtx, err, "async handler failed")
		}
	}()
}
