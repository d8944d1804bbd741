package errutil

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/utils/logging"
)

// Handle logs err with msg, attaching goerr values and stack when available.
// It returns err unchanged so callers can keep propagating it.
func Handle(ctx context.Context, err error, msg string, attrs ...any) error {
	if err == nil {
		return nil
	}

	logging.From(ctx).Error(msg, append(attrs, Attrs(err)...)...)
	return err
}

// Attrs returns slog key/value pairs describing err
func Attrs(err error) []any {
	attrs := []any{slog.String("error", err.Error())}

	var ge *goerr.Error
	if errors.As(err, &ge) {
		attrs = append(attrs,
			slog.Any("values", ge.Values()),
			slog.Any("stack", ge.Stacks()),
		)
	}
	return attrs
}
