package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model/auth"
)

// Context keys for error values
const (
	PageKey      = "page"
	PerPageKey   = "per_page"
	LimitKey     = "limit"
	ThresholdKey = "threshold"
)

// storeError keeps domain sentinels from the repository intact and marks
// anything else as a persistence failure
func storeError(err error, msg string, opts ...goerr.Option) error {
	switch {
	case errors.Is(err, model.ErrEntryNotFound),
		errors.Is(err, model.ErrTagNotFound),
		errors.Is(err, model.ErrDuplicateTag),
		errors.Is(err, model.ErrStore):
		return goerr.Wrap(err, msg, opts...)
	default:
		return goerr.Wrap(errors.Join(model.ErrStore, err), msg, opts...)
	}
}

// checkEntryID reports a malformed ID as a missing entry
func checkEntryID(id model.EntryID) error {
	if !id.IsValid() {
		return goerr.Wrap(model.ErrEntryNotFound, "entry not found", goerr.V(model.EntryIDKey, id))
	}
	return nil
}

// checkTagID reports a malformed ID as a missing tag
func checkTagID(id model.TagID) error {
	if !id.IsValid() {
		return goerr.Wrap(model.ErrTagNotFound, "tag not found", goerr.V(model.TagIDKey, id))
	}
	return nil
}

// requireUser returns the authenticated user or ErrUnauthorized
func requireUser(ctx context.Context) (*auth.User, error) {
	user, ok := auth.UserFromContext(ctx)
	if !ok || user.Sub == "" {
		return nil, goerr.Wrap(model.ErrUnauthorized, "authentication required")
	}
	if user.IsExpired() {
		return nil, goerr.Wrap(model.ErrUnauthorized, "credential expired", goerr.V("sub", user.Sub))
	}
	return user, nil
}
