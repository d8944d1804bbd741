package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"github.com/secmon-lab/zatsugaku/pkg/utils/errutil"
	"github.com/secmon-lab/zatsugaku/pkg/utils/logging"
	"github.com/secmon-lab/zatsugaku/pkg/utils/safe"
)

// maxBodySize bounds request bodies; an entry is at most 10,000 characters
const maxBodySize = 1 << 20

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type dataResponse[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		_ = errutil.Handle(ctx, goerr.Wrap(err, "failed to marshal response"), "failed to write response")
		http.Error(w, `{"success":false,"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(ctx, w, data)
}

func writeData[T any](ctx context.Context, w http.ResponseWriter, data T) {
	writeJSON(ctx, w, http.StatusOK, dataResponse[T]{Success: true, Data: data})
}

// statusOf maps domain sentinels to HTTP status codes and client messages
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrDimensionMismatch):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, model.ErrEntryNotFound):
		return http.StatusNotFound, "entry not found"
	case errors.Is(err, model.ErrTagNotFound):
		return http.StatusNotFound, "tag not found"
	case errors.Is(err, model.ErrDuplicateTag):
		return http.StatusConflict, "tag already exists"
	case errors.Is(err, model.ErrProviderTimeout):
		return http.StatusGatewayTimeout, "embedding provider timed out"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// writeError logs err with its goerr context and writes a generic message.
// Internal error text never reaches the client.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, msg := statusOf(err)
	writeErrorMessage(ctx, w, err, status, msg)
}

func writeErrorMessage(ctx context.Context, w http.ResponseWriter, err error, status int, msg string) {
	if status >= http.StatusInternalServerError {
		_ = errutil.Handle(ctx, err, "request failed", "status", status)
	} else {
		logging.From(ctx).Warn("request rejected", append([]any{"status", status}, errutil.Attrs(err)...)...)
	}

	writeJSON(ctx, w, status, errorResponse{Success: false, Error: msg})
}

// decodeJSON reads a JSON body into dst. Any failure is a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	data, err := io.ReadAll(body)
	if err != nil {
		return goerr.Wrap(model.ErrValidation, "failed to read request body", goerr.V("cause", err.Error()))
	}
	if len(data) == 0 {
		return goerr.Wrap(model.ErrValidation, "request body is required")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return goerr.Wrap(model.ErrValidation, "malformed request body", goerr.V("cause", err.Error()))
	}
	return nil
}
