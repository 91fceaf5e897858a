package fivetran

import (
	"context"
	"log/slog"
)

// Runner executes one connector sync and returns the success envelope.
type Runner interface {
	Run(ctx context.Context, req Request) (*SuccessResponse, error)
}

// Handler is the single top-level error boundary of an invocation.
type Handler struct {
	runner Runner
	log    *slog.Logger
}

// NewHandler creates a handler that delegates sync runs to runner.
func NewHandler(runner Runner, log *slog.Logger) *Handler {
	return &Handler{runner: runner, log: log}
}

// Invoke runs one sync and converts any failure into the platform's error
// envelope. Errors are caught nowhere below this; the caller always receives
// either a fully populated success envelope or a single error message.
func (h *Handler) Invoke(ctx context.Context, req Request) any {
	resp, err := h.runner.Run(ctx, req)
	if err != nil {
		h.log.Error("sync failed", "sync_id", req.SyncID, "error", err)
		return ErrorResponse{ErrorMessage: err.Error()}
	}
	return resp
}
