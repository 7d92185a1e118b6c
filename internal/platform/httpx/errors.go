package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/ledger-core/internal/shared"
)

// RespondError maps the shared error taxonomy to RFC7807 responses. Details of
// internal failures are logged, never returned.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *shared.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteProblem(w, ProblemDetail{
			Type:   "/problems/validation",
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
			Errors: verr.Fields,
		})
	case errors.Is(err, shared.ErrValidation):
		problem(w, "validation", http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		problem(w, "not-found", http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		problem(w, "conflict", http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrInsufficientStock):
		problem(w, "insufficient-stock", http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrInvalidTransfer):
		problem(w, "invalid-transfer", http.StatusUnprocessableEntity, "Invalid Transfer", err.Error())
	case errors.Is(err, shared.ErrUnbalancedPosting):
		logError(r, logger, "unbalanced posting reached the edge", err)
		problem(w, "unbalanced-posting", http.StatusInternalServerError, "Unbalanced Posting", "")
	default:
		logError(r, logger, "request failed", err)
		problem(w, "internal", http.StatusInternalServerError, "Internal Error", "")
	}
}

// BadRequest writes a 400 problem for malformed requests.
func BadRequest(w http.ResponseWriter, detail string) {
	problem(w, "bad-request", http.StatusBadRequest, "Bad Request", detail)
}

func problem(w http.ResponseWriter, kind string, status int, title, detail string) {
	WriteProblem(w, ProblemDetail{Type: "/problems/" + kind, Title: title, Status: status, Detail: detail})
}

func logError(r *http.Request, logger *slog.Logger, msg string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{slog.Any("error", err)}
	if r != nil {
		attrs = append(attrs, slog.String("method", r.Method), slog.String("path", r.URL.Path))
	}
	logger.Error(msg, attrs...)
}
