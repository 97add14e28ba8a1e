package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
)

// Problem — тело ответа об ошибке в формате application/problem+json.
type Problem struct {
	Status int                `json:"status"`
	Detail string             `json:"detail"`
	Errors []domain.Violation `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, problem Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

// writeError сопоставляет доменную ошибку со статусом; детали внутренних ошибок только логируются.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if violations, ok := domain.AsViolations(err); ok {
		writeViolations(w, violations)
		return
	}

	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		writeProblem(w, Problem{Status: http.StatusNotFound, Detail: domain.ErrOrderNotFound.Error()})
	case errors.Is(err, domain.ErrOrderExists):
		writeProblem(w, Problem{Status: http.StatusConflict, Detail: domain.ErrOrderExists.Error()})
	case errors.Is(err, domain.ErrInvalidSeedCount), errors.Is(err, domain.ErrMalformedInput):
		writeProblem(w, Problem{Status: http.StatusBadRequest, Detail: err.Error()})
	case errors.Is(err, context.Canceled):
		// клиент ушёл, отвечать некому
		h.logger.WithField("path", r.URL.Path).Debug("request canceled by client")
	default:
		h.logger.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("order request failed")
		writeProblem(w, Problem{Status: http.StatusInternalServerError, Detail: http.StatusText(http.StatusInternalServerError)})
	}
}

func writeViolations(w http.ResponseWriter, violations []domain.Violation) {
	writeProblem(w, Problem{Status: http.StatusBadRequest, Detail: "ValidationError", Errors: violations})
}
