package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"nestling/internal/models"
)

type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor maps engine error kinds to HTTP status codes.
func statusFor(err error) int {
	var me *models.Error
	if !errors.As(err, &me) {
		return http.StatusInternalServerError
	}
	switch me.Kind {
	case models.FetchFailed, models.DeleteFailed, models.RestoreFailed:
		return http.StatusBadGateway
	case models.UndoExpired:
		return http.StatusGone
	case models.NothingToUndo:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	requestID := middleware.GetReqID(r.Context())
	body := errorBody{Error: err.Error(), RequestID: requestID}

	var me *models.Error
	if errors.As(err, &me) {
		body.Kind = string(me.Kind)
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("requestId", requestID),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		if status == http.StatusInternalServerError {
			body.Error = "internal server error"
		}
	}
	writeJSON(w, status, body)
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warn("bad request",
		zap.String("requestId", middleware.GetReqID(r.Context())),
		zap.Error(err))
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), RequestID: middleware.GetReqID(r.Context())})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: msg, RequestID: middleware.GetReqID(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
