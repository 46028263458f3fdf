package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/iwmi/leaf-dss/internal/catalog"
	"github.com/iwmi/leaf-dss/internal/loader"
	"github.com/iwmi/leaf-dss/internal/schema"
)

const msgGPUnavailable = "GP data not available"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

// fail maps err to a response. Unknown entities answer 404 with notFound as
// the message; a missing GP level answers 404; anything else is a logged 500.
func fail(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, loader.ErrUnavailable):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": msgGPUnavailable})
	case errors.Is(err, catalog.ErrUnknownEntity), errors.Is(err, schema.ErrUnknownIntervention):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFound})
	default:
		zap.L().Error("api: request failed",
			zap.String("component", "api"),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Internal server error",
			"details": err.Error(),
		})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
