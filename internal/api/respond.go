// Package api exposes the HTTP surface: plan CRUD, budget allocation, manual
// refresh evaluation, health and metrics.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/wayfarerlabs/tripweaver/internal/model"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response failed")
	}
}

// writeError maps domain sentinel errors onto HTTP statuses. Anything
// unrecognized is a 500 with a generic body; the detail stays in the log.
func writeError(w http.ResponseWriter, err error, log zerolog.Logger) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()}, log)
	case errors.Is(err, model.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()}, log)
	case errors.Is(err, model.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()}, log)
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"}, log)
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.ErrValidation
	}
	return nil
}
