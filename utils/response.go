package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"zipngo/apperror"
	"zipngo/logger"
)

const maxBodyBytes = 1 << 20

// Envelope is the JSON body of every response.
type Envelope map[string]any

// WriteJSON writes env with the given status.
func WriteJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env) //nolint:errcheck
}

// WriteError logs err and writes a {success:false} envelope. Internal
// causes are logged but never sent to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperror.StatusCode(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "error", err, "kind", apperror.KindOf(err).String())
	} else {
		log.Debug("request rejected", "error", err, "status", status)
	}
	WriteJSON(w, status, Envelope{
		"success": false,
		"message": apperror.PublicMessage(err),
	})
}

// DecodeJSON decodes the request body into v.
func DecodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.Validation("Request body is empty")
		}
		return apperror.Validation("Invalid input")
	}
	return nil
}
