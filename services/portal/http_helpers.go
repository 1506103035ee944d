package portal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

type errorEnvelope struct {
	Error      bool           `json:"error"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	StatusCode int            `json:"status_code"`
}

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, errorEnvelope{
		Error:      true,
		Message:    err.Error(),
		StatusCode: status,
	})
}

// respondValidation reports field-level validation failures under a
// stable message so clients can render inline errors.
func respondValidation(w http.ResponseWriter, details map[string]any) {
	respondJSON(w, http.StatusBadRequest, errorEnvelope{
		Error:      true,
		Message:    "validation failed",
		Details:    details,
		StatusCode: http.StatusBadRequest,
	})
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}
