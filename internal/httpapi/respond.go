package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"kasirpos.org/internal/auth"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{
		"success": false,
		"message": message,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeAuthError maps service errors onto HTTP statuses. notFoundStatus lets
// routes disagree about missing resources: login answers 400, unlock 404.
func (a *API) writeAuthError(w http.ResponseWriter, err error, notFoundStatus int) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, trimPrefix(err))
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, notFoundStatus, "not found")
	case errors.Is(err, auth.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "insufficient role")
	default:
		if locked, ok := auth.IsLocked(err); ok {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"success":      false,
				"message":      "account is locked",
				"locked_until": locked.LockedUntil.UTC(),
			})
			return
		}
		// Storage, timeout and signing failures stay internal.
		a.logger.Error("internal error: " + err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// trimPrefix strips the "auth: " sentinel prefix from user-facing messages.
func trimPrefix(err error) string {
	const prefix = "auth: "
	msg := err.Error()
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
