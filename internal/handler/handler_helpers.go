package handler

import (
	"encoding/json"
	"net/http"

	apperr "chatserver/pkg/errors"
)

// Context keys set by the session middleware.
const (
	ContextKeyToken = "session-token"
	ContextKeyName  = "display-name"
)

func sessionToken(r *http.Request) string {
	token, _ := r.Context().Value(ContextKeyToken).(string)
	return token
}

func displayName(r *http.Request) string {
	name, _ := r.Context().Value(ContextKeyName).(string)
	return name
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps application error codes onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.CodeOf(err) {
	case apperr.CodeInvalidArgument:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeAlreadyExists:
		status = http.StatusConflict
	case apperr.CodeFailedPrecondition:
		status = http.StatusConflict
	case apperr.CodeStorageUnavailable:
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]string{
		"code":  string(apperr.CodeOf(err)),
		"error": err.Error(),
	})
}
