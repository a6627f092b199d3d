package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-session-auth/internal/domain"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Envelope is the response wrapper shared by every endpoint.
type Envelope struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Data    interface{}        `json:"data,omitempty"`
	User    *domain.PublicUser `json:"user,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// EmailData is returned after an OTP has been sent.
type EmailData struct {
	Email string `json:"email"`
}

// ProfileData is returned once an address is verified.
type ProfileData struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DashboardData wraps the signed-in account.
type DashboardData struct {
	User *domain.PublicUser `json:"user"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, status int, msg string, data interface{}) {
	writeJSON(w, status, Envelope{Success: true, Message: msg, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Envelope{Message: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

// errorResponder maps service errors onto HTTP responses. Internal failures
// get a generic message; the cause is attached only when debug is set.
type errorResponder struct {
	debug bool
}

func (e errorResponder) httpError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	switch {
	case status >= http.StatusInternalServerError:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		env := Envelope{Message: "Internal Server Error"}
		if e.debug {
			env.Error = err.Error()
		}
		writeJSON(w, status, env)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, status, "User not found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, status, "User already exists")
	default:
		writeError(w, status, headline(err))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrBadRequest),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrAlreadyVerified),
		errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrMismatch),
		errors.Is(err, domain.ErrTooShort),
		errors.Is(err, domain.ErrInvalidToken):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// headline returns the outermost context of a wrapped error as a sentence,
// e.g. "passwords do not match: mismatch" becomes "Passwords do not match".
func headline(err error) string {
	msg, _, _ := strings.Cut(err.Error(), ": ")
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}
