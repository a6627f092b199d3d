package handler

import (
	"net/http"
	"time"

	"github.com/go-session-auth/internal/application/auth"
	"github.com/go-session-auth/internal/domain"
	"github.com/go-session-auth/internal/pkg/validate"
	"github.com/go-session-auth/internal/transport/http/middleware"
)

// CookieConfig describes the session cookie. The same attributes are used to
// set and to clear it.
type CookieConfig struct {
	Name   string
	Secure bool
}

func (c CookieConfig) set(w http.ResponseWriter, h *domain.SessionHandle, now time.Time) {
	maxAge := int(h.ExpiresAt.Sub(now).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    h.Token,
		Path:     "/",
		Expires:  h.ExpiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// AuthHandler serves the /api/auth endpoints.
type AuthHandler struct {
	svc    auth.Service
	cookie CookieConfig
	errs   errorResponder
	now    func() time.Time
}

func NewAuthHandler(svc auth.Service, cookie CookieConfig, debug bool) *AuthHandler {
	return &AuthHandler{svc: svc, cookie: cookie, errs: errorResponder{debug: debug}, now: time.Now}
}

// bind decodes and validates the body. On failure it writes a 400 with msg
// and reports false.
func (h *AuthHandler) bind(w http.ResponseWriter, r *http.Request, dst interface{}, msg string) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, Envelope{Message: msg, Error: err.Error()})
		return false
	}
	return true
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !h.bind(w, r, &req, "Name, email and password are required") {
		return
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.errs.httpError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "OTP sent to your email", EmailData{Email: u.Email})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if !h.bind(w, r, &req, "Email and OTP are required") {
		return
	}
	handle, err := h.svc.VerifyOTP(r.Context(), req)
	if err != nil {
		h.errs.httpError(w, r, err)
		return
	}
	h.cookie.set(w, handle, h.now())
	u := handle.Session.User
	writeOK(w, http.StatusOK, "Email verified successfully", ProfileData{Name: u.Name, Email: u.Email})
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailRequest
	if !h.bind(w, r, &req, "Email is required") {
		return
	}
	u, err := h.svc.ResendOTP(r.Context(), req)
	if err != nil {
		h.errs.httpError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "New OTP sent successfully", EmailData{Email: u.Email})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !h.bind(w, r, &req, "Email and password are required") {
		return
	}
	handle, err := h.svc.Login(r.Context(), req)
	if err != nil {
		h.errs.httpError(w, r, err)
		return
	}
	h.cookie.set(w, handle, h.now())
	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Message: "Login successful",
		User:    handle.Session.User.Public(),
	})
}

// Logout runs behind RequireSession.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	handle, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, middleware.UnauthorizedMessage)
		return
	}
	if err := h.svc.Logout(r.Context(), handle.Session.SessionID); err != nil {
		h.errs.httpError(w, r, err)
		return
	}
	h.cookie.clear(w)
	writeOK(w, http.StatusOK, "Logged out successfully", nil)
}

// Dashboard runs behind RequireSession.
func (h *AuthHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	handle, ok := middleware.SessionFromContext(r.Context())
	if !ok || handle.Session.User == nil {
		writeError(w, http.StatusUnauthorized, middleware.UnauthorizedMessage)
		return
	}
	u := handle.Session.User
	writeOK(w, http.StatusOK, "Welcome "+u.Name, DashboardData{User: u.Public()})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailRequest
	if !h.bind(w, r, &req, "Email is required") {
		return
	}
	if err := h.svc.ForgotPassword(r.Context(), req); err != nil {
		h.errs.httpError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Password reset email sent", nil)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if !h.bind(w, r, &req, "Token, newPassword and confirmPassword are required") {
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req); err != nil {
		h.errs.httpError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Password updated successfully", nil)
}
