package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/elimusphere/sphereauth"
	"go.uber.org/zap"
)

// Response is the envelope written by every handler.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error codes.
const (
	CodeOK             = 0
	CodeInvalidInput   = 40000
	CodePasswordPolicy = 40001
	CodeInvalidOTP     = 40002
	CodeOTPExpired     = 40003
	CodeUnauthorized   = 40100
	CodeForbidden      = 40300
	CodeNotFound       = 40400
	CodeDuplicate      = 40900
	CodeRateLimited    = 42900
	CodeInternal       = 50000
	CodeUnavailable    = 50300
)

func writeJSON(w http.ResponseWriter, status int, payload Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func ok(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, Response{Code: CodeOK, Message: message, Data: data})
}

func created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, Response{Code: CodeOK, Message: "success", Data: data})
}

func writeError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, Response{Code: code, Message: message})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, CodeInvalidInput, message)
}

// writeEngineError maps an Engine sentinel to its status, code and message.
// Unmapped errors are logged and reported as 500 without detail.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sphereauth.ErrPasswordPolicy):
		writeError(w, http.StatusBadRequest, CodePasswordPolicy, "Password does not meet requirements")
	case errors.Is(err, sphereauth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid input")
	case errors.Is(err, sphereauth.ErrInvalidReset):
		writeError(w, http.StatusBadRequest, CodeInvalidOTP, "Invalid OTP")
	case errors.Is(err, sphereauth.ErrExpiredReset):
		writeError(w, http.StatusBadRequest, CodeOTPExpired, "OTP has expired")
	case errors.Is(err, sphereauth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid credentials")
	case errors.Is(err, sphereauth.ErrDuplicateIdentity):
		writeError(w, http.StatusConflict, CodeDuplicate, "Email is already registered")
	case errors.Is(err, sphereauth.ErrStudentNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "Student not found")
	case sphereauth.IsRateLimited(err):
		writeError(w, http.StatusTooManyRequests, CodeRateLimited, "Too many requests, try again later")
	case errors.Is(err, sphereauth.ErrRateLimiterUnavailable):
		s.logger.Warn("rate limiter unavailable",
			zap.String("path", r.URL.Path),
			zap.String("request_id", sphereauth.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "Service temporarily unavailable")
	default:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", sphereauth.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, CodeInternal, "Internal server error")
	}
}
