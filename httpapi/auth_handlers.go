package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/elimusphere/sphereauth"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	Role       string `json:"role"`
}

type loginResponse struct {
	User        *sphereauth.Identity `json:"user"`
	AccessToken string               `json:"accessToken,omitempty"`
}

type requestResetRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

const (
	msgResetRequested = "If the email exists, an OTP has been sent"
	msgResetDone      = "Password reset successfully"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" || req.Role == "" {
		badRequest(w, "All fields are required")
		return
	}

	identity, err := s.engine.Register(r.Context(), sphereauth.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	created(w, identity)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Identifier) == "" || req.Password == "" || req.Role == "" {
		badRequest(w, "All fields are required")
		return
	}

	identity, err := s.engine.Verify(r.Context(), sphereauth.VerifyRequest{
		Identifier: req.Identifier,
		Password:   req.Password,
		Role:       req.Role,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	// Without signing keys the engine verifies credentials but issues no token.
	token, err := s.engine.IssueAccessToken(r.Context(), identity)
	if err != nil && !errors.Is(err, sphereauth.ErrEngineNotReady) {
		s.writeEngineError(w, r, err)
		return
	}

	ok(w, "success", loginResponse{User: identity, AccessToken: token})
}

func (s *Server) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var req requestResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		badRequest(w, "Email is required")
		return
	}

	if err := s.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	ok(w, msgResetRequested, nil)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.OTP) == "" || req.NewPassword == "" {
		badRequest(w, "Email, OTP and new password are required")
		return
	}

	if err := s.engine.ConfirmPasswordReset(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	ok(w, msgResetDone, nil)
}
