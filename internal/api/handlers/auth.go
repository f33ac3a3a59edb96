package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/api/middleware"
	"github.com/scripta/scripta-api/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	validate    *validator.Validate
	logger      zerolog.Logger
}

func NewAuthHandler(authService *service.AuthService, validate *validator.Validate, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validate,
		logger:      logger.With().Str("handler", "auth").Logger(),
	}
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type VerifyLoginRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type RequestResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type AuthResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
	Token   string       `json:"token"`
}

type VerificationResponse struct {
	Message string           `json:"message"`
	User    PendingLoginUser `json:"user"`
	Next    string           `json:"next"`
}

type PendingLoginUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeBody(w, r, h.validate, &req) {
		return
	}

	result, err := h.authService.Register(r.Context(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		IP:        middleware.ClientIP(r),
		UserAgent: middleware.UserAgent(r),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		Message: "Registration successful",
		User:    toUserResponse(result.User),
		Token:   result.Token,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, h.validate, &req) {
		return
	}

	result, err := h.authService.Login(r.Context(), service.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		IP:         middleware.ClientIP(r),
		UserAgent:  middleware.UserAgent(r),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}

	if result.Status == service.LoginStatusVerificationRequired {
		writeJSON(w, http.StatusOK, VerificationResponse{
			Message: "Verification required",
			User: PendingLoginUser{
				ID:    result.User.ID.String(),
				Email: result.User.Email,
			},
			Next: result.Next,
		})
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Message: "Login successful",
		User:    toUserResponse(result.User),
		Token:   result.Token,
	})
}

func (h *AuthHandler) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	var req VerifyLoginRequest
	if !decodeBody(w, r, h.validate, &req) {
		return
	}

	result, err := h.authService.VerifyLogin(r.Context(), service.VerifyLoginInput{
		Email: req.Email,
		Code:  req.Code,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Message: "Login verified successfully",
		User:    toUserResponse(result.User),
		Token:   result.Token,
	})
}

func (h *AuthHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req RequestResetRequest
	if !decodeBody(w, r, h.validate, &req) {
		return
	}

	msg := h.authService.RequestPasswordReset(r.Context(), req.Email)
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeBody(w, r, h.validate, &req) {
		return
	}

	err := h.authService.ResetPassword(r.Context(), service.ResetPasswordInput{
		Email:       req.Email,
		Code:        req.Code,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Password reset successfully"})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !decodeBody(w, r, h.validate, &req) {
		return
	}

	err := h.authService.ChangePassword(r.Context(), p, service.ChangePasswordInput{
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Password changed successfully"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	user, err := h.authService.Me(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "User")
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}
