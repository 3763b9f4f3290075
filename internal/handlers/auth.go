package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/jobboard/internal/auth"
	"github.com/charlesng35/jobboard/internal/middleware"
	"github.com/charlesng35/jobboard/internal/models"
	"github.com/charlesng35/jobboard/internal/services"
	"github.com/charlesng35/jobboard/pkg/errors"
	"github.com/charlesng35/jobboard/pkg/response"
)

// AuthHandler serves registration, login, PIN and password reset flows for
// both users and admins. Kind-specific routes are built with the For* methods.
type AuthHandler struct {
	accounts *services.AccountService
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type pinRequest struct {
	Email string `json:"email" validate:"required,email"`
	Pin   string `json:"pin" validate:"required,pin"`
}

type resetPasswordRequest struct {
	Token    string `json:"reset_token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type socialRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// Register creates an account of the given kind and sends its verification PIN.
func (h *AuthHandler) Register(kind models.PrincipalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if !bindAndValidate(c, &req) {
			return
		}
		principal, err := h.accounts.Register(requestContext(c), services.RegisterInput{
			Kind:     kind,
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusCreated, gin.H{
			"account":    principal,
			"email_sent": true,
		})
	}
}

// Login exchanges credentials for a token pair.
func (h *AuthHandler) Login(kind models.PrincipalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if !bindAndValidate(c, &req) {
			return
		}
		result, err := h.accounts.Login(requestContext(c), services.LoginInput{
			Kind:      kind,
			Email:     req.Email,
			Password:  req.Password,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusOK, result)
	}
}

// VerifyEmail consumes a verification PIN.
func (h *AuthHandler) VerifyEmail(kind models.PrincipalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pinRequest
		if !bindAndValidate(c, &req) {
			return
		}
		principal, err := h.accounts.VerifyEmail(requestContext(c), kind, req.Email, req.Pin)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"account": principal})
	}
}

// ResendVerification issues a fresh verification PIN.
func (h *AuthHandler) ResendVerification(kind models.PrincipalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req emailRequest
		if !bindAndValidate(c, &req) {
			return
		}
		if err := h.accounts.ResendVerification(requestContext(c), kind, req.Email); err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusAccepted, gin.H{"message": "If the account exists and is unverified, a new code has been sent."})
	}
}

// ForgotPassword issues a reset PIN. The response never reveals whether the
// account exists.
func (h *AuthHandler) ForgotPassword(kind models.PrincipalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req emailRequest
		if !bindAndValidate(c, &req) {
			return
		}
		if err := h.accounts.ForgotPassword(requestContext(c), kind, req.Email); err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusAccepted, gin.H{"message": "If the account exists, a reset code has been sent."})
	}
}

// VerifyResetPin trades a reset PIN for a short-lived reset token.
func (h *AuthHandler) VerifyResetPin(kind models.PrincipalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pinRequest
		if !bindAndValidate(c, &req) {
			return
		}
		grant, err := h.accounts.VerifyResetPin(requestContext(c), kind, req.Email, req.Pin)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusOK, grant)
	}
}

// ResetPassword POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.accounts.ResetPassword(requestContext(c), req.Token, req.Password); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Password updated. Please sign in again."})
}

// Refresh POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}
	pair, err := h.accounts.Refresh(requestContext(c), req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, pair)
}

// Social POST /api/auth/social/:provider
func (h *AuthHandler) Social(c *gin.Context) {
	var req socialRequest
	if !bindAndValidate(c, &req) {
		return
	}
	result, err := h.accounts.SocialLogin(requestContext(c), strings.ToLower(pathID(c, "provider")), req.IDToken, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Me GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	id, kind, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	principal, err := h.accounts.FindPrincipal(requestContext(c), kind, id)
	if err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"kind":    kind,
		"account": principal,
	})
}

// Logout POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID := c.GetString(middleware.CtxSessionIDKey)
	if sessionID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	if err := h.accounts.Logout(requestContext(c), sessionID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}
