package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/jobboard/internal/services"
	"github.com/charlesng35/jobboard/pkg/response"
)

// DeviceHandler registers push tokens for the current user.
type DeviceHandler struct {
	svc *services.DeviceTokenService
}

// NewDeviceHandler constructs a device handler.
func NewDeviceHandler(svc *services.DeviceTokenService) *DeviceHandler {
	return &DeviceHandler{svc: svc}
}

type deviceRequest struct {
	Token    string `json:"token" validate:"required,max=4096"`
	Platform string `json:"platform" validate:"omitempty,oneof=android ios web"`
}

type deviceDeleteRequest struct {
	Token string `json:"token" validate:"required"`
}

// List GET /api/me/devices
func (h *DeviceHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	tokens, err := h.svc.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tokens)
}

// Register POST /api/me/devices
func (h *DeviceHandler) Register(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req deviceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	token, err := h.svc.Register(requestContext(c), userID, req.Token, req.Platform)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, token)
}

// Unregister DELETE /api/me/devices
func (h *DeviceHandler) Unregister(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req deviceDeleteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.Unregister(requestContext(c), userID, req.Token); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
