package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/jobboard/internal/services"
	"github.com/charlesng35/jobboard/pkg/response"
)

// FavoriteHandler manages the current user's saved jobs.
type FavoriteHandler struct {
	svc *services.FavoriteService
}

// NewFavoriteHandler constructs a favorite handler.
func NewFavoriteHandler(svc *services.FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{svc: svc}
}

// List GET /api/me/favorites
func (h *FavoriteHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	opts := listOptions(c)
	favorites, total, err := h.svc.List(requestContext(c), userID, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeList(c, favorites, total, opts)
}

// Add PUT /api/me/favorites/:jobID
func (h *FavoriteHandler) Add(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	favorite, err := h.svc.Add(requestContext(c), userID, pathID(c, "jobID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, favorite)
}

// Remove DELETE /api/me/favorites/:jobID
func (h *FavoriteHandler) Remove(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.svc.Remove(requestContext(c), userID, pathID(c, "jobID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
