package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/jobboard/internal/middleware"
	"github.com/charlesng35/jobboard/internal/models"
	"github.com/charlesng35/jobboard/internal/services"
	"github.com/charlesng35/jobboard/pkg/errors"
	"github.com/charlesng35/jobboard/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUserID returns the authenticated user's ID, writing a 401 when the
// caller is not a user.
func currentUserID(c *gin.Context) (string, bool) {
	id, kind, ok := middleware.Principal(c)
	if !ok || kind != models.PrincipalUser {
		response.Error(c, errors.ErrUnauthorized)
		return "", false
	}
	return id, true
}

// actorFromContext describes the caller for audit entries.
func actorFromContext(c *gin.Context, principal models.Principal) services.Actor {
	actor := services.Actor{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if principal != nil {
		actor.Kind = principal.Kind()
		actor.ID = principal.GetID()
		actor.Email = principal.GetEmail()
	}
	return actor
}

// adminResolver loads the authenticated admin so handlers can scope queries.
type adminResolver struct {
	accounts *services.AccountService
}

func (r adminResolver) admin(c *gin.Context) (*models.Admin, bool) {
	id, kind, ok := middleware.Principal(c)
	if !ok || kind != models.PrincipalAdmin {
		response.Error(c, errors.ErrForbidden)
		return nil, false
	}
	principal, err := r.accounts.FindPrincipal(requestContext(c), models.PrincipalAdmin, id)
	if err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return nil, false
	}
	admin, ok := principal.(*models.Admin)
	if !ok {
		response.Error(c, errors.ErrForbidden)
		return nil, false
	}
	return admin, true
}

func (r adminResolver) scope(c *gin.Context) (services.AdminScope, services.Actor, bool) {
	admin, ok := r.admin(c)
	if !ok {
		return services.AdminScope{}, services.Actor{}, false
	}
	return services.ScopeFor(admin), actorFromContext(c, admin), true
}

func pathID(c *gin.Context, name string) string {
	return strings.TrimSpace(c.Param(name))
}

func listOptions(c *gin.Context) services.ListOptions {
	return services.ListOptions{
		Page:    parseIntQuery(c, "page", 1),
		PerPage: parseIntQuery(c, "per_page", 20),
	}
}

// writeList renders a page of items with pagination metadata.
func writeList[T any](c *gin.Context, items []T, total int64, opts services.ListOptions) {
	if items == nil {
		items = []T{}
	}
	page, perPage := opts.Page, opts.PerPage
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	response.SuccessWithMeta(c, http.StatusOK, items, response.NewMeta(page, perPage, total))
}
