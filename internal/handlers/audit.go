package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/jobboard/internal/services"
	"github.com/charlesng35/jobboard/pkg/errors"
	"github.com/charlesng35/jobboard/pkg/response"
)

// AuditHandler exposes the audit trail to super admins.
type AuditHandler struct {
	svc *services.AuditService
	adminResolver
}

// NewAuditHandler constructs an audit handler.
func NewAuditHandler(svc *services.AuditService, accounts *services.AccountService) *AuditHandler {
	return &AuditHandler{svc: svc, adminResolver: adminResolver{accounts: accounts}}
}

// List GET /api/admin/audit
func (h *AuditHandler) List(c *gin.Context) {
	admin, ok := h.admin(c)
	if !ok {
		return
	}
	if !admin.IsSuper {
		response.Error(c, errors.ErrForbidden)
		return
	}

	filters := services.AuditFilters{
		ActorID:    c.Query("actor_id"),
		Action:     c.Query("action"),
		Result:     c.Query("result"),
		Resource:   c.Query("resource"),
		ResourceID: c.Query("resource_id"),
	}
	if s := c.Query("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			filters.Since = &t
		}
	}
	if u := c.Query("until"); u != "" {
		if t, err := time.Parse(time.RFC3339, u); err == nil {
			filters.Until = &t
		}
	}

	opts := listOptions(c)
	logs, total, err := h.svc.List(requestContext(c), services.AuditListOptions{ListOptions: opts, Filters: filters})
	if err != nil {
		response.Error(c, err)
		return
	}
	writeList(c, logs, total, opts)
}
