package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/jobboard/internal/services"
	"github.com/charlesng35/jobboard/pkg/response"
)

// CompanyHandler manages the companies an admin owns.
type CompanyHandler struct {
	svc *services.CompanyService
	adminResolver
}

// NewCompanyHandler constructs a company handler.
func NewCompanyHandler(svc *services.CompanyService, accounts *services.AccountService) *CompanyHandler {
	return &CompanyHandler{svc: svc, adminResolver: adminResolver{accounts: accounts}}
}

type companyRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=5000"`
	Website     string `json:"website" validate:"omitempty,url,max=512"`
	Location    string `json:"location" validate:"max=255"`
	LogoURL     string `json:"logo_url" validate:"omitempty,url,max=512"`
}

func (r companyRequest) input() services.CompanyInput {
	return services.CompanyInput{
		Name:        r.Name,
		Description: r.Description,
		Website:     r.Website,
		Location:    r.Location,
		LogoURL:     r.LogoURL,
	}
}

// List GET /api/admin/companies
func (h *CompanyHandler) List(c *gin.Context) {
	scope, _, ok := h.scope(c)
	if !ok {
		return
	}
	opts := listOptions(c)
	companies, total, err := h.svc.List(requestContext(c), scope, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeList(c, companies, total, opts)
}

// Get GET /api/admin/companies/:id
func (h *CompanyHandler) Get(c *gin.Context) {
	scope, _, ok := h.scope(c)
	if !ok {
		return
	}
	company, err := h.svc.Get(requestContext(c), scope, pathID(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, company)
}

// Create POST /api/admin/companies
func (h *CompanyHandler) Create(c *gin.Context) {
	scope, _, ok := h.scope(c)
	if !ok {
		return
	}
	var req companyRequest
	if !bindAndValidate(c, &req) {
		return
	}
	company, err := h.svc.Create(requestContext(c), scope, req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, company)
}

// Update PUT /api/admin/companies/:id
func (h *CompanyHandler) Update(c *gin.Context) {
	scope, _, ok := h.scope(c)
	if !ok {
		return
	}
	var req companyRequest
	if !bindAndValidate(c, &req) {
		return
	}
	company, err := h.svc.Update(requestContext(c), scope, pathID(c, "id"), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, company)
}

// Delete DELETE /api/admin/companies/:id
func (h *CompanyHandler) Delete(c *gin.Context) {
	scope, _, ok := h.scope(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(requestContext(c), scope, pathID(c, "id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
