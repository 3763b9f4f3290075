package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/jobboard/internal/models"
	"github.com/charlesng35/jobboard/internal/services"
	"github.com/charlesng35/jobboard/pkg/response"
)

// JobHandler serves the public job board and the admin job endpoints.
type JobHandler struct {
	svc *services.JobService
	adminResolver
}

// NewJobHandler constructs a job handler.
func NewJobHandler(svc *services.JobService, accounts *services.AccountService) *JobHandler {
	return &JobHandler{svc: svc, adminResolver: adminResolver{accounts: accounts}}
}

type jobRequest struct {
	CompanyID      string `json:"company_id"`
	Title          string `json:"title" validate:"required,max=255"`
	Description    string `json:"description" validate:"max=20000"`
	Location       string `json:"location" validate:"max=255"`
	EmploymentType string `json:"employment_type" validate:"max=32"`
	SalaryMin      *int   `json:"salary_min" validate:"omitempty,min=0"`
	SalaryMax      *int   `json:"salary_max" validate:"omitempty,min=0"`
	Status         string `json:"status" validate:"omitempty,oneof=open closed cancelled"`
}

func (r jobRequest) input() services.JobInput {
	return services.JobInput{
		CompanyID:      r.CompanyID,
		Title:          r.Title,
		Description:    r.Description,
		Location:       r.Location,
		EmploymentType: r.EmploymentType,
		SalaryMin:      r.SalaryMin,
		SalaryMax:      r.SalaryMax,
		Status:         models.JobStatus(r.Status),
	}
}

func jobFilters(c *gin.Context) services.JobFilters {
	return services.JobFilters{
		ListOptions:    listOptions(c),
		Search:         strings.TrimSpace(c.Query("search")),
		Location:       strings.TrimSpace(c.Query("location")),
		CompanyID:      strings.TrimSpace(c.Query("company_id")),
		EmploymentType: strings.TrimSpace(c.Query("employment_type")),
		Status:         models.JobStatus(strings.TrimSpace(c.Query("status"))),
	}
}

// ListPublic GET /api/jobs
func (h *JobHandler) ListPublic(c *gin.Context) {
	filters := jobFilters(c)
	filters.Status = ""
	jobs, total, err := h.svc.ListPublic(requestContext(c), filters)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeList(c, jobs, total, filters.ListOptions)
}

// GetPublic GET /api/jobs/:id
func (h *JobHandler) GetPublic(c *gin.Context) {
	job, err := h.svc.GetPublic(requestContext(c), pathID(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, job)
}

// List GET /api/admin/jobs
func (h *JobHandler) List(c *gin.Context) {
	scope, _, ok := h.scope(c)
	if !ok {
		return
	}
	filters := jobFilters(c)
	jobs, total, err := h.svc.List(requestContext(c), scope, filters)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeList(c, jobs, total, filters.ListOptions)
}

// Get GET /api/admin/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	scope, _, ok := h.scope(c)
	if !ok {
		return
	}
	job, err := h.svc.Get(requestContext(c), scope, pathID(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, job)
}

// Create POST /api/admin/jobs
func (h *JobHandler) Create(c *gin.Context) {
	scope, _, ok := h.scope(c)
	if !ok {
		return
	}
	var req jobRequest
	if !bindAndValidate(c, &req) {
		return
	}
	job, err := h.svc.Create(requestContext(c), scope, req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, job)
}

// Update PUT /api/admin/jobs/:id
func (h *JobHandler) Update(c *gin.Context) {
	scope, _, ok := h.scope(c)
	if !ok {
		return
	}
	var req jobRequest
	if !bindAndValidate(c, &req) {
		return
	}
	job, err := h.svc.Update(requestContext(c), scope, pathID(c, "id"), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, job)
}

// Delete DELETE /api/admin/jobs/:id
func (h *JobHandler) Delete(c *gin.Context) {
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

// Cancel POST /api/admin/jobs/:id/cancel
func (h *JobHandler) Cancel(c *gin.Context) {
	scope, actor, ok := h.scope(c)
	if !ok {
		return
	}
	result, err := h.svc.Cancel(requestContext(c), scope, actor, pathID(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}
