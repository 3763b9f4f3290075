package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/jobboard/internal/services"
	"github.com/charlesng35/jobboard/internal/workflow"
	appErrors "github.com/charlesng35/jobboard/pkg/errors"
	"github.com/charlesng35/jobboard/pkg/response"
)

// ApplicationHandler serves both sides of the application workflow: users
// applying and tracking, admins moving applications through the pipeline.
type ApplicationHandler struct {
	svc            *services.ApplicationService
	maxUploadBytes int64
	adminResolver
}

// NewApplicationHandler constructs an application handler.
func NewApplicationHandler(svc *services.ApplicationService, accounts *services.AccountService, maxUploadBytes int64) *ApplicationHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &ApplicationHandler{svc: svc, maxUploadBytes: maxUploadBytes, adminResolver: adminResolver{accounts: accounts}}
}

const defaultMaxUploadBytes = 10 << 20

type applyRequest struct {
	CoverLetter string `json:"cover_letter" validate:"max=10000"`
}

type transitionRequest struct {
	Status   string `json:"status" validate:"required,app_status"`
	Feedback string `json:"feedback"`
}

// Apply POST /api/jobs/:id/apply
//
// Accepts JSON or a multipart form with an optional "resume" file.
func (h *ApplicationHandler) Apply(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var input services.ApplyInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
		input.CoverLetter = c.PostForm("cover_letter")
		if header, err := c.FormFile("resume"); err == nil {
			upload, closeFn, err := openUpload(header)
			if err != nil {
				response.Error(c, err)
				return
			}
			defer closeFn()
			input.Resume = upload
		} else if !errors.Is(err, http.ErrMissingFile) {
			response.Error(c, appErrors.NewBadRequest("Invalid upload"))
			return
		}
	} else {
		var req applyRequest
		if !bindAndValidate(c, &req) {
			return
		}
		input.CoverLetter = req.CoverLetter
	}

	view, err := h.svc.Apply(requestContext(c), userID, pathID(c, "id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, view)
}

// ListMine GET /api/me/applications
func (h *ApplicationHandler) ListMine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	opts := listOptions(c)
	views, total, err := h.svc.ListMine(requestContext(c), userID, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeList(c, views, total, opts)
}

// GetMine GET /api/me/applications/:id
func (h *ApplicationHandler) GetMine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	view, err := h.svc.GetMine(requestContext(c), userID, pathID(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// ListForJob GET /api/admin/jobs/:id/applications
func (h *ApplicationHandler) ListForJob(c *gin.Context) {
	scope, _, ok := h.scope(c)
	if !ok {
		return
	}
	var status workflow.Status
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		parsed, valid := workflow.Parse(raw)
		if !valid {
			response.Error(c, appErrors.NewValidation("Unknown status", map[string]string{"status": "must be a known application status"}))
			return
		}
		status = parsed
	}
	opts := listOptions(c)
	views, total, err := h.svc.ListForJob(requestContext(c), scope, pathID(c, "id"), status, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeList(c, views, total, opts)
}

// Get GET /api/admin/applications/:id
func (h *ApplicationHandler) Get(c *gin.Context) {
	scope, _, ok := h.scope(c)
	if !ok {
		return
	}
	view, err := h.svc.Get(requestContext(c), scope, pathID(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// Transition POST /api/admin/applications/:id/transition
func (h *ApplicationHandler) Transition(c *gin.Context) {
	scope, actor, ok := h.scope(c)
	if !ok {
		return
	}
	var req transitionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	target, _ := workflow.Parse(req.Status)
	view, err := h.svc.RequestTransition(requestContext(c), scope, actor, pathID(c, "id"), target, req.Feedback)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// Restore POST /api/admin/applications/:id/restore
func (h *ApplicationHandler) Restore(c *gin.Context) {
	scope, actor, ok := h.scope(c)
	if !ok {
		return
	}
	view, err := h.svc.Restore(requestContext(c), scope, actor, pathID(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// Reject POST /api/admin/applications/:id/reject
func (h *ApplicationHandler) Reject(c *gin.Context) {
	scope, actor, ok := h.scope(c)
	if !ok {
		return
	}
	view, err := h.svc.Reject(requestContext(c), scope, actor, pathID(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// openUpload converts a multipart file header into a service upload. The
// returned func closes the underlying file.
func openUpload(header *multipart.FileHeader) (*services.Upload, func(), error) {
	file, err := header.Open()
	if err != nil {
		return nil, nil, appErrors.NewBadRequest("Could not read uploaded file")
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &services.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	}, func() { _ = file.Close() }, nil
}
