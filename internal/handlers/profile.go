package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/jobboard/internal/services"
	appErrors "github.com/charlesng35/jobboard/pkg/errors"
	"github.com/charlesng35/jobboard/pkg/response"
)

// ProfileHandler exposes the current user's profile, education, experience
// and documents.
type ProfileHandler struct {
	svc            *services.ProfileService
	maxUploadBytes int64
}

// NewProfileHandler configures a profile handler.
func NewProfileHandler(svc *services.ProfileService, maxUploadBytes int64) *ProfileHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &ProfileHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

type updateProfileRequest struct {
	Headline *string `json:"headline" validate:"omitempty,max=255"`
	Summary  *string `json:"summary" validate:"omitempty,max=5000"`
	Phone    *string `json:"phone" validate:"omitempty,max=32"`
	Location *string `json:"location" validate:"omitempty,max=255"`
}

type educationRequest struct {
	Institution  string  `json:"institution" validate:"required,max=255"`
	Degree       string  `json:"degree" validate:"max=255"`
	FieldOfStudy string  `json:"field_of_study" validate:"max=255"`
	StartDate    *string `json:"start_date"`
	EndDate      *string `json:"end_date"`
	Description  string  `json:"description" validate:"max=5000"`
}

func (r educationRequest) input() (services.EducationInput, error) {
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return services.EducationInput{}, err
	}
	end, err := parseDate("end_date", r.EndDate)
	if err != nil {
		return services.EducationInput{}, err
	}
	return services.EducationInput{
		Institution:  r.Institution,
		Degree:       r.Degree,
		FieldOfStudy: r.FieldOfStudy,
		StartDate:    start,
		EndDate:      end,
		Description:  r.Description,
	}, nil
}

type experienceRequest struct {
	Company     string  `json:"company" validate:"required,max=255"`
	Title       string  `json:"title" validate:"required,max=255"`
	Location    string  `json:"location" validate:"max=255"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Current     bool    `json:"current"`
	Description string  `json:"description" validate:"max=5000"`
}

func (r experienceRequest) input() (services.ExperienceInput, error) {
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return services.ExperienceInput{}, err
	}
	end, err := parseDate("end_date", r.EndDate)
	if err != nil {
		return services.ExperienceInput{}, err
	}
	return services.ExperienceInput{
		Company:     r.Company,
		Title:       r.Title,
		Location:    r.Location,
		StartDate:   start,
		EndDate:     end,
		Current:     r.Current,
		Description: r.Description,
	}, nil
}

// Get GET /api/me/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	profile, err := h.svc.Get(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// Update PUT /api/me/profile
func (h *ProfileHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}
	profile, err := h.svc.Update(requestContext(c), userID, services.ProfileInput{
		Headline: req.Headline,
		Summary:  req.Summary,
		Phone:    req.Phone,
		Location: req.Location,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// AddEducation POST /api/me/educations
func (h *ProfileHandler) AddEducation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req educationRequest
	if !bindAndValidate(c, &req) {
		return
	}
	input, err := req.input()
	if err != nil {
		response.Error(c, err)
		return
	}
	entry, err := h.svc.AddEducation(requestContext(c), userID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, entry)
}

// UpdateEducation PUT /api/me/educations/:id
func (h *ProfileHandler) UpdateEducation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req educationRequest
	if !bindAndValidate(c, &req) {
		return
	}
	input, err := req.input()
	if err != nil {
		response.Error(c, err)
		return
	}
	entry, err := h.svc.UpdateEducation(requestContext(c), userID, pathID(c, "id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, entry)
}

// DeleteEducation DELETE /api/me/educations/:id
func (h *ProfileHandler) DeleteEducation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteEducation(requestContext(c), userID, pathID(c, "id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// AddExperience POST /api/me/experiences
func (h *ProfileHandler) AddExperience(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req experienceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	input, err := req.input()
	if err != nil {
		response.Error(c, err)
		return
	}
	entry, err := h.svc.AddExperience(requestContext(c), userID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, entry)
}

// UpdateExperience PUT /api/me/experiences/:id
func (h *ProfileHandler) UpdateExperience(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req experienceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	input, err := req.input()
	if err != nil {
		response.Error(c, err)
		return
	}
	entry, err := h.svc.UpdateExperience(requestContext(c), userID, pathID(c, "id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, entry)
}

// DeleteExperience DELETE /api/me/experiences/:id
func (h *ProfileHandler) DeleteExperience(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteExperience(requestContext(c), userID, pathID(c, "id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ListDocuments GET /api/me/documents
func (h *ProfileHandler) ListDocuments(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	docs, err := h.svc.ListDocuments(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, docs)
}

// UploadDocument POST /api/me/documents (multipart: file, kind)
func (h *ProfileHandler) UploadDocument(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.NewBadRequest("File is too large"))
			return
		}
		response.Error(c, appErrors.NewValidation("A file is required", map[string]string{"file": "required"}))
		return
	}
	upload, closeFn, err := openUpload(header)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn()

	doc, err := h.svc.UploadDocument(requestContext(c), userID, c.PostForm("kind"), *upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, doc)
}

// DeleteDocument DELETE /api/me/documents/:id
func (h *ProfileHandler) DeleteDocument(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteDocument(requestContext(c), userID, pathID(c, "id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
