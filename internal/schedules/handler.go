package schedules

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/formschema"
	"github.com/shepherd-hub/backend/internal/middleware"
	"github.com/shepherd-hub/backend/internal/ministries"
	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/internal/qrtoken"
	"github.com/shepherd-hub/backend/pkg/response"
	"github.com/shepherd-hub/backend/pkg/storage"
	"github.com/shepherd-hub/backend/pkg/validation"
)

// Handler handles schedule HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a schedules handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error, op string) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		response.Unprocessable(c, "validation failed", verr.Fields)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrQRNotFound), errors.Is(err, ErrNoUpcoming):
		response.NotFound(c, err.Error())
	case errors.Is(err, ministries.ErrNotFound):
		response.Unprocessable(c, "validation failed", response.FieldErrors{"ministry_id": "ministry not found"})
	case errors.Is(err, qrtoken.ErrInvalidTTL):
		response.BadRequest(c, err.Error())
	case errors.Is(err, qrtoken.ErrTokenExpired):
		response.Gone(c, err.Error())
	case errors.Is(err, qrtoken.ErrInvalidToken), errors.Is(err, qrtoken.ErrWrongPurpose):
		response.BadRequest(c, err.Error())
	case errors.Is(err, storage.ErrUnsupportedImage):
		response.BadRequest(c, "invalid file type: only jpg, png and webp images are allowed")
	case errors.Is(err, ErrStorageUnavailable):
		response.ServiceUnavailable(c, err.Error())
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		response.Internal(c, "failed to "+op)
	}
}

func bindInput(c *gin.Context) (Input, bool) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		if fields := validation.FieldErrors(err); fields != nil {
			response.Unprocessable(c, "validation failed", fields)
		} else {
			response.BadRequest(c, "invalid request: "+err.Error())
		}
		return in, false
	}
	return in, true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid schedule id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /schedules?ministry_id=&active=.
func (h *Handler) List(c *gin.Context) {
	var f ListFilter
	if v := c.Query("ministry_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid ministry_id")
			return
		}
		f.MinistryID = &id
	}
	if v := c.Query("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(c, "invalid active filter")
			return
		}
		f.Active = &active
	}
	list, err := h.svc.List(c.Request.Context(), middleware.TenantID(c), f)
	if err != nil {
		h.fail(c, err, "list schedules")
		return
	}
	response.OK(c, list)
}

// Get handles GET /schedules/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	s, err := h.svc.Get(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		h.fail(c, err, "get schedule")
		return
	}
	response.OK(c, s)
}

// Create handles POST /schedules.
func (h *Handler) Create(c *gin.Context) {
	in, ok := bindInput(c)
	if !ok {
		return
	}
	s, err := h.svc.Create(c.Request.Context(), middleware.TenantID(c), in)
	if err != nil {
		h.fail(c, err, "create schedule")
		return
	}
	response.Created(c, s)
}

// Update handles PUT /schedules/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	in, ok := bindInput(c)
	if !ok {
		return
	}
	s, err := h.svc.Update(c.Request.Context(), middleware.TenantID(c), id, in)
	if err != nil {
		h.fail(c, err, "update schedule")
		return
	}
	response.OK(c, s)
}

// Delete handles DELETE /schedules/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.TenantID(c), id); err != nil {
		h.fail(c, err, "delete schedule")
		return
	}
	response.NoContent(c)
}

// FormTemplate is one predefined registration form.
type FormTemplate struct {
	Name   formschema.Template `json:"name"`
	Fields []models.FormField  `json:"fields"`
}

// FormTemplates handles GET /scheduler/form-templates.
func (h *Handler) FormTemplates(c *gin.Context) {
	names := formschema.Templates()
	out := make([]FormTemplate, 0, len(names))
	for _, name := range names {
		out = append(out, FormTemplate{Name: name, Fields: formschema.TemplateFields(name)})
	}
	response.OK(c, out)
}

// IssueQRRequest is the optional body of the QR issue endpoints.
type IssueQRRequest struct {
	ExpiresInHours int `json:"expires_in_hours" binding:"omitempty,min=1,max=720"`
}

// IssueQR handles POST /scheduler/schedules/:id/{attendance,registration}-qr.
func (h *Handler) IssueQR(purpose models.QRPurpose) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req IssueQRRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			if fields := validation.FieldErrors(err); fields != nil {
				response.Unprocessable(c, "validation failed", fields)
			} else {
				response.BadRequest(c, "invalid request: "+err.Error())
			}
			return
		}
		t, err := h.svc.IssueQR(c.Request.Context(), middleware.TenantID(c), id, purpose, req.ExpiresInHours)
		if err != nil {
			h.fail(c, err, "issue qr code")
			return
		}
		response.Created(c, t)
	}
}

// LatestQR handles GET /scheduler/schedules/:id/{attendance,registration}-qr.
func (h *Handler) LatestQR(purpose models.QRPurpose) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		t, err := h.svc.LatestQR(c.Request.Context(), middleware.TenantID(c), id, purpose)
		if err != nil {
			h.fail(c, err, "get qr code")
			return
		}
		response.OK(c, t)
	}
}

// ResolveRegistrationQR handles GET /scheduler/qr/registration/:token (public).
func (h *Handler) ResolveRegistrationQR(c *gin.Context) {
	target, err := h.svc.ResolveRegistrationQR(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err, "resolve registration qr")
		return
	}
	response.OK(c, target)
}

// UploadCoverPhoto handles POST /schedules/:id/cover-photo (multipart form field "file").
func (h *Handler) UploadCoverPhoto(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	if file.Size > storage.MaxCoverPhotoSize {
		response.BadRequest(c, "file size exceeds 10MB limit")
		return
	}
	rc, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		response.Internal(c, "failed to read file")
		return
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, storage.MaxCoverPhotoSize+1))
	if err != nil {
		h.logger.Error("read uploaded file failed", zap.Error(err))
		response.Internal(c, "failed to read file")
		return
	}
	s, err := h.svc.SetCoverPhoto(c.Request.Context(), middleware.TenantID(c), id, data, file.Filename)
	if err != nil {
		h.fail(c, err, "upload cover photo")
		return
	}
	response.OK(c, s)
}

// DeleteCoverPhoto handles DELETE /schedules/:id/cover-photo.
func (h *Handler) DeleteCoverPhoto(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveCoverPhoto(c.Request.Context(), middleware.TenantID(c), id); err != nil {
		h.fail(c, err, "remove cover photo")
		return
	}
	response.NoContent(c)
}
