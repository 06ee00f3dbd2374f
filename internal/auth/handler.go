package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/pkg/database"
	"github.com/shepherd-hub/backend/pkg/response"
	"github.com/shepherd-hub/backend/pkg/utils"
)

// contextTenantID mirrors middleware.ContextTenantID; middleware imports this package.
const contextTenantID = "tenant_id"

// RegisterRequest is the body for POST /auth/register. A new tenant slug creates the tenant
// with the caller as its admin; an existing slug adds the caller as a member.
type RegisterRequest struct {
	TenantSlug string `json:"tenant_slug" binding:"required,min=2,max=100,ministrycode"`
	TenantName string `json:"tenant_name"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	FullName   string `json:"full_name" binding:"required"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	email := utils.NormalizeEmail(req.Email)
	slug := strings.ToLower(req.TenantSlug)

	if _, err := h.repo.GetByEmail(c.Request.Context(), email); err == nil {
		response.Conflict(c, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	var user *models.User
	tenant, err := h.repo.GetTenantBySlug(c.Request.Context(), slug)
	switch {
	case err == nil:
		if !tenant.IsActive {
			response.Forbidden(c, "tenant is disabled")
			return
		}
		user, err = h.repo.CreateUser(c.Request.Context(), tenant.ID, email, hash, req.FullName, models.RoleMember)
	case database.IsNotFound(err):
		name := strings.TrimSpace(req.TenantName)
		if name == "" {
			response.BadRequest(c, "tenant_name is required to create a new tenant")
			return
		}
		user, err = h.repo.CreateTenantWithAdmin(c.Request.Context(), name, slug, email, hash, req.FullName)
	}
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			response.Conflict(c, "email or tenant already registered")
			return
		}
		h.logger.Error("register failed", zap.Error(err), zap.String("tenant_slug", slug))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), utils.NormalizeEmail(req.Email))
	if err != nil {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// List handles GET /users (admin only). Returns the caller's tenant users.
func (h *Handler) List(c *gin.Context) {
	tenantID := c.MustGet(contextTenantID).(uuid.UUID)
	list, err := h.repo.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, list)
}
