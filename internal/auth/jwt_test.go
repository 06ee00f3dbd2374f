package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherd-hub/backend/internal/models"
)

func TestGenerateAndValidate(t *testing.T) {
	s := NewJWTService("secret", 1)
	u := &models.User{ID: uuid.New(), TenantID: uuid.New(), Email: "admin@grace.org", Role: models.RoleAdmin}

	token, err := s.Generate(u)
	require.NoError(t, err)

	claims, err := s.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, u.TenantID, claims.TenantID)
	assert.Equal(t, "admin", claims.Role)
}

func TestValidateRejectsForeignSecretAndMissingTenant(t *testing.T) {
	u := &models.User{ID: uuid.New(), TenantID: uuid.New(), Role: models.RoleStaff}
	token, err := NewJWTService("one", 1).Generate(u)
	require.NoError(t, err)
	_, err = NewJWTService("two", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noTenant, err := NewJWTService("one", 1).Generate(&models.User{ID: uuid.New(), Role: models.RoleStaff})
	require.NoError(t, err)
	_, err = NewJWTService("one", 1).Validate(noTenant)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
