// Package qrtoken issues and verifies the signed, schedule-scoped tokens encoded in check-in and
// registration QR codes.
package qrtoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/shepherd-hub/backend/internal/models"
)

// MaxExpiryHours caps how long a printed QR code stays valid.
const MaxExpiryHours = 720

var (
	ErrInvalidToken = errors.New("invalid qr token")
	ErrTokenExpired = errors.New("qr token expired")
	ErrWrongPurpose = errors.New("qr token issued for a different purpose")
	ErrInvalidTTL   = errors.New("expires_in_hours must be between 1 and 720")
)

// Claims identify the schedule and tenant a QR token was minted for.
type Claims struct {
	ScheduleID uuid.UUID        `json:"schedule_id"`
	TenantID   uuid.UUID        `json:"tenant_id"`
	Purpose    models.QRPurpose `json:"purpose"`
	jwt.RegisteredClaims
}

// Service signs tokens with an HMAC secret.
type Service struct {
	secret []byte
	now    func() time.Time
}

// NewService creates a token service.
func NewService(secret string) *Service {
	return &Service{secret: []byte(secret), now: time.Now}
}

// TTL resolves a requested lifetime in hours; zero means defaultHours.
func TTL(hours, defaultHours int) (time.Duration, error) {
	if hours == 0 {
		hours = defaultHours
	}
	if hours < 1 || hours > MaxExpiryHours {
		return 0, ErrInvalidTTL
	}
	return time.Duration(hours) * time.Hour, nil
}

// Issue mints a token for schedule valid for ttl.
func (s *Service) Issue(tenantID, scheduleID uuid.UUID, purpose models.QRPurpose, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl).Truncate(time.Second)
	claims := Claims{
		ScheduleID: scheduleID,
		TenantID:   tenantID,
		Purpose:    purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign qr token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify checks signature, expiry and purpose. Expiry is judged against the service clock only.
func (s *Service) Verify(token string, purpose models.QRPurpose) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}
