package schedules

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/pkg/storage"
)

// SetCoverPhoto converts the uploaded image to a bounded WebP, stores it and replaces any previous cover.
func (s *Service) SetCoverPhoto(ctx context.Context, tenantID, id uuid.UUID, data []byte, filename string) (*models.Schedule, error) {
	if s.media == nil {
		return nil, ErrStorageUnavailable
	}
	sc, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	img, err := storage.DecodeImage(data, filename)
	if errors.Is(err, storage.ErrUnsupportedImage) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnsupportedImage, err)
	}
	encoded, err := storage.EncodeCoverPhoto(img)
	if err != nil {
		return nil, err
	}
	key := storage.CoverPhotoKey(tenantID, id)
	url, err := s.media.Upload(ctx, key, "image/webp", bytes.NewReader(encoded), int64(len(encoded)))
	if err != nil {
		return nil, fmt.Errorf("upload cover photo: %w", err)
	}
	if err := s.store.SetCoverPhoto(ctx, tenantID, id, url, key); err != nil {
		return nil, err
	}
	if sc.CoverPhotoKey != "" {
		if err := s.media.Delete(ctx, sc.CoverPhotoKey); err != nil {
			s.logger.Warn("delete previous cover photo failed", zap.Error(err), zap.String("key", sc.CoverPhotoKey))
		}
	}
	sc.CoverPhotoURL = url
	sc.CoverPhotoKey = key
	return sc, nil
}

// RemoveCoverPhoto clears the schedule's cover photo.
func (s *Service) RemoveCoverPhoto(ctx context.Context, tenantID, id uuid.UUID) error {
	if s.media == nil {
		return ErrStorageUnavailable
	}
	sc, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if sc.CoverPhotoKey == "" {
		return nil
	}
	if err := s.store.SetCoverPhoto(ctx, tenantID, id, "", ""); err != nil {
		return err
	}
	if err := s.media.Delete(ctx, sc.CoverPhotoKey); err != nil {
		s.logger.Warn("delete cover photo failed", zap.Error(err), zap.String("key", sc.CoverPhotoKey))
	}
	return nil
}
