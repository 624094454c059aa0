package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/domain"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/pkg/log"
)

// GormShareStore implements ShareStore using GORM.
type GormShareStore struct {
	db *gorm.DB
}

// NewGormShareStore creates a GORM-based share store.
func NewGormShareStore(db *gorm.DB) *GormShareStore {
	return &GormShareStore{db: db}
}

// GetByToken retrieves a share by its token.
func (s *GormShareStore) GetByToken(ctx context.Context, shareToken string) (*domain.Share, error) {
	var model domain.ShareModel
	result := s.db.WithContext(ctx).First(&model, "share_token = ?", shareToken)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrShareNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str(log.FieldShareToken, shareToken).Msg("failed to get share by token")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// IncrementViewCount bumps the view counter for a share.
func (s *GormShareStore) IncrementViewCount(ctx context.Context, shareToken string) error {
	result := s.db.WithContext(ctx).
		Model(&domain.ShareModel{}).
		Where("share_token = ?", shareToken).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrShareNotFound
	}
	return nil
}
