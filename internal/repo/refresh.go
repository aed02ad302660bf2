package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mbelkin/auth-service/internal/models"
)

// RefreshTokenRepo persists refresh-token bookkeeping rows keyed by
// (token hash, user id).
type RefreshTokenRepo struct {
	DB *gorm.DB
}

func (r *RefreshTokenRepo) Create(ctx context.Context, rec *models.RefreshToken) error {
	if err := r.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) FindFirst(ctx context.Context, tokenHash string, userID uint) (*models.RefreshToken, error) {
	var rec models.RefreshToken
	err := r.DB.WithContext(ctx).
		First(&rec, "token = ? AND user_id = ?", tokenHash, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &rec, nil
}

// DeleteByToken clears any record with the same hash regardless of
// owner; issuance runs this before inserting a fresh row.
func (r *RefreshTokenRepo) DeleteByToken(ctx context.Context, tokenHash string) error {
	err := r.DB.WithContext(ctx).
		Where("token = ?", tokenHash).
		Delete(&models.RefreshToken{}).Error
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteByTokenAndUser removes the matching record and reports how many
// rows went away. Rotation uses the count to detect losing a concurrent
// rotation race.
func (r *RefreshTokenRepo) DeleteByTokenAndUser(ctx context.Context, tokenHash string, userID uint) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("token = ? AND user_id = ?", tokenHash, userID).
		Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("db error: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *RefreshTokenRepo) DeleteAllForUser(ctx context.Context, userID uint) error {
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.RefreshToken{}).Error
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
