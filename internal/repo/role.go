package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mbelkin/auth-service/internal/models"
)

type RoleRepo struct {
	DB *gorm.DB
}

func (r *RoleRepo) FindByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	err := r.DB.WithContext(ctx).First(&role, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &role, nil
}

func (r *RoleRepo) Create(ctx context.Context, role *models.Role) error {
	if err := r.DB.WithContext(ctx).Create(role).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Ensure upserts a role by name; seeding at startup runs through this
// so it stays idempotent.
func (r *RoleRepo) Ensure(ctx context.Context, name string) (*models.Role, error) {
	role := models.Role{Name: name}
	err := r.DB.WithContext(ctx).Where("name = ?", name).FirstOrCreate(&role).Error
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &role, nil
}
