package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/elimu-api/internal/models"
)

// UserRepository reads user accounts.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}
