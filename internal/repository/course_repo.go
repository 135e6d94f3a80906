package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/elimu-api/internal/models"
)

// CourseRepository resolves course ownership.
type CourseRepository interface {
	ListIDsByInstructor(ctx context.Context, instructorID string) ([]string, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository constructs a repository backed by GORM.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) ListIDsByInstructor(ctx context.Context, instructorID string) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&models.Course{}).
		Where("instructor_id = ?", instructorID).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list instructor courses: %w", err)
	}
	return ids, nil
}
