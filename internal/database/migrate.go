package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/elimu-api/internal/models"
)

// Migrate creates or updates the tables read by the instructor API.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Course{}, &models.Enrollment{})
}
