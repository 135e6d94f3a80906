package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/elimu-api/internal/models"
)

func newRosterTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Course{}, &models.Enrollment{}))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username, email, first, last string) models.User {
	t.Helper()
	user := models.User{ID: uuid.NewString(), Username: username, Email: email, FirstName: first, LastName: last}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createCourse(t *testing.T, db *gorm.DB, instructorID, title string) models.Course {
	t.Helper()
	course := models.Course{ID: uuid.NewString(), InstructorID: instructorID, Title: title}
	require.NoError(t, db.Create(&course).Error)
	return course
}

func enroll(t *testing.T, db *gorm.DB, user models.User, course models.Course, progress float64, status string, enrolledAt time.Time) models.Enrollment {
	t.Helper()
	enrollment := models.Enrollment{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		CourseID:       course.ID,
		Progress:       progress,
		Status:         status,
		EnrollmentDate: enrolledAt,
	}
	require.NoError(t, db.Create(&enrollment).Error)
	return enrollment
}
