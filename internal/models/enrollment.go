package models

import (
	"encoding/json"
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// Enrollment statuses known to the platform. Status is stored as free text, these
// are the values the frontend filters on.
const (
	EnrollmentStatusActive    = "active"
	EnrollmentStatusCompleted = "completed"
	EnrollmentStatusEnrolled  = "enrolled"
	EnrollmentStatusDropped   = "dropped"
	EnrollmentStatusInactive  = "inactive"

	// EnrollmentStatusAll disables status filtering.
	EnrollmentStatusAll = "all"
)

// Enrollment joins a user to a course and tracks their progress.
type Enrollment struct {
	ID               string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID           string         `gorm:"type:varchar(36);not null;uniqueIndex:idx_enrollment_user_course" json:"user_id"`
	CourseID         string         `gorm:"type:varchar(36);not null;index;uniqueIndex:idx_enrollment_user_course" json:"course_id"`
	Progress         float64        `gorm:"not null;default:0" json:"progress"`
	Status           string         `gorm:"size:32;index;default:active" json:"status"`
	EnrollmentDate   time.Time      `gorm:"not null" json:"enrollment_date"`
	LastActivityAt   *time.Time     `json:"last_activity_at"`
	CompletedLessons datatypes.JSON `json:"completed_lessons"`
	IsCompleted      bool           `gorm:"not null;default:false" json:"is_completed"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// CompletedLessonIDs decodes the completed lesson list. Malformed payloads are
// reported as empty.
func (e Enrollment) CompletedLessonIDs() []string {
	ids := []string{}
	if len(e.CompletedLessons) == 0 {
		return ids
	}

	var raw []interface{}
	if err := json.Unmarshal(e.CompletedLessons, &raw); err != nil {
		return ids
	}
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			ids = append(ids, v)
		case float64:
			ids = append(ids, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return ids
}

// RosterRow is one enrollment joined with its student and course.
type RosterRow struct {
	EnrollmentID     string
	StudentID        string
	Username         string
	Email            string
	FirstName        string
	LastName         string
	StudentCreatedAt time.Time
	CourseID         string
	CourseTitle      string
	Progress         float64
	Status           string
	EnrollmentDate   time.Time
	LastActivityAt   *time.Time
}
