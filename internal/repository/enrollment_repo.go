package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/elimu-api/internal/models"
)

// RosterFilter narrows the enrollments that feed an instructor roster.
type RosterFilter struct {
	CourseIDs []string
	Status    string
	Search    string
}

// EnrollmentRepository exposes the read paths used by the roster.
type EnrollmentRepository interface {
	ListRosterRows(ctx context.Context, filter RosterFilter) ([]models.RosterRow, error)
	ListForStudent(ctx context.Context, studentID string, courseIDs []string) ([]models.Enrollment, error)
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository constructs a repository backed by GORM.
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

const rosterColumns = `e.id AS enrollment_id, e.user_id AS student_id,
	u.username, u.email, u.first_name, u.last_name, u.created_at AS student_created_at,
	e.course_id, c.title AS course_title,
	e.progress, e.status, e.enrollment_date, e.last_activity_at`

func (r *enrollmentRepository) ListRosterRows(ctx context.Context, filter RosterFilter) ([]models.RosterRow, error) {
	if len(filter.CourseIDs) == 0 {
		return []models.RosterRow{}, nil
	}

	query := r.db.WithContext(ctx).
		Table("enrollments AS e").
		Select(rosterColumns).
		Joins("JOIN users u ON u.id = e.user_id").
		Joins("JOIN courses c ON c.id = e.course_id").
		Where("e.course_id IN ?", filter.CourseIDs)

	if filter.Status != "" {
		query = query.Where("e.status = ?", filter.Status)
	}

	// SQLite's LOWER only folds ASCII, so search there runs after the scan.
	searchInSQL := r.db.Dialector.Name() == "postgres"
	if filter.Search != "" && searchInSQL {
		like := "%" + escapeLike(strings.ToLower(filter.Search)) + "%"
		query = query.Where(`(LOWER(u.username) LIKE ? ESCAPE '\' OR LOWER(u.email) LIKE ? ESCAPE '\'
			OR LOWER(u.first_name) LIKE ? ESCAPE '\' OR LOWER(u.last_name) LIKE ? ESCAPE '\'
			OR LOWER(c.title) LIKE ? ESCAPE '\')`, like, like, like, like, like)
	}

	rows := make([]models.RosterRow, 0)
	if err := query.Order("e.enrollment_date ASC").Order("e.id ASC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list roster rows: %w", err)
	}
	if filter.Search != "" && !searchInSQL {
		rows = filterRosterRows(rows, filter.Search)
	}

	return rows, nil
}

func filterRosterRows(rows []models.RosterRow, search string) []models.RosterRow {
	term := strings.ToLower(search)
	matched := make([]models.RosterRow, 0, len(rows))
	for _, row := range rows {
		for _, field := range []string{row.Username, row.Email, row.FirstName, row.LastName, row.CourseTitle} {
			if strings.Contains(strings.ToLower(field), term) {
				matched = append(matched, row)
				break
			}
		}
	}
	return matched
}

func (r *enrollmentRepository) ListForStudent(ctx context.Context, studentID string, courseIDs []string) ([]models.Enrollment, error) {
	if len(courseIDs) == 0 {
		return []models.Enrollment{}, nil
	}

	var enrollments []models.Enrollment
	if err := r.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", studentID).
		Where("course_id IN ?", courseIDs).
		Order("enrollment_date ASC").
		Order("id ASC").
		Find(&enrollments).Error; err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}

	return enrollments, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
