package service

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/elimu-api/internal/dto"
	"github.com/noah-isme/elimu-api/internal/models"
)

type rosterAccumulator struct {
	row         dto.StudentRow
	progressSum float64
}

// foldRoster groups enrollment rows into one entry per student. Course order
// follows row order. The representative status comes from the most recently
// active enrollment, or the first one when no activity is recorded.
func foldRoster(rows []models.RosterRow) []dto.StudentRow {
	index := make(map[string]*rosterAccumulator, len(rows))
	order := make([]*rosterAccumulator, 0, len(rows))

	for _, r := range rows {
		acc, ok := index[r.StudentID]
		if !ok {
			acc = &rosterAccumulator{row: dto.StudentRow{
				StudentID:  r.StudentID,
				Name:       models.DisplayName(r.FirstName, r.LastName, r.Username),
				Email:      r.Email,
				Courses:    []dto.RosterCourse{},
				Status:     r.Status,
				EnrolledAt: r.StudentCreatedAt,
			}}
			index[r.StudentID] = acc
			order = append(order, acc)
		}

		acc.row.Courses = append(acc.row.Courses, dto.RosterCourse{
			ID:         r.CourseID,
			Title:      r.CourseTitle,
			Progress:   r.Progress,
			EnrolledAt: r.EnrollmentDate,
			Status:     r.Status,
		})
		acc.progressSum += r.Progress

		if r.LastActivityAt != nil && (acc.row.LastActivity == nil || r.LastActivityAt.After(*acc.row.LastActivity)) {
			ts := *r.LastActivityAt
			acc.row.LastActivity = &ts
			acc.row.Status = r.Status
		}
	}

	students := make([]dto.StudentRow, 0, len(order))
	for _, acc := range order {
		acc.row.Progress = averageProgress(acc.progressSum, len(acc.row.Courses))
		students = append(students, acc.row)
	}

	sortByActivity(students)
	return students
}

// sortByActivity orders rows by last activity, newest first. Rows without
// activity go last; ties are broken by student id.
func sortByActivity(students []dto.StudentRow) {
	sort.SliceStable(students, func(i, j int) bool {
		a, b := students[i].LastActivity, students[j].LastActivity
		switch {
		case a == nil && b == nil:
			return students[i].StudentID < students[j].StudentID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return students[i].StudentID < students[j].StudentID
		default:
			return a.After(*b)
		}
	})
}

func averageProgress(sum float64, count int) int {
	if count == 0 {
		return 0
	}
	return int(math.Round(sum / float64(count)))
}

func buildStudentDetail(student models.User, enrollments []models.Enrollment) dto.StudentDetailResponse {
	detail := dto.StudentDetailResponse{
		StudentID:    student.ID,
		Name:         student.DisplayName(),
		Email:        student.Email,
		ProfileImage: student.ProfileImage,
		Bio:          student.Bio,
		Country:      student.Country,
		JoinedDate:   student.CreatedAt,
		TotalCourses: len(enrollments),
		Courses:      make([]dto.StudentCourseDetail, 0, len(enrollments)),
	}

	var sum float64
	for _, enrollment := range enrollments {
		if enrollment.IsCompleted {
			detail.CompletedCourses++
		}
		sum += enrollment.Progress

		var lastActivity *time.Time
		if enrollment.LastActivityAt != nil {
			ts := *enrollment.LastActivityAt
			lastActivity = &ts
		}

		detail.Courses = append(detail.Courses, dto.StudentCourseDetail{
			CourseID:         enrollment.CourseID,
			Title:            enrollment.Course.Title,
			Thumbnail:        enrollment.Course.Thumbnail,
			Category:         enrollment.Course.Category,
			Level:            enrollment.Course.Level,
			Progress:         enrollment.Progress,
			Status:           enrollment.Status,
			EnrolledAt:       enrollment.EnrollmentDate,
			LastActivity:     lastActivity,
			CompletedLessons: enrollment.CompletedLessonIDs(),
		})
	}
	detail.AverageProgress = averageProgress(sum, len(enrollments))

	return detail
}

// exportRecord follows the column order of RosterExportHeaders.
func exportRecord(student dto.StudentRow) []string {
	name := student.Name
	if name == "" {
		name = "N/A"
	}
	email := student.Email
	if email == "" {
		email = "N/A"
	}
	status := student.Status
	if status == "" {
		status = models.EnrollmentStatusActive
	}
	titles := make([]string, 0, len(student.Courses))
	for _, course := range student.Courses {
		titles = append(titles, course.Title)
	}
	lastActivity := "N/A"
	if student.LastActivity != nil {
		lastActivity = student.LastActivity.UTC().Format("2006-01-02")
	}

	return []string{
		name,
		email,
		strings.Join(titles, "; "),
		strconv.Itoa(student.Progress) + "%",
		status,
		lastActivity,
	}
}
