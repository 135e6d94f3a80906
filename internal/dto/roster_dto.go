package dto

import "time"

// RosterListRequest carries the normalised query of the roster list.
type RosterListRequest struct {
	Page   int
	Limit  int
	Search string
	Status string
}

// RosterExportRequest carries the filters of the CSV export.
type RosterExportRequest struct {
	Search string
	Status string
}

// RosterPagination describes the window returned by the roster list.
type RosterPagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// RosterCourse is one enrollment of a student inside a roster row.
type RosterCourse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Progress   float64   `json:"progress"`
	EnrolledAt time.Time `json:"enrolledAt"`
	Status     string    `json:"status"`
}

// StudentRow is one distinct student of an instructor roster.
type StudentRow struct {
	StudentID    string         `json:"studentId"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Courses      []RosterCourse `json:"courses"`
	Progress     int            `json:"progress"`
	Status       string         `json:"status"`
	LastActivity *time.Time     `json:"lastActivity"`
	EnrolledAt   time.Time      `json:"enrolledAt"`
}

// RosterListResponse is a page of roster rows.
type RosterListResponse struct {
	Items      []StudentRow     `json:"items"`
	Pagination RosterPagination `json:"pagination"`
}

// StudentCourseDetail is the per-course breakdown of a student detail.
type StudentCourseDetail struct {
	CourseID         string     `json:"courseId"`
	Title            string     `json:"title"`
	Thumbnail        string     `json:"thumbnail,omitempty"`
	Category         string     `json:"category"`
	Level            string     `json:"level"`
	Progress         float64    `json:"progress"`
	Status           string     `json:"status"`
	EnrolledAt       time.Time  `json:"enrolledAt"`
	LastActivity     *time.Time `json:"lastActivity"`
	CompletedLessons []string   `json:"completedLessons"`
}

// StudentDetailResponse is the full profile of one student as seen by an instructor.
type StudentDetailResponse struct {
	StudentID        string                `json:"studentId"`
	Name             string                `json:"name"`
	Email            string                `json:"email"`
	ProfileImage     string                `json:"profileImage,omitempty"`
	Bio              string                `json:"bio,omitempty"`
	Country          string                `json:"country,omitempty"`
	JoinedDate       time.Time             `json:"joinedDate"`
	TotalCourses     int                   `json:"totalCourses"`
	CompletedCourses int                   `json:"completedCourses"`
	AverageProgress  int                   `json:"averageProgress"`
	Courses          []StudentCourseDetail `json:"courses"`
}
