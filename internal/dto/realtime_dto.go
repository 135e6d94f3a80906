package dto

import "time"

// Realtime event names exchanged with the instructor dashboard.
const (
	RealtimeEventJoin          = "instructor:join"
	RealtimeEventLeave         = "instructor:leave"
	RealtimeEventStudentUpdate = "instructor:student_update"
	RealtimeEventJoined        = "instructor:joined"
	RealtimeEventError         = "error"
)

// RealtimeClientMessage is sent by dashboard sockets to manage room membership.
type RealtimeClientMessage struct {
	Event        string `json:"event" validate:"required,oneof=instructor:join instructor:leave"`
	InstructorID string `json:"instructorId" validate:"required,uuid"`
}

// RosterEventRequest asks the relay to signal an instructor's dashboards.
type RosterEventRequest struct {
	InstructorID string `json:"instructorId" validate:"required,uuid"`
	StudentID    string `json:"studentId" validate:"omitempty,uuid"`
	CourseID     string `json:"courseId" validate:"omitempty,uuid"`
	Reason       string `json:"reason" validate:"omitempty,oneof=enrollment progress status completion"`
	Message      string `json:"message" validate:"omitempty,max=500"`
}

// RealtimeMessage is pushed to dashboard sockets.
type RealtimeMessage struct {
	Event        string    `json:"event"`
	InstructorID string    `json:"instructorId,omitempty"`
	StudentID    string    `json:"studentId,omitempty"`
	CourseID     string    `json:"courseId,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Message      string    `json:"message,omitempty"`
	SentAt       time.Time `json:"sentAt"`
}
