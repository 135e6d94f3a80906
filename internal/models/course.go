package models

import "time"

// Course is owned by exactly one instructor.
type Course struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	InstructorID string    `gorm:"type:varchar(36);index;not null" json:"instructor_id"`
	Title        string    `gorm:"size:200;not null" json:"title"`
	Thumbnail    string    `gorm:"size:512" json:"thumbnail"`
	Category     string    `gorm:"size:100" json:"category"`
	Level        string    `gorm:"size:50" json:"level"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
