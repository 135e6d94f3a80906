package models

import (
	"strings"
	"time"
)

// User is a platform account. The instructor API only reads users.
type User struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Username     string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FirstName    string    `gorm:"size:150" json:"first_name"`
	LastName     string    `gorm:"size:150" json:"last_name"`
	ProfileImage string    `gorm:"size:512" json:"profile_image"`
	Bio          string    `gorm:"type:text" json:"bio"`
	Country      string    `gorm:"size:100" json:"country"`
	Role         string    `gorm:"size:32;index;default:student" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName joins first and last name, falling back to the username when
// either part is missing.
func (u User) DisplayName() string {
	return DisplayName(u.FirstName, u.LastName, u.Username)
}

// DisplayName applies the roster naming rule to raw name parts.
func DisplayName(first, last, username string) string {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)
	if first != "" && last != "" {
		return first + " " + last
	}
	return username
}
