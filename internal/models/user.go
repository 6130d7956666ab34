package models

import (
	"strconv"
	"time"
)

const (
	RoleMentor = "mentor"
	RoleMentee = "mentee"
	RoleAdmin  = "admin"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChatID is the stable string identity used across the chat layer: channel
// derivation, presence membership and wire payloads all speak string ids.
func (u *User) ChatID() string {
	return strconv.FormatInt(u.ID, 10)
}

// Profile holds the presentation fields for either role. The chat pipeline
// snapshots Name/Profession/Bio/PhotoURL into the conversation document at
// creation time and never re-reads them.
type Profile struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	FullName           *string   `json:"full_name"`
	Profession         *string   `json:"profession"`
	SkillFocus         *string   `json:"skill_focus"`
	Bio                *string   `json:"bio"`
	PhotoURL           *string   `json:"photo_url"`
	MentorID           *int64    `json:"mentor_id,omitempty"`
	OnboardingComplete bool      `json:"onboarding_complete"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type PaginationMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
