package models

import "time"

// Profile is a registered user. Coaches are profiles with RoleCoach.
type Profile struct {
	ID             string    `json:"id" yaml:"id"`
	Email          string    `json:"email" yaml:"email"`
	DisplayName    string    `json:"display_name" yaml:"display_name"`
	Role           string    `json:"role" yaml:"role"`
	PasswordHash   string    `json:"-" yaml:"-"`
	Password       string    `json:"-" yaml:"password"`
	TelegramChatID int64     `json:"-" yaml:"telegram_chat_id"`
	CreatedAt      time.Time `json:"created_at" yaml:"-"`
}

func (p *Profile) IsCoach() bool {
	return p != nil && p.Role == RoleCoach
}

// Coach is the public projection of a coach profile.
type Coach struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

func (p *Profile) AsCoach() Coach {
	return Coach{ID: p.ID, DisplayName: p.DisplayName}
}

// Session is the authenticated caller. It is passed into every
// operation that needs an identity.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) IsZero() bool {
	return s.UserID == ""
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
