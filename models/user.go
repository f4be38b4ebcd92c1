package models

import (
	"time"
)

// User is a borrower or an administrator. The UUID doubles as the webauthn user handle.
type User struct {
	ID           string  `gorm:"primaryKey;type:uuid" json:"id"`
	Name         string  `gorm:"size:255;not null;index" json:"name"`
	Role         Role    `gorm:"size:20;not null;default:user" json:"role"`
	ClassYear    *string `gorm:"size:40;index" json:"class_year"`
	Username     *string `gorm:"size:255;uniqueIndex" json:"username,omitempty"`
	PasswordHash string  `gorm:"size:255" json:"-"`
	Barcode      *string `gorm:"size:120;uniqueIndex" json:"barcode"`
	Email        string  `gorm:"size:255" json:"email,omitempty"`
	Phone        string  `gorm:"size:40" json:"phone,omitempty"`
	Notes        string  `gorm:"type:text" json:"notes,omitempty"`

	LastLoginAt *time.Time `gorm:"index" json:"last_login_at,omitempty"`
	LastSeenAt  *time.Time `gorm:"index" json:"last_seen_at,omitempty"`
	LoginCount  int64      `gorm:"not null;default:0" json:"login_count"`
	LastLoginIP string     `gorm:"size:45" json:"-"`
	LastLoginUA string     `gorm:"size:255" json:"-"`

	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Credentials []Credential `json:"-"`
}

func (User) TableName() string {
	return "lager_users"
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// DisplayName prefers the login username, falling back to the real name.
func (u *User) DisplayName() string {
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	return u.Name
}

// PublicUser is what anonymous and borrower sessions may see about other people.
type PublicUser struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Role      Role    `json:"role"`
	ClassYear *string `json:"class_year"`
	Barcode   *string `json:"barcode"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Role:      u.Role,
		ClassYear: u.ClassYear,
		Barcode:   u.Barcode,
	}
}
