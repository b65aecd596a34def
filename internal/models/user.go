package models

import (
	"strings"
	"time"
)

// User represents a registered user as stored.
type User struct {
	ID           string    `gorm:"primaryKey;type:varchar(26)"`
	Name         string    `gorm:"type:varchar(30);not null"`
	NameFolded   string    `gorm:"type:varchar(120);not null;default:''"` // FoldName(Name), used by search
	Email        string    `gorm:"uniqueIndex:idx_users_email;type:varchar(40);not null"`
	Registration string    `gorm:"uniqueIndex:idx_users_registration;type:varchar(10);not null"`
	PasswordHash string    `gorm:"type:varchar(255);not null"` // never leaves the service layer
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time
}

// FoldName lowercases a name with Unicode case folding, so "Ângela" and
// "ÂNGELA" compare equal on every store.
func FoldName(name string) string {
	return strings.ToLower(name)
}

// PublicUser is the sanitized user shape returned by the API.
type PublicUser struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Registration string    `json:"registration"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Public strips the password hash.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Registration: u.Registration,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// CreateUserRequest is the payload of POST /users.
type CreateUserRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=30,personname"`
	Email        string `json:"email" validate:"required,min=1,max=40,email"`
	Registration string `json:"registration" validate:"required,min=4,max=10,number"`
	Password     string `json:"password" validate:"required,len=6,alphanum"`
}

// UpdateUserRequest is the payload of PUT /users/:id. Nil fields are left
// untouched.
type UpdateUserRequest struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,min=1,max=30,personname"`
	Email        *string `json:"email,omitempty" validate:"omitempty,min=1,max=40,email"`
	Registration *string `json:"registration,omitempty" validate:"omitempty,min=4,max=10,number"`
	Password     *string `json:"password,omitempty" validate:"omitempty,len=6,alphanum"`
}
