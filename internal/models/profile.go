package models

import (
	"time"
)

type Profile struct {
	ID               string    `json:"id" db:"id"`
	Email            string    `json:"email" db:"email"`
	DisplayName      string    `json:"displayName" db:"display_name"`
	AvatarURL        string    `json:"avatarUrl,omitempty" db:"avatar_url"`
	PineappleBalance int       `json:"pineappleBalance" db:"pineapple_balance"`
	IsAdmin          bool      `json:"isAdmin" db:"is_admin"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
}
