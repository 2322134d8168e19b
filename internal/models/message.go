package models

import (
	"database/sql"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID               string         `json:"id" db:"id"`
	ProjectID        string         `json:"projectId" db:"project_id"`
	Role             string         `json:"role" db:"role"`
	Content          string         `json:"content" db:"content"`
	Summary          sql.NullString `json:"-" db:"summary"`
	Tag              string         `json:"tag" db:"tag"`
	PineapplesEarned int            `json:"pineapplesEarned" db:"pineapples_earned"`
	CreatedAt        time.Time      `json:"createdAt" db:"created_at"`
}
