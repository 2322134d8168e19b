package models

import (
	"database/sql"
	"time"
)

const (
	ListingActive    = "active"
	ListingSold      = "sold"
	ListingWithdrawn = "withdrawn"
)

type Listing struct {
	ID          string        `json:"id" db:"id"`
	ProjectID   string        `json:"projectId" db:"project_id"`
	OwnerID     string        `json:"ownerId" db:"owner_id"`
	Title       string        `json:"title" db:"title"`
	Description string        `json:"description" db:"description"`
	AskingPrice sql.NullInt64 `json:"-" db:"asking_price"`
	Status      string        `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"createdAt" db:"created_at"`
}

// Offer is a non-binding AI valuation stored against a project.
type Offer struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"projectId" db:"project_id"`
	UserID    string    `json:"userId" db:"user_id"`
	LowRange  int       `json:"lowRange" db:"low_range"`
	HighRange int       `json:"highRange" db:"high_range"`
	Reasoning string    `json:"reasoning" db:"reasoning"`
	Signals   []byte    `json:"-" db:"signals"`
	Expired   bool      `json:"expired" db:"expired"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
