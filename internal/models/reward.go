package models

import (
	"database/sql"
	"time"
)

// RewardLedgerEntry is one immutable grant or deduction of pineapples.
// The idempotency key carries a unique constraint in Postgres; that
// constraint is the only duplicate-grant guard.
type RewardLedgerEntry struct {
	ID             string         `json:"id" db:"id"`
	UserID         string         `json:"userId" db:"user_id"`
	ProjectID      sql.NullString `json:"-" db:"project_id"`
	EventType      string         `json:"eventType" db:"event_type"`
	Amount         int            `json:"amount" db:"amount"`
	IdempotencyKey string         `json:"idempotencyKey" db:"idempotency_key"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
}

const (
	RedemptionPending   = "pending"
	RedemptionFulfilled = "fulfilled"
	RedemptionFailed    = "failed"
)

type Redemption struct {
	ID          string       `json:"id" db:"id"`
	UserID      string       `json:"userId" db:"user_id"`
	Amount      int          `json:"amount" db:"amount"`
	Status      string       `json:"status" db:"status"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
	FulfilledAt sql.NullTime `json:"-" db:"fulfilled_at"`
}

type ActivityEvent struct {
	ID        string         `json:"id" db:"id"`
	ProjectID sql.NullString `json:"-" db:"project_id"`
	UserID    string         `json:"userId" db:"user_id"`
	EventType string         `json:"eventType" db:"event_type"`
	Metadata  []byte         `json:"metadata" db:"metadata"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}
