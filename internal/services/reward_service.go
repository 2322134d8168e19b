package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/vamo-app/backend/internal/models"
	"github.com/vamo-app/backend/internal/rewards"
)

// RewardService owns the pineapple ledger: idempotent grants, the hourly
// rate-limit window and the cached profile balance. The balance is only ever
// touched with an atomic increment inside the same transaction as the ledger
// insert, so concurrent grants cannot lose updates.
type RewardService struct {
	db *sql.DB
}

func NewRewardService(db *sql.DB) *RewardService {
	return &RewardService{db: db}
}

type GrantRequest struct {
	UserID         string `json:"userId" validate:"required,uuid4"`
	ProjectID      string `json:"projectId" validate:"omitempty,uuid4"`
	EventType      string `json:"eventType" validate:"required,min=1"`
	IdempotencyKey string `json:"idempotencyKey" validate:"required,min=1"`
}

type GrantResult struct {
	Rewarded   bool   `json:"rewarded"`
	Amount     int    `json:"amount"`
	NewBalance int    `json:"newBalance"`
	Message    string `json:"message"`
}

// uniqueViolation is the Postgres error code raised when the ledger's
// idempotency_key constraint rejects a duplicate insert.
const uniqueViolation = "23505"

// GrantReward awards pineapples for one logical action. callerID is the
// authenticated user; req.UserID must match it. A duplicate idempotency key
// is absorbed, not surfaced: the grant simply reports rewarded=false with the
// balance unchanged. A caller at the hourly ceiling gets the same shape with
// a "Rate limited" message and no ledger write.
func (s *RewardService) GrantReward(ctx context.Context, callerID string, req GrantRequest) (*GrantResult, error) {
	if req.UserID != callerID {
		return nil, ErrForbidden
	}

	recent, err := s.CountRecentRewards(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}

	amount := rewards.Amount(req.EventType)
	rateLimited := recent >= rewards.MaxRewardsPerHour()
	if rateLimited {
		amount = 0
	}

	if amount == 0 {
		balance, err := s.Balance(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		message := "Nothing to award"
		if rateLimited {
			log.Printf("[REWARDS] User %s rate limited (%d grants in window)", req.UserID, recent)
			message = "Rate limited"
		}
		return &GrantResult{Rewarded: false, Amount: 0, NewBalance: balance, Message: message}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin grant: %w", err)
	}
	defer tx.Rollback()

	var projectID any
	if req.ProjectID != "" {
		projectID = req.ProjectID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reward_ledger (id, user_id, project_id, event_type, amount, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), req.UserID, projectID, req.EventType, amount, req.IdempotencyKey, time.Now())
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			tx.Rollback()
			balance, berr := s.Balance(ctx, req.UserID)
			if berr != nil {
				return nil, berr
			}
			log.Printf("[REWARDS] Duplicate idempotency key for user %s: %s", req.UserID, req.IdempotencyKey)
			return &GrantResult{Rewarded: false, Amount: 0, NewBalance: balance, Message: "Already awarded"}, nil
		}
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	var newBalance int
	err = tx.QueryRowContext(ctx, `
		UPDATE profiles
		SET pineapple_balance = pineapple_balance + $1
		WHERE id = $2
		RETURNING pineapple_balance`,
		amount, req.UserID).Scan(&newBalance)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("profile %s not found for balance update", req.UserID)
		}
		return nil, fmt.Errorf("update balance: %w", err)
	}

	if err := s.logActivity(ctx, tx, projectID, req.UserID, "reward_earned", map[string]any{
		"event":  req.EventType,
		"amount": amount,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit grant: %w", err)
	}

	log.Printf("[REWARDS] Granted %d to user %s for %s", amount, req.UserID, req.EventType)
	return &GrantResult{Rewarded: true, Amount: amount, NewBalance: newBalance, Message: "Reward granted"}, nil
}

// CountRecentRewards counts a user's ledger rows inside the trailing
// one-hour window. The window slides with the clock; it is not bucketed.
func (s *RewardService) CountRecentRewards(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reward_ledger
		WHERE user_id = $1 AND created_at >= $2`,
		userID, time.Now().Add(-time.Hour)).Scan(&count)
	return count, err
}

// CountRecentPrompts counts chat_prompt grants for one project inside the
// trailing hour. The chat endpoint limits per project, not per user.
func (s *RewardService) CountRecentPrompts(ctx context.Context, projectID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reward_ledger
		WHERE project_id = $1 AND event_type = 'chat_prompt' AND created_at >= $2`,
		projectID, time.Now().Add(-time.Hour)).Scan(&count)
	return count, err
}

// Balance reads the cached profile balance.
func (s *RewardService) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx,
		`SELECT pineapple_balance FROM profiles WHERE id = $1`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("fetch balance: %w", err)
	}
	return balance, nil
}

type WalletView struct {
	Balance     int                        `json:"balance"`
	Ledger      []models.RewardLedgerEntry `json:"ledger"`
	Redemptions []models.Redemption        `json:"redemptions"`
}

// Wallet assembles the wallet page payload: balance, recent ledger entries
// and the user's redemption requests.
func (s *RewardService) Wallet(ctx context.Context, userID string) (*WalletView, error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &WalletView{Balance: balance, Ledger: []models.RewardLedgerEntry{}, Redemptions: []models.Redemption{}}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, project_id, event_type, amount, idempotency_key, created_at
		FROM reward_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 50`, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry models.RewardLedgerEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.ProjectID, &entry.EventType,
			&entry.Amount, &entry.IdempotencyKey, &entry.CreatedAt); err != nil {
			return nil, err
		}
		view.Ledger = append(view.Ledger, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	redRows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, status, created_at, fulfilled_at
		FROM redemptions
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch redemptions: %w", err)
	}
	defer redRows.Close()

	for redRows.Next() {
		var red models.Redemption
		if err := redRows.Scan(&red.ID, &red.UserID, &red.Amount, &red.Status,
			&red.CreatedAt, &red.FulfilledAt); err != nil {
			return nil, err
		}
		view.Redemptions = append(view.Redemptions, red)
	}
	return view, redRows.Err()
}

// logActivity appends an activity_events row inside the caller's transaction.
func (s *RewardService) logActivity(ctx context.Context, tx *sql.Tx, projectID any, userID, eventType string, metadata map[string]any) error {
	payload, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO activity_events (id, project_id, user_id, event_type, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), projectID, userID, eventType, payload, time.Now())
	if err != nil {
		return fmt.Errorf("log activity: %w", err)
	}
	return nil
}
