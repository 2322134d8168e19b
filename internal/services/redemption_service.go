package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/vamo-app/backend/internal/models"
	"github.com/vamo-app/backend/internal/rewards"
)

// RedemptionService converts pineapples into pending external-fulfillment
// requests and drives their admin lifecycle.
type RedemptionService struct {
	db *sql.DB
}

func NewRedemptionService(db *sql.DB) *RedemptionService {
	return &RedemptionService{db: db}
}

type RedeemResult struct {
	Redemption models.Redemption `json:"redemption"`
	NewBalance int               `json:"newBalance"`
}

// Redeem debits the balance, records a pending redemption and writes the
// matching negative ledger row, all in one transaction. The ledger key is
// derived from the redemption id, so the redemption insert must come first.
// Any failure rolls the whole transaction back, restoring the balance.
func (s *RedemptionService) Redeem(ctx context.Context, userID string, amount int) (*RedeemResult, error) {
	if minimum := rewards.MinimumRedemption(); amount < minimum {
		return nil, &BelowMinimumError{Minimum: minimum, Requested: amount}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin redeem: %w", err)
	}
	defer tx.Rollback()

	var balance int
	err = tx.QueryRowContext(ctx,
		`SELECT pineapple_balance FROM profiles WHERE id = $1 FOR UPDATE`,
		userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock profile: %w", err)
	}

	if balance < amount {
		return nil, &InsufficientBalanceError{Requested: amount, Available: balance}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE profiles SET pineapple_balance = pineapple_balance - $1 WHERE id = $2`,
		amount, userID); err != nil {
		return nil, fmt.Errorf("debit balance: %w", err)
	}

	redemption := models.Redemption{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Status:    models.RedemptionPending,
		CreatedAt: time.Now(),
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO redemptions (id, user_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		redemption.ID, redemption.UserID, redemption.Amount, redemption.Status, redemption.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}

	// Ledger key depends on the redemption id created above.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO reward_ledger (id, user_id, project_id, event_type, amount, idempotency_key, created_at)
		VALUES ($1, $2, NULL, $3, $4, $5, $6)`,
		uuid.NewString(), userID, "reward_redeemed", -amount,
		rewards.RedemptionKey(redemption.ID), time.Now()); err != nil {
		return nil, fmt.Errorf("insert redemption ledger entry: %w", err)
	}

	metadata, _ := json.Marshal(map[string]any{"amount": amount, "redemption_id": redemption.ID})
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO activity_events (id, project_id, user_id, event_type, metadata, created_at)
		VALUES ($1, NULL, $2, $3, $4, $5)`,
		uuid.NewString(), userID, "reward_redeemed", metadata, time.Now()); err != nil {
		return nil, fmt.Errorf("log redemption activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit redeem: %w", err)
	}

	log.Printf("[REDEEM] User %s redeemed %d, redemption %s pending", userID, amount, redemption.ID)
	return &RedeemResult{Redemption: redemption, NewBalance: balance - amount}, nil
}

// VoucherPNG renders a QR voucher for one of the caller's redemptions. The
// payload is the base64 redemption reference an admin scans at fulfillment.
func (s *RedemptionService) VoucherPNG(ctx context.Context, userID, redemptionID string) (string, error) {
	var red models.Redemption
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, amount, status, created_at, fulfilled_at
		FROM redemptions WHERE id = $1 AND user_id = $2`,
		redemptionID, userID).Scan(&red.ID, &red.UserID, &red.Amount, &red.Status, &red.CreatedAt, &red.FulfilledAt)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("fetch redemption: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"redemptionId": red.ID,
		"userId":       red.UserID,
		"amount":       red.Amount,
		"status":       red.Status,
	})
	if err != nil {
		return "", err
	}

	reference := base64.URLEncoding.EncodeToString(payload)
	qr, err := qrcode.New(reference, qrcode.Medium)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// IsAdmin reports whether the profile carries the admin flag.
func (s *RedemptionService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var isAdmin bool
	err := s.db.QueryRowContext(ctx,
		`SELECT is_admin FROM profiles WHERE id = $1`, userID).Scan(&isAdmin)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return isAdmin, err
}

// ListPending returns redemptions awaiting fulfillment, oldest first.
func (s *RedemptionService) ListPending(ctx context.Context) ([]models.Redemption, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, status, created_at, fulfilled_at
		FROM redemptions
		WHERE status = $1
		ORDER BY created_at ASC`, models.RedemptionPending)
	if err != nil {
		return nil, fmt.Errorf("list pending redemptions: %w", err)
	}
	defer rows.Close()

	pending := []models.Redemption{}
	for rows.Next() {
		var red models.Redemption
		if err := rows.Scan(&red.ID, &red.UserID, &red.Amount, &red.Status,
			&red.CreatedAt, &red.FulfilledAt); err != nil {
			return nil, err
		}
		pending = append(pending, red)
	}
	return pending, rows.Err()
}

// Fulfill marks a pending redemption fulfilled and stamps fulfilled_at.
func (s *RedemptionService) Fulfill(ctx context.Context, redemptionID string) error {
	return s.transition(ctx, redemptionID, models.RedemptionFulfilled)
}

// Fail marks a pending redemption failed.
func (s *RedemptionService) Fail(ctx context.Context, redemptionID string) error {
	return s.transition(ctx, redemptionID, models.RedemptionFailed)
}

func (s *RedemptionService) transition(ctx context.Context, redemptionID, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE redemptions
		SET status = $1, fulfilled_at = $2
		WHERE id = $3 AND status = $4`,
		status, time.Now(), redemptionID, models.RedemptionPending)
	if err != nil {
		return fmt.Errorf("update redemption status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	log.Printf("[REDEEM] Redemption %s -> %s", redemptionID, status)
	return nil
}
