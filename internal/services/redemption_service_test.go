package services

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestRedemptionService_Redeem(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewRedemptionService(db)
	ctx := context.Background()

	t.Run("successful redemption", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT pineapple_balance FROM profiles WHERE id = \\$1 FOR UPDATE").
			WithArgs(testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"pineapple_balance"}).AddRow(100))
		mock.ExpectExec("UPDATE profiles SET pineapple_balance = pineapple_balance - \\$1").
			WithArgs(50, testUserID).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO redemptions").
			WithArgs(sqlmock.AnyArg(), testUserID, 50, "pending", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO reward_ledger").
			WithArgs(sqlmock.AnyArg(), testUserID, "reward_redeemed", -50, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO activity_events").
			WithArgs(sqlmock.AnyArg(), testUserID, "reward_redeemed", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		result, err := service.Redeem(ctx, testUserID, 50)
		assert.NoError(t, err)
		assert.Equal(t, 50, result.NewBalance)
		assert.Equal(t, 50, result.Redemption.Amount)
		assert.Equal(t, "pending", result.Redemption.Status)
		assert.NotEmpty(t, result.Redemption.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance rolls back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT pineapple_balance FROM profiles WHERE id = \\$1 FOR UPDATE").
			WithArgs(testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"pineapple_balance"}).AddRow(30))
		mock.ExpectRollback()

		_, err := service.Redeem(ctx, testUserID, 50)
		var insufficient *InsufficientBalanceError
		assert.ErrorAs(t, err, &insufficient)
		assert.Equal(t, 50, insufficient.Requested)
		assert.Equal(t, 30, insufficient.Available)
		assert.Contains(t, err.Error(), "you need 50 pineapples but have 30")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("below minimum never touches the database", func(t *testing.T) {
		_, err := service.Redeem(ctx, testUserID, 49)
		var belowMin *BelowMinimumError
		assert.ErrorAs(t, err, &belowMin)
		assert.Equal(t, 50, belowMin.Minimum)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing profile", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT pineapple_balance FROM profiles WHERE id = \\$1 FOR UPDATE").
			WithArgs(testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"pineapple_balance"}))
		mock.ExpectRollback()

		_, err := service.Redeem(ctx, testUserID, 50)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRedemptionService_VoucherPNG(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewRedemptionService(db)

	t.Run("renders a QR voucher", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, amount, status, created_at, fulfilled_at").
			WithArgs("red1", testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount", "status", "created_at", "fulfilled_at"}).
				AddRow("red1", testUserID, 50, "pending", time.Now(), nil))

		voucher, err := service.VoucherPNG(context.Background(), testUserID, "red1")
		assert.NoError(t, err)

		raw, err := base64.StdEncoding.DecodeString(voucher)
		assert.NoError(t, err)
		// PNG magic bytes
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, raw[:4])
	})

	t.Run("foreign redemption is not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, amount, status, created_at, fulfilled_at").
			WithArgs("red1", testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount", "status", "created_at", "fulfilled_at"}))

		_, err := service.VoucherPNG(context.Background(), testUserID, "red1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRedemptionService_Lifecycle(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewRedemptionService(db)
	ctx := context.Background()

	t.Run("fulfill pending redemption", func(t *testing.T) {
		mock.ExpectExec("UPDATE redemptions").
			WithArgs("fulfilled", sqlmock.AnyArg(), "red1", "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, service.Fulfill(ctx, "red1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fail pending redemption", func(t *testing.T) {
		mock.ExpectExec("UPDATE redemptions").
			WithArgs("failed", sqlmock.AnyArg(), "red1", "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, service.Fail(ctx, "red1"))
	})

	t.Run("transition on settled redemption", func(t *testing.T) {
		mock.ExpectExec("UPDATE redemptions").
			WithArgs("fulfilled", sqlmock.AnyArg(), "red1", "pending").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, service.Fulfill(ctx, "red1"), ErrNotFound)
	})

	t.Run("list pending", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, amount, status, created_at, fulfilled_at").
			WithArgs("pending").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount", "status", "created_at", "fulfilled_at"}).
				AddRow("red1", testUserID, 50, "pending", time.Now(), nil).
				AddRow("red2", testUserID, 75, "pending", time.Now(), nil))

		pending, err := service.ListPending(ctx)
		assert.NoError(t, err)
		assert.Len(t, pending, 2)
		assert.Equal(t, 75, pending[1].Amount)
	})
}

func TestRedemptionService_IsAdmin(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewRedemptionService(db)

	t.Run("admin profile", func(t *testing.T) {
		mock.ExpectQuery("SELECT is_admin FROM profiles").
			WithArgs(testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"is_admin"}).AddRow(true))

		isAdmin, err := service.IsAdmin(context.Background(), testUserID)
		assert.NoError(t, err)
		assert.True(t, isAdmin)
	})

	t.Run("unknown profile is not admin", func(t *testing.T) {
		mock.ExpectQuery("SELECT is_admin FROM profiles").
			WithArgs(testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"is_admin"}))

		isAdmin, err := service.IsAdmin(context.Background(), testUserID)
		assert.NoError(t, err)
		assert.False(t, isAdmin)
	})
}
