package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/vamo-app/backend/internal/ai"
	"github.com/vamo-app/backend/internal/middleware"
)

func chatRequest(t *testing.T, payload ChatRequest) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	assert.NoError(t, err)
	r := httptest.NewRequest("POST", "/chat", bytes.NewBuffer(body))
	return r.WithContext(middleware.WithUserID(context.Background(), testUserID))
}

// expectGrant queues the full transaction for one idempotent reward grant.
func expectGrant(mock sqlmock.Sqlmock, eventType string, amount, newBalance int) {
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM reward_ledger").
		WithArgs(testUserID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reward_ledger").
		WithArgs(sqlmock.AnyArg(), testUserID, testProjectID, eventType, amount, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("UPDATE profiles").
		WithArgs(amount, testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"pineapple_balance"}).AddRow(newBalance))
	mock.ExpectExec("INSERT INTO activity_events").
		WithArgs(sqlmock.AnyArg(), testProjectID, testUserID, "reward_earned", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func TestChatService_Chat(t *testing.T) {
	t.Run("turn with traction grants prompt, bonus and traction rewards", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		mockAI := new(MockAI)
		mockAI.On("BuilderReply", mock.Anything, mock.Anything, "Shipped checkout to two paying customers", mock.Anything).
			Return(&ai.BuilderResult{
				Reply:               "**Nice!** Keep going",
				Intent:              "feature",
				ProgressDelta:       10,
				TractionSignal:      "Shipped checkout",
				ValuationAdjustment: "up",
			}, nil)

		service := NewChatService(db, NewRewardService(db), mockAI)

		dbMock.ExpectQuery("SELECT id, name, description, url, why_built, progress_score").
			WithArgs(testProjectID, testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "url", "why_built", "progress_score"}).
				AddRow(testProjectID, "Vamo", "Builder platform", "https://vamo.app", "For founders", 40))

		dbMock.ExpectQuery("SELECT role, content FROM messages").
			WithArgs(testProjectID).
			WillReturnRows(sqlmock.NewRows([]string{"role", "content"}).
				AddRow("assistant", "What did you ship today?").
				AddRow("user", "Started on checkout"))

		dbMock.ExpectExec("INSERT INTO messages").
			WithArgs(sqlmock.AnyArg(), testProjectID, "user", "Shipped checkout to two paying customers", "feature", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		dbMock.ExpectExec("UPDATE projects SET progress_score").
			WithArgs(50, sqlmock.AnyArg(), testProjectID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		dbMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM reward_ledger").
			WithArgs(testProjectID, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

		expectGrant(dbMock, "chat_prompt", 1, 41)
		expectGrant(dbMock, "chat_feature", 1, 42)
		expectGrant(dbMock, "feature_shipped", 3, 45)

		dbMock.ExpectExec("INSERT INTO messages").
			WithArgs(sqlmock.AnyArg(), testProjectID, "assistant", "Nice! Keep going",
				"Shipped checkout", "feature", 5, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := httptest.NewRecorder()
		service.Chat(w, chatRequest(t, ChatRequest{
			ProjectID: testProjectID,
			Message:   "Shipped checkout to two paying customers",
			Tag:       "feature",
		}))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp ChatResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, "Nice! Keep going", resp.Reply)
		assert.Equal(t, "feature", resp.Intent)
		assert.Equal(t, 5, resp.PineapplesEarned)
		assert.Equal(t, 50, resp.ProgressScore)
		assert.NotEmpty(t, resp.MessageID)
		assert.NoError(t, dbMock.ExpectationsWereMet())
		mockAI.AssertExpectations(t)
	})

	t.Run("rate limited project earns nothing but still gets a reply", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		mockAI := new(MockAI)
		mockAI.On("BuilderReply", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&ai.BuilderResult{
				Reply:  "Take a break, then ship one more thing.",
				Intent: "general",
			}, nil)

		service := NewChatService(db, NewRewardService(db), mockAI)

		dbMock.ExpectQuery("SELECT id, name, description, url, why_built, progress_score").
			WithArgs(testProjectID, testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "url", "why_built", "progress_score"}).
				AddRow(testProjectID, "Vamo", nil, nil, nil, 10))

		dbMock.ExpectQuery("SELECT role, content FROM messages").
			WithArgs(testProjectID).
			WillReturnRows(sqlmock.NewRows([]string{"role", "content"}))

		dbMock.ExpectExec("INSERT INTO messages").
			WithArgs(sqlmock.AnyArg(), testProjectID, "user", "Still grinding", "general", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		dbMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM reward_ledger").
			WithArgs(testProjectID, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(60))

		dbMock.ExpectExec("INSERT INTO messages").
			WithArgs(sqlmock.AnyArg(), testProjectID, "assistant", "Take a break, then ship one more thing.",
				nil, "general", 0, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := httptest.NewRecorder()
		service.Chat(w, chatRequest(t, ChatRequest{
			ProjectID: testProjectID,
			Message:   "Still grinding",
		}))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp ChatResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, 0, resp.PineapplesEarned)
		assert.Equal(t, 10, resp.ProgressScore)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("foreign project is not found", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewChatService(db, NewRewardService(db), new(MockAI))

		dbMock.ExpectQuery("SELECT id, name, description, url, why_built, progress_score").
			WithArgs(testProjectID, testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "url", "why_built", "progress_score"}))

		w := httptest.NewRecorder()
		service.Chat(w, chatRequest(t, ChatRequest{
			ProjectID: testProjectID,
			Message:   "Hello",
		}))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid project id", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewChatService(db, NewRewardService(db), new(MockAI))

		w := httptest.NewRecorder()
		service.Chat(w, chatRequest(t, ChatRequest{
			ProjectID: "not-a-uuid",
			Message:   "Hello",
		}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
