package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/vamo-app/backend/internal/ai"
)

func TestListingService_CreateListing(t *testing.T) {
	t.Run("lists an unlisted project", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewListingService(db, new(MockAI))

		dbMock.ExpectQuery("SELECT listed FROM projects").
			WithArgs(testProjectID, testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"listed"}).AddRow(false))

		dbMock.ExpectBegin()
		dbMock.ExpectExec("INSERT INTO listings").
			WithArgs(sqlmock.AnyArg(), testProjectID, testUserID, "Bagel Tracker",
				"A tracker for bagels", sqlmock.AnyArg(), "active", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		dbMock.ExpectExec("UPDATE projects SET listed = true").
			WithArgs(sqlmock.AnyArg(), testProjectID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()

		w := httptest.NewRecorder()
		service.CreateListing(w, authedJSONRequest(t, "POST", "/listings", CreateListingRequest{
			ProjectID:   testProjectID,
			Title:       "Bagel Tracker",
			Description: "A tracker for bagels",
			AskingPrice: 4000,
		}))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("already listed project is rejected", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewListingService(db, new(MockAI))

		dbMock.ExpectQuery("SELECT listed FROM projects").
			WithArgs(testProjectID, testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"listed"}).AddRow(true))

		w := httptest.NewRecorder()
		service.CreateListing(w, authedJSONRequest(t, "POST", "/listings", CreateListingRequest{
			ProjectID:   testProjectID,
			Title:       "Bagel Tracker",
			Description: "A tracker for bagels",
		}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListingService_GenerateDescription(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mockAI := new(MockAI)
	mockAI.On("ListingDescription", mock.Anything, ai.DescriptionRequest{
		ProjectName: "Bagel Tracker",
		Description: "Track bagels",
		WhyBuilt:    "I love bagels",
		Progress:    70,
		Prompts:     40,
		Traction:    6,
	}).Return("A well-loved bagel tracker with real traction.", nil)

	service := NewListingService(db, mockAI)

	dbMock.ExpectQuery("SELECT name, description, why_built, progress_score").
		WithArgs(testProjectID, testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"name", "description", "why_built", "progress_score"}).
			AddRow("Bagel Tracker", "Track bagels", "I love bagels", 70))

	dbMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM messages").
		WithArgs(testProjectID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(40))

	dbMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM reward_ledger").
		WithArgs(testProjectID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))

	w := httptest.NewRecorder()
	service.GenerateDescription(w, authedJSONRequest(t, "POST", "/listings/description", ListingDescriptionRequest{
		ProjectID: testProjectID,
	}))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "A well-loved bagel tracker with real traction.", resp["description"])
	mockAI.AssertExpectations(t)
}
