package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/vamo-app/backend/internal/middleware"
)

func authedJSONRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	assert.NoError(t, err)
	r := httptest.NewRequest(method, target, bytes.NewBuffer(body))
	return r.WithContext(middleware.WithUserID(context.Background(), testUserID))
}

func withProjectParam(r *http.Request, projectID string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("projectId", projectID)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestProjectService_CreateProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewProjectService(db, NewRewardService(db))

	t.Run("successful create", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO projects").
			WithArgs(sqlmock.AnyArg(), testUserID, "Bagel Tracker", "Track bagels", nil, nil,
				sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := httptest.NewRecorder()
		service.CreateProject(w, authedJSONRequest(t, "POST", "/projects", CreateProjectRequest{
			Name:        "Bagel Tracker",
			Description: "Track bagels",
		}))

		assert.Equal(t, http.StatusCreated, w.Code)
		var view map[string]any
		json.Unmarshal(w.Body.Bytes(), &view)
		assert.Equal(t, "Bagel Tracker", view["name"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing name", func(t *testing.T) {
		w := httptest.NewRecorder()
		service.CreateProject(w, authedJSONRequest(t, "POST", "/projects", CreateProjectRequest{}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProjectService_UpdateProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewProjectService(db, NewRewardService(db))
	now := time.Now()

	projectColumns := []string{"id", "owner_id", "name", "description", "url", "why_built",
		"screenshot_url", "progress_score", "listed", "created_at", "updated_at"}

	t.Run("newly filled url awards pineapples once", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, owner_id, name, description, url, why_built").
			WithArgs(testProjectID, testUserID).
			WillReturnRows(sqlmock.NewRows(projectColumns).
				AddRow(testProjectID, testUserID, "Bagel Tracker", "Track bagels", nil, nil, nil, 20, false, now, now))

		mock.ExpectExec("UPDATE projects").
			WithArgs("", "https://bagels.dev", "", sqlmock.AnyArg(), testProjectID, testUserID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// url_added grant, keyed on the field name
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM reward_ledger").
			WithArgs(testUserID, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO reward_ledger").
			WithArgs(sqlmock.AnyArg(), testUserID, testProjectID, "url_added", 3,
				testUserID+":"+testProjectID+":url_added:url", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("UPDATE profiles").
			WithArgs(3, testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"pineapple_balance"}).AddRow(23))
		mock.ExpectExec("INSERT INTO activity_events").
			WithArgs(sqlmock.AnyArg(), testProjectID, testUserID, "reward_earned", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		r := withProjectParam(authedJSONRequest(t, "PUT", "/projects/"+testProjectID, UpdateProjectRequest{
			URL: "https://bagels.dev",
		}), testProjectID)
		w := httptest.NewRecorder()
		service.UpdateProject(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, float64(3), resp["pineapplesEarned"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already filled url awards nothing", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, owner_id, name, description, url, why_built").
			WithArgs(testProjectID, testUserID).
			WillReturnRows(sqlmock.NewRows(projectColumns).
				AddRow(testProjectID, testUserID, "Bagel Tracker", "Track bagels", "https://bagels.dev", nil, nil, 20, false, now, now))

		mock.ExpectExec("UPDATE projects").
			WithArgs("", "https://bagels.dev", "", sqlmock.AnyArg(), testProjectID, testUserID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		r := withProjectParam(authedJSONRequest(t, "PUT", "/projects/"+testProjectID, UpdateProjectRequest{
			URL: "https://bagels.dev",
		}), testProjectID)
		w := httptest.NewRecorder()
		service.UpdateProject(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, float64(0), resp["pineapplesEarned"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("foreign project is not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, owner_id, name, description, url, why_built").
			WithArgs(testProjectID, testUserID).
			WillReturnRows(sqlmock.NewRows(projectColumns))

		r := withProjectParam(authedJSONRequest(t, "PUT", "/projects/"+testProjectID, UpdateProjectRequest{
			URL: "https://bagels.dev",
		}), testProjectID)
		w := httptest.NewRecorder()
		service.UpdateProject(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestProjectService_ListProjects(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewProjectService(db, NewRewardService(db))
	now := time.Now()

	mock.ExpectQuery("SELECT id, owner_id, name, description, url, why_built").
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name", "description", "url", "why_built",
			"screenshot_url", "progress_score", "listed", "created_at", "updated_at"}).
			AddRow(testProjectID, testUserID, "Bagel Tracker", nil, nil, nil, nil, 20, false, now, now))

	r := httptest.NewRequest("GET", "/projects", nil).
		WithContext(middleware.WithUserID(context.Background(), testUserID))
	w := httptest.NewRecorder()
	service.ListProjects(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	var views []map[string]any
	json.Unmarshal(w.Body.Bytes(), &views)
	assert.Len(t, views, 1)
	assert.Equal(t, "Bagel Tracker", views[0]["name"])
}
