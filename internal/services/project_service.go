package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vamo-app/backend/internal/middleware"
	"github.com/vamo-app/backend/internal/models"
	"github.com/vamo-app/backend/internal/rewards"
)

type ProjectService struct {
	db        *sql.DB
	rewards   *RewardService
	validator *ValidationHelper
}

func NewProjectService(db *sql.DB, rewardService *RewardService) *ProjectService {
	return &ProjectService{
		db:        db,
		rewards:   rewardService,
		validator: NewValidationHelper(),
	}
}

type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"omitempty,max=500"`
	URL         string `json:"url" validate:"omitempty,url"`
	WhyBuilt    string `json:"whyBuilt" validate:"omitempty,max=1000"`
}

type UpdateProjectRequest struct {
	Description string `json:"description" validate:"omitempty,max=500"`
	URL         string `json:"url" validate:"omitempty,url"`
	WhyBuilt    string `json:"whyBuilt" validate:"omitempty,max=1000"`
}

// CreateProject creates a project for the authenticated founder
// @Summary Create a project
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateProjectRequest true "Project data"
// @Success 201 {object} models.ProjectView
// @Failure 400 {object} ErrorResponse
// @Router /projects [post]
func (s *ProjectService) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		SendErrorResponse(w, CodeUnauthorized, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateProjectRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, CodeValidation, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, CodeValidation, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, CodeValidation, "Validation failed", http.StatusBadRequest, err)
		return
	}

	now := time.Now()
	project := models.Project{
		ID:        uuid.NewString(),
		OwnerID:   userID,
		Name:      req.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Description != "" {
		project.Description = sql.NullString{String: req.Description, Valid: true}
	}
	if req.URL != "" {
		project.URL = sql.NullString{String: req.URL, Valid: true}
	}
	if req.WhyBuilt != "" {
		project.WhyBuilt = sql.NullString{String: req.WhyBuilt, Valid: true}
	}

	_, err := s.db.ExecContext(r.Context(), `
		INSERT INTO projects (id, owner_id, name, description, url, why_built, progress_score, listed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, false, $7, $8)`,
		project.ID, project.OwnerID, project.Name, project.Description, project.URL,
		project.WhyBuilt, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		log.Printf("[PROJECTS] Create failed for user %s: %v", userID, err)
		SendErrorResponse(w, CodeInternal, "Failed to create project", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[PROJECTS] Created project %s for user %s", project.ID, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(project.View())
}

// ListProjects lists the authenticated founder's projects
// @Summary List my projects
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.ProjectView
// @Router /projects [get]
func (s *ProjectService) ListProjects(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		SendErrorResponse(w, CodeUnauthorized, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, owner_id, name, description, url, why_built, screenshot_url, progress_score, listed, created_at, updated_at
		FROM projects
		WHERE owner_id = $1
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		log.Printf("[PROJECTS] List failed for user %s: %v", userID, err)
		SendErrorResponse(w, CodeInternal, "Failed to list projects", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	views := []models.ProjectView{}
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.URL, &p.WhyBuilt,
			&p.ScreenshotURL, &p.ProgressScore, &p.Listed, &p.CreatedAt, &p.UpdatedAt); err != nil {
			SendErrorResponse(w, CodeInternal, "Failed to list projects", http.StatusInternalServerError, nil)
			return
		}
		views = append(views, p.View())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

// GetProject fetches one of the founder's projects
// @Summary Get a project
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Success 200 {object} models.ProjectView
// @Failure 404 {object} ErrorResponse
// @Router /projects/{projectId} [get]
func (s *ProjectService) GetProject(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		SendErrorResponse(w, CodeUnauthorized, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	projectID := chi.URLParam(r, "projectId")
	project, err := s.fetchOwned(r, projectID, userID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, CodeNotFound, "Project not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[PROJECTS] Fetch failed for project %s: %v", projectID, err)
		SendErrorResponse(w, CodeInternal, "Failed to fetch project", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(project.View())
}

// UpdateProject updates project fields; newly filled url/description fields
// award pineapples through the ledger with one-shot field-name keys
// @Summary Update a project
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param projectId path string true "Project ID"
// @Param request body UpdateProjectRequest true "Fields to update"
// @Success 200 {object} map[string]any
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /projects/{projectId} [put]
func (s *ProjectService) UpdateProject(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		SendErrorResponse(w, CodeUnauthorized, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	projectID := chi.URLParam(r, "projectId")

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req UpdateProjectRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, CodeValidation, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, CodeValidation, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, CodeValidation, "Validation failed", http.StatusBadRequest, err)
		return
	}

	project, err := s.fetchOwned(r, projectID, userID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, CodeNotFound, "Project not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, CodeInternal, "Failed to fetch project", http.StatusInternalServerError, nil)
		return
	}

	_, err = s.db.ExecContext(r.Context(), `
		UPDATE projects
		SET description = COALESCE(NULLIF($1, ''), description),
		    url = COALESCE(NULLIF($2, ''), url),
		    why_built = COALESCE(NULLIF($3, ''), why_built),
		    updated_at = $4
		WHERE id = $5 AND owner_id = $6`,
		req.Description, req.URL, req.WhyBuilt, time.Now(), projectID, userID)
	if err != nil {
		log.Printf("[PROJECTS] Update failed for project %s: %v", projectID, err)
		SendErrorResponse(w, CodeInternal, "Failed to update project", http.StatusInternalServerError, nil)
		return
	}

	pineapplesEarned := 0
	if req.URL != "" && !project.URL.Valid {
		pineapplesEarned += s.grantFieldReward(r, userID, projectID, "url_added", "url")
	}
	if req.Description != "" && !project.Description.Valid {
		pineapplesEarned += s.grantFieldReward(r, userID, projectID, "description_added", "description")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message":          "Project updated",
		"pineapplesEarned": pineapplesEarned,
	})
}

// grantFieldReward awards a one-shot field reward; the field name is the
// discriminator, so refilling the same field never double-awards.
func (s *ProjectService) grantFieldReward(r *http.Request, userID, projectID, eventType, field string) int {
	key, err := rewards.IdempotencyKey(userID, projectID, eventType, field)
	if err != nil {
		return 0
	}
	result, err := s.rewards.GrantReward(r.Context(), userID, GrantRequest{
		UserID:         userID,
		ProjectID:      projectID,
		EventType:      eventType,
		IdempotencyKey: key,
	})
	if err != nil {
		log.Printf("[PROJECTS] Field reward %s failed for project %s: %v", eventType, projectID, err)
		return 0
	}
	return result.Amount
}

func (s *ProjectService) fetchOwned(r *http.Request, projectID, userID string) (*models.Project, error) {
	var p models.Project
	err := s.db.QueryRowContext(r.Context(), `
		SELECT id, owner_id, name, description, url, why_built, screenshot_url, progress_score, listed, created_at, updated_at
		FROM projects
		WHERE id = $1 AND owner_id = $2`,
		projectID, userID).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.URL, &p.WhyBuilt,
		&p.ScreenshotURL, &p.ProgressScore, &p.Listed, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
