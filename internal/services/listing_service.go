package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vamo-app/backend/internal/ai"
	"github.com/vamo-app/backend/internal/middleware"
	"github.com/vamo-app/backend/internal/models"
)

// ListingService manages marketplace listings and their AI-written copy.
type ListingService struct {
	db        *sql.DB
	ai        ai.Client
	validator *ValidationHelper
}

func NewListingService(db *sql.DB, aiClient ai.Client) *ListingService {
	return &ListingService{
		db:        db,
		ai:        aiClient,
		validator: NewValidationHelper(),
	}
}

type CreateListingRequest struct {
	ProjectID   string `json:"projectId" validate:"required,uuid4"`
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"required,min=1,max=2000"`
	AskingPrice int64  `json:"askingPrice" validate:"omitempty,gt=0"`
}

type ListingDescriptionRequest struct {
	ProjectID string `json:"projectId" validate:"required,uuid4"`
}

// CreateListing lists a project on the marketplace
// @Summary Create a marketplace listing
// @Tags listings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateListingRequest true "Listing data"
// @Success 201 {object} models.Listing
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /listings [post]
func (s *ListingService) CreateListing(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		SendErrorResponse(w, CodeUnauthorized, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateListingRequest
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

	ctx := r.Context()

	var listed bool
	err := s.db.QueryRowContext(ctx,
		`SELECT listed FROM projects WHERE id = $1 AND owner_id = $2`,
		req.ProjectID, userID).Scan(&listed)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, CodeNotFound, "Project not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, CodeInternal, "Failed to load project", http.StatusInternalServerError, nil)
		return
	}
	if listed {
		SendErrorResponse(w, CodeValidation, "Project is already listed", http.StatusBadRequest, nil)
		return
	}

	listing := models.Listing{
		ID:          uuid.NewString(),
		ProjectID:   req.ProjectID,
		OwnerID:     userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.ListingActive,
		CreatedAt:   time.Now(),
	}
	if req.AskingPrice > 0 {
		listing.AskingPrice = sql.NullInt64{Int64: req.AskingPrice, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		SendErrorResponse(w, CodeInternal, "Failed to create listing", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO listings (id, project_id, owner_id, title, description, asking_price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		listing.ID, listing.ProjectID, listing.OwnerID, listing.Title, listing.Description,
		listing.AskingPrice, listing.Status, listing.CreatedAt); err != nil {
		log.Printf("[LISTINGS] Insert failed for project %s: %v", req.ProjectID, err)
		SendErrorResponse(w, CodeInternal, "Failed to create listing", http.StatusInternalServerError, nil)
		return
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE projects SET listed = true, updated_at = $1 WHERE id = $2`,
		time.Now(), req.ProjectID); err != nil {
		SendErrorResponse(w, CodeInternal, "Failed to create listing", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, CodeInternal, "Failed to create listing", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[LISTINGS] Project %s listed as %s", req.ProjectID, listing.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(listing)
}

// ListActive returns active marketplace listings
// @Summary Browse active listings
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Listing
// @Router /listings [get]
func (s *ListingService) ListActive(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, project_id, owner_id, title, description, asking_price, status, created_at
		FROM listings
		WHERE status = $1
		ORDER BY created_at DESC`, models.ListingActive)
	if err != nil {
		log.Printf("[LISTINGS] List failed: %v", err)
		SendErrorResponse(w, CodeInternal, "Failed to list marketplace", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.OwnerID, &l.Title, &l.Description,
			&l.AskingPrice, &l.Status, &l.CreatedAt); err != nil {
			SendErrorResponse(w, CodeInternal, "Failed to list marketplace", http.StatusInternalServerError, nil)
			return
		}
		listings = append(listings, l)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listings)
}

// GenerateDescription writes marketplace copy for a project
// @Summary Generate a listing description
// @Tags listings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ListingDescriptionRequest true "Project reference"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /listings/description [post]
func (s *ListingService) GenerateDescription(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		SendErrorResponse(w, CodeUnauthorized, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req ListingDescriptionRequest
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

	ctx := r.Context()

	var name string
	var description, whyBuilt sql.NullString
	var progressScore int
	err := s.db.QueryRowContext(ctx, `
		SELECT name, description, why_built, progress_score
		FROM projects WHERE id = $1 AND owner_id = $2`,
		req.ProjectID, userID).Scan(&name, &description, &whyBuilt, &progressScore)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, CodeNotFound, "Project not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, CodeInternal, "Failed to load project", http.StatusInternalServerError, nil)
		return
	}

	var prompts, traction int
	s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE project_id = $1 AND role = 'user'`,
		req.ProjectID).Scan(&prompts)
	s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reward_ledger
		WHERE project_id = $1 AND event_type IN ('feature_shipped', 'customer_added', 'revenue_logged')`,
		req.ProjectID).Scan(&traction)

	text, err := s.ai.ListingDescription(ctx, ai.DescriptionRequest{
		ProjectName: name,
		Description: description.String,
		WhyBuilt:    whyBuilt.String,
		Progress:    progressScore,
		Prompts:     prompts,
		Traction:    traction,
	})
	if err != nil {
		log.Printf("[LISTINGS] Description generation failed for project %s: %v", req.ProjectID, err)
		SendErrorResponse(w, CodeInternal, "Failed to generate description", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"description": text})
}
