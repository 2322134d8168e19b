package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vamo-app/backend/internal/ai"
	"github.com/vamo-app/backend/internal/middleware"
)

// OfferService produces non-binding AI valuations for a founder's project.
type OfferService struct {
	db        *sql.DB
	ai        ai.Client
	validator *ValidationHelper
}

func NewOfferService(db *sql.DB, aiClient ai.Client) *OfferService {
	return &OfferService{
		db:        db,
		ai:        aiClient,
		validator: NewValidationHelper(),
	}
}

type OfferRequest struct {
	ProjectID string `json:"projectId" validate:"required,uuid4"`
}

type OfferView struct {
	LowRange  int      `json:"lowRange"`
	HighRange int      `json:"highRange"`
	Reasoning string   `json:"reasoning"`
	Signals   []string `json:"signals"`
}

// CreateOffer generates and stores a valuation offer
// @Summary Request an AI valuation offer
// @Tags offers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body OfferRequest true "Offer request"
// @Success 200 {object} map[string]OfferView
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /offers [post]
func (s *OfferService) CreateOffer(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		SendErrorResponse(w, CodeUnauthorized, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req OfferRequest
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
	var description sql.NullString
	var hasURL bool
	var progressScore int
	err := s.db.QueryRowContext(ctx, `
		SELECT name, description, url IS NOT NULL, progress_score
		FROM projects
		WHERE id = $1 AND owner_id = $2`,
		req.ProjectID, userID).Scan(&name, &description, &hasURL, &progressScore)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, CodeNotFound, "Project not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[OFFERS] Project fetch failed: %v", err)
		SendErrorResponse(w, CodeInternal, "Failed to load project", http.StatusInternalServerError, nil)
		return
	}

	var activityCount int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM activity_events WHERE project_id = $1`,
		req.ProjectID).Scan(&activityCount); err != nil {
		log.Printf("[OFFERS] Activity count failed: %v", err)
		activityCount = 0
	}

	summary := fmt.Sprintf("- %d logged activity events\n- Development progress: %d%%\n- Live URL: %t",
		activityCount, progressScore, hasURL)

	valuation, err := s.ai.ValuationOffer(ctx, name, description.String, summary)
	if err != nil {
		log.Printf("[OFFERS] Valuation failed for project %s: %v", req.ProjectID, err)
		SendErrorResponse(w, CodeInternal, "Failed to generate offer", http.StatusInternalServerError, nil)
		return
	}

	signals, err := json.Marshal(valuation.Signals)
	if err != nil {
		signals = []byte("[]")
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO offers (id, project_id, user_id, low_range, high_range, reasoning, signals, expired, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)`,
		uuid.NewString(), req.ProjectID, userID, valuation.LowRange, valuation.HighRange,
		valuation.Reasoning, signals, time.Now()); err != nil {
		log.Printf("[OFFERS] Offer insert failed for project %s: %v", req.ProjectID, err)
		SendErrorResponse(w, CodeInternal, "Failed to store offer", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[OFFERS] Offer %d-%d stored for project %s", valuation.LowRange, valuation.HighRange, req.ProjectID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]OfferView{
		"offer": {
			LowRange:  valuation.LowRange,
			HighRange: valuation.HighRange,
			Reasoning: valuation.Reasoning,
			Signals:   valuation.Signals,
		},
	})
}
