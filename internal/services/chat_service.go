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
	"github.com/vamo-app/backend/internal/models"
	"github.com/vamo-app/backend/internal/rewards"
)

// ChatService runs the builder chat: founder message in, Gemini reply out,
// pineapples granted for the prompt and any traction it reveals.
type ChatService struct {
	db        *sql.DB
	rewards   *RewardService
	ai        ai.Client
	validator *ValidationHelper
}

func NewChatService(db *sql.DB, rewardService *RewardService, aiClient ai.Client) *ChatService {
	return &ChatService{
		db:        db,
		rewards:   rewardService,
		ai:        aiClient,
		validator: NewValidationHelper(),
	}
}

type ChatRequest struct {
	ProjectID string `json:"projectId" validate:"required,uuid4"`
	Message   string `json:"message" validate:"required,min=1,max=5000"`
	Tag       string `json:"tag" validate:"omitempty,oneof=feature bug improvement milestone general"`
}

type ChatResponse struct {
	Reply            string `json:"reply"`
	Intent           string `json:"intent"`
	TractionSignal   string `json:"tractionSignal,omitempty"`
	PineapplesEarned int    `json:"pineapplesEarned"`
	ProgressScore    int    `json:"progressScore"`
	MessageID        string `json:"messageId"`
}

// Events recorded when the model detects real traction in a chat message.
var tractionEventTypes = map[string]string{
	"feature":  "feature_shipped",
	"customer": "customer_added",
	"revenue":  "revenue_logged",
}

// Chat handles a builder chat turn
// @Summary Send a chat message
// @Description Send a founder update to the AI co-pilot; progress and pineapple rewards are applied from the reply
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChatRequest true "Chat message"
// @Success 200 {object} ChatResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /chat [post]
func (s *ChatService) Chat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		SendErrorResponse(w, CodeUnauthorized, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req ChatRequest
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

	var project models.Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, url, why_built, progress_score
		FROM projects
		WHERE id = $1 AND owner_id = $2`,
		req.ProjectID, userID).Scan(&project.ID, &project.Name, &project.Description,
		&project.URL, &project.WhyBuilt, &project.ProgressScore)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, CodeNotFound, "Project not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[CHAT] Project fetch failed: %v", err)
		SendErrorResponse(w, CodeInternal, "Failed to load project", http.StatusInternalServerError, nil)
		return
	}

	history, err := s.recentHistory(r, req.ProjectID)
	if err != nil {
		log.Printf("[CHAT] History fetch failed for project %s: %v", req.ProjectID, err)
		SendErrorResponse(w, CodeInternal, "Failed to load chat history", http.StatusInternalServerError, nil)
		return
	}

	if req.Tag == "" {
		req.Tag = "general"
	}

	userMsgID := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, project_id, role, content, tag, pineapples_earned, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)`,
		userMsgID, req.ProjectID, models.RoleUser, req.Message, req.Tag, time.Now()); err != nil {
		log.Printf("[CHAT] User message insert failed: %v", err)
		SendErrorResponse(w, CodeInternal, "Failed to store message", http.StatusInternalServerError, nil)
		return
	}

	result, err := s.ai.BuilderReply(ctx, projectContext(&project), req.Message, history)
	if err != nil {
		log.Printf("[CHAT] AI call failed for project %s: %v", req.ProjectID, err)
		SendErrorResponse(w, CodeInternal, "Assistant is unavailable", http.StatusInternalServerError, nil)
		return
	}

	reply := SanitizeReply(result.Reply)

	progressScore := project.ProgressScore
	if result.ProgressDelta > 0 {
		newScore := project.ProgressScore + result.ProgressDelta
		if newScore > 100 {
			newScore = 100
		}
		if newScore != project.ProgressScore {
			if _, err := s.db.ExecContext(ctx, `
				UPDATE projects SET progress_score = $1, updated_at = $2 WHERE id = $3`,
				newScore, time.Now(), req.ProjectID); err != nil {
				log.Printf("[CHAT] Progress update failed for project %s: %v", req.ProjectID, err)
			} else {
				progressScore = newScore
			}
		}
	}

	recentPrompts, err := s.rewards.CountRecentPrompts(ctx, req.ProjectID)
	if err != nil {
		log.Printf("[CHAT] Prompt window count failed: %v", err)
		recentPrompts = 0
	}
	rateLimited := recentPrompts >= rewards.MaxRewardsPerHour()

	pineapplesEarned := 0
	if !rateLimited {
		pineapplesEarned = s.grantChatRewards(r, userID, req.ProjectID, userMsgID, result)
	} else {
		log.Printf("[CHAT] Project %s rate limited (%d prompts in window)", req.ProjectID, recentPrompts)
	}

	var summary sql.NullString
	if result.TractionSignal != "" {
		summary = sql.NullString{String: result.TractionSignal, Valid: true}
	}

	assistantMsgID := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, project_id, role, content, summary, tag, pineapples_earned, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		assistantMsgID, req.ProjectID, models.RoleAssistant, reply, summary,
		result.Intent, pineapplesEarned, time.Now()); err != nil {
		log.Printf("[CHAT] Assistant message insert failed: %v", err)
		SendErrorResponse(w, CodeInternal, "Failed to store reply", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ChatResponse{
		Reply:            reply,
		Intent:           result.Intent,
		TractionSignal:   result.TractionSignal,
		PineapplesEarned: pineapplesEarned,
		ProgressScore:    progressScore,
		MessageID:        assistantMsgID,
	})
}

// grantChatRewards applies the per-turn reward items: the prompt itself, an
// intent bonus, and a traction event when the model saw a real signal. Keys
// are derived from the stored user message id, so a retried request cannot
// double-award. Duplicate grants come back rewarded=false and add zero.
func (s *ChatService) grantChatRewards(r *http.Request, userID, projectID, userMsgID string, result *ai.BuilderResult) int {
	type item struct {
		eventType string
		key       string
	}

	items := []item{
		{eventType: "chat_prompt", key: fmt.Sprintf("%s-prompt-reward", userMsgID)},
	}

	if _, ok := tractionEventTypes[result.Intent]; ok {
		items = append(items, item{
			eventType: "chat_" + result.Intent,
			key:       fmt.Sprintf("%s-%s-bonus", userMsgID, result.Intent),
		})
		if result.TractionSignal != "" {
			eventType := tractionEventTypes[result.Intent]
			items = append(items, item{
				eventType: eventType,
				key:       fmt.Sprintf("%s-%s", userMsgID, eventType),
			})
		}
	}

	total := 0
	for _, it := range items {
		granted, err := s.rewards.GrantReward(r.Context(), userID, GrantRequest{
			UserID:         userID,
			ProjectID:      projectID,
			EventType:      it.eventType,
			IdempotencyKey: it.key,
		})
		if err != nil {
			log.Printf("[CHAT] Reward %s failed for message %s: %v", it.eventType, userMsgID, err)
			continue
		}
		total += granted.Amount
	}
	return total
}

func (s *ChatService) recentHistory(r *http.Request, projectID string) ([]ai.ChatTurn, error) {
	rows, err := s.db.QueryContext(r.Context(), `
		SELECT role, content FROM messages
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT 10`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reversed []ai.ChatTurn
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, err
		}
		turnRole := "user"
		if role == models.RoleAssistant {
			turnRole = "model"
		}
		reversed = append(reversed, ai.ChatTurn{Role: turnRole, Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows come back newest-first; the model wants them oldest-first.
	history := make([]ai.ChatTurn, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		history = append(history, reversed[i])
	}
	return history, nil
}

func projectContext(p *models.Project) string {
	context := fmt.Sprintf("Project: %s", p.Name)
	if p.Description.Valid {
		context += fmt.Sprintf("\nDescription: %s", p.Description.String)
	}
	if p.URL.Valid {
		context += fmt.Sprintf("\nURL: %s", p.URL.String)
	}
	context += fmt.Sprintf("\nProgress: %d%%", p.ProgressScore)
	return context
}
