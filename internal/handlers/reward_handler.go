package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/vamo-app/backend/internal/middleware"
	"github.com/vamo-app/backend/internal/services"
)

// RewardHandler adapts the reward ledger to HTTP. The ledger itself stays
// handler-free so tests can drive it directly.
type RewardHandler struct {
	service   *services.RewardService
	validator *services.ValidationHelper
}

func NewRewardHandler(service *services.RewardService) *RewardHandler {
	return &RewardHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GrantReward awards pineapples for a logged action
// @Summary Grant a reward
// @Description Idempotently award pineapples for an event; duplicate keys report rewarded=false
// @Tags rewards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.GrantRequest true "Reward event"
// @Success 200 {object} services.GrantResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /rewards [post]
func (h *RewardHandler) GrantReward(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.UserIDFromContext(r.Context())
	if callerID == "" {
		services.SendErrorResponse(w, services.CodeUnauthorized, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	var req services.GrantRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, services.CodeValidation, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, services.CodeValidation, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, services.CodeValidation, "Invalid input", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.GrantReward(r.Context(), callerID, req)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) {
			services.SendErrorResponse(w, services.CodeForbidden, "User ID mismatch", http.StatusForbidden, nil)
			return
		}
		log.Printf("[REWARDS] Grant failed for user %s: %v", callerID, err)
		services.SendErrorResponse(w, services.CodeInternal, "An unexpected error occurred", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetWallet returns the wallet page payload
// @Summary Get wallet
// @Description Balance, recent ledger entries and redemption requests
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.WalletView
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /wallet [get]
func (h *RewardHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		services.SendErrorResponse(w, services.CodeUnauthorized, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	wallet, err := h.service.Wallet(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			services.SendErrorResponse(w, services.CodeNotFound, "Profile not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[WALLET] Fetch failed for user %s: %v", userID, err)
		services.SendErrorResponse(w, services.CodeInternal, "An unexpected error occurred", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(wallet)
}
