package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vamo-app/backend/internal/middleware"
	"github.com/vamo-app/backend/internal/services"
)

type RedeemHandler struct {
	service   *services.RedemptionService
	validator *services.ValidationHelper
}

func NewRedeemHandler(service *services.RedemptionService) *RedeemHandler {
	return &RedeemHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

type redeemRequest struct {
	Amount int `json:"amount" validate:"required,gt=0"`
}

// Redeem converts pineapples into a pending redemption
// @Summary Redeem pineapples
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body redeemRequest true "Amount to redeem"
// @Success 200 {object} services.RedeemResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /redeem [post]
func (h *RedeemHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		services.SendErrorResponse(w, services.CodeUnauthorized, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	var req redeemRequest

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

	result, err := h.service.Redeem(r.Context(), userID, req.Amount)
	if err != nil {
		var belowMin *services.BelowMinimumError
		var insufficient *services.InsufficientBalanceError
		switch {
		case errors.As(err, &belowMin):
			services.SendErrorResponse(w, services.CodeValidation, belowMin.Error(), http.StatusBadRequest, nil)
		case errors.As(err, &insufficient):
			services.SendErrorResponse(w, services.CodeInsufficientBalance, insufficient.Error(), http.StatusBadRequest, nil)
		case errors.Is(err, services.ErrNotFound):
			services.SendErrorResponse(w, services.CodeNotFound, "Profile not found", http.StatusNotFound, nil)
		default:
			log.Printf("[REDEEM] Redeem failed for user %s: %v", userID, err)
			services.SendErrorResponse(w, services.CodeInternal, "An unexpected error occurred", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetVoucher renders a QR voucher for one of the caller's redemptions
// @Summary Get redemption voucher
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param redemptionId path string true "Redemption ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} services.ErrorResponse
// @Router /wallet/redemptions/{redemptionId}/voucher [get]
func (h *RedeemHandler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		services.SendErrorResponse(w, services.CodeUnauthorized, "Not authenticated", http.StatusUnauthorized, nil)
		return
	}

	redemptionID := chi.URLParam(r, "redemptionId")
	voucher, err := h.service.VoucherPNG(r.Context(), userID, redemptionID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			services.SendErrorResponse(w, services.CodeNotFound, "Redemption not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[REDEEM] Voucher failed for redemption %s: %v", redemptionID, err)
		services.SendErrorResponse(w, services.CodeInternal, "An unexpected error occurred", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"voucher": voucher})
}

// ListPending lists redemptions awaiting fulfillment (admin only)
// @Summary List pending redemptions
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Redemption
// @Failure 403 {object} services.ErrorResponse
// @Router /admin/redemptions [get]
func (h *RedeemHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	pending, err := h.service.ListPending(r.Context())
	if err != nil {
		log.Printf("[ADMIN] Pending redemption list failed: %v", err)
		services.SendErrorResponse(w, services.CodeInternal, "An unexpected error occurred", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pending)
}

// Fulfill marks a pending redemption fulfilled (admin only)
// @Summary Fulfill a redemption
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param redemptionId path string true "Redemption ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/redemptions/{redemptionId}/fulfill [put]
func (h *RedeemHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Fulfill, "Redemption fulfilled")
}

// Fail marks a pending redemption failed (admin only)
// @Summary Fail a redemption
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param redemptionId path string true "Redemption ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/redemptions/{redemptionId}/fail [put]
func (h *RedeemHandler) Fail(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Fail, "Redemption failed")
}

func (h *RedeemHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) error, message string) {
	if !h.requireAdmin(w, r) {
		return
	}

	redemptionID := chi.URLParam(r, "redemptionId")
	if err := fn(r.Context(), redemptionID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			services.SendErrorResponse(w, services.CodeNotFound, "No pending redemption with that ID", http.StatusNotFound, nil)
			return
		}
		log.Printf("[ADMIN] Redemption transition failed for %s: %v", redemptionID, err)
		services.SendErrorResponse(w, services.CodeInternal, "An unexpected error occurred", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

func (h *RedeemHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		services.SendErrorResponse(w, services.CodeUnauthorized, "Not authenticated", http.StatusUnauthorized, nil)
		return false
	}

	isAdmin, err := h.service.IsAdmin(r.Context(), userID)
	if err != nil {
		log.Printf("[ADMIN] Admin check failed for user %s: %v", userID, err)
		services.SendErrorResponse(w, services.CodeInternal, "An unexpected error occurred", http.StatusInternalServerError, nil)
		return false
	}
	if !isAdmin {
		services.SendErrorResponse(w, services.CodeForbidden, "Admin access required", http.StatusForbidden, nil)
		return false
	}
	return true
}
