package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"abegfix/internal/kv"
)

type ReferralHandler struct {
	referrals *kv.ReferralStore
}

func NewReferralHandler(referrals *kv.ReferralStore) *ReferralHandler {
	return &ReferralHandler{referrals: referrals}
}

// POST /api/v1/referrals/code
func (h *ReferralHandler) CreateCode(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	code, err := h.referrals.CreateCode(r.Context(), user.ID.Hex())
	if err != nil {
		slog.Error("error creating referral code", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"code": code})
}

// GET /api/v1/referrals/me
func (h *ReferralHandler) Me(w http.ResponseWriter, r *http.Request) {
	h.writeStats(w, r, CurrentUser(r).ID.Hex())
}

// GET /api/v1/admin/users/{id}/referrals
func (h *ReferralHandler) StatsFor(w http.ResponseWriter, r *http.Request) {
	if _, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id")); err != nil {
		notFound(w, "User not found")
		return
	}
	h.writeStats(w, r, chi.URLParam(r, "id"))
}

func (h *ReferralHandler) writeStats(w http.ResponseWriter, r *http.Request, userID string) {
	count, err := h.referrals.Count(r.Context(), userID)
	if err != nil {
		slog.Error("error loading referral count", "error", err)
		internalError(w)
		return
	}
	referred, err := h.referrals.Referred(r.Context(), userID)
	if err != nil {
		slog.Error("error listing referrals", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    count,
		"referred": referred,
	})
}
