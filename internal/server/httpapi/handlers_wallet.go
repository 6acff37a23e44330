package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/soundcircle/internal/server/models"
	"github.com/go-chi/chi/v5"
)

type walletResponse struct {
	UserID               string    `json:"user_id"`
	PointsBalance        int64     `json:"points_balance"`
	EarningsPoints       int64     `json:"earnings_points"`
	LockedEarningsPoints int64     `json:"locked_earnings_points"`
	NextTopupDueOn       *string   `json:"next_topup_due_on,omitempty"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type adjustPointsRequest struct {
	Delta int64 `json:"delta"`
}

type creditEarningsRequest struct {
	Delta       int64 `json:"delta"`
	LockedDelta int64 `json:"locked_delta"`
}

type scheduleTopupRequest struct {
	DueOn string `json:"due_on"`
}

func toWalletResponse(w *models.Wallet) walletResponse {
	resp := walletResponse{
		UserID:               w.UserID,
		PointsBalance:        w.PointsBalance,
		EarningsPoints:       w.EarningsPoints,
		LockedEarningsPoints: w.LockedEarningsPoints,
		UpdatedAt:            w.UpdatedAt,
	}
	if w.NextTopupDueOn != nil {
		d := w.NextTopupDueOn.Format("2006-01-02")
		resp.NextTopupDueOn = &d
	}
	return resp
}

// walletOwnerID authorizes access to the wallet in the URL: users reach only
// their own wallet.
func (s *Server) walletOwnerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "userID")
	callerID, _ := UserIDFromContext(r.Context())
	if callerID != userID {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "cannot access another user's wallet"})
		return "", false
	}
	return userID, true
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.walletOwnerID(w, r)
	if !ok {
		return
	}

	wallet, err := s.wallets.GetByUserID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toWalletResponse(wallet))
}

func (s *Server) handleAdjustPoints(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.walletOwnerID(w, r)
	if !ok {
		return
	}

	var req adjustPointsRequest
	if err := decodeJSON(r, &req); err != nil || req.Delta == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "non-zero delta is required"})
		return
	}

	wallet, err := s.wallets.AdjustPoints(r.Context(), userID, req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toWalletResponse(wallet))
}

// handleCreditEarnings is an admin operation: payout pipelines credit creator
// earnings into arbitrary wallets.
func (s *Server) handleCreditEarnings(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	userID := chi.URLParam(r, "userID")

	var req creditEarningsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Delta < 0 || req.LockedDelta < 0 || req.LockedDelta > req.Delta {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid earnings amounts"})
		return
	}

	wallet, err := s.wallets.CreditEarnings(r.Context(), userID, req.Delta, req.LockedDelta)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toWalletResponse(wallet))
}

func (s *Server) handleScheduleTopup(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	userID := chi.URLParam(r, "userID")

	var req scheduleTopupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	due, err := time.Parse("2006-01-02", req.DueOn)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "due_on must be YYYY-MM-DD"})
		return
	}

	wallet, err := s.wallets.ScheduleTopup(r.Context(), userID, due)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toWalletResponse(wallet))
}
