package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/soundcircle/internal/common"
	"github.com/dmitrijs2005/soundcircle/internal/server/models"
	"github.com/go-chi/chi/v5"
)

type profileResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarKey   string    `json:"avatar_key,omitempty"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
	AvatarKey   string `json:"avatar_key"`
}

func toProfileResponse(p *models.Profile) profileResponse {
	return profileResponse{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarKey:   p.AvatarKey,
		Role:        p.Role,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	profile, err := s.profiles.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// handleUpdateProfile lets a user edit their own profile only.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	callerID, _ := UserIDFromContext(r.Context())
	if callerID != id {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "cannot edit another user's profile"})
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.DisplayName == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "display_name is required"})
		return
	}

	profile, err := s.profiles.Update(r.Context(), id, req.DisplayName, req.AvatarKey)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// requireAdmin loads the caller's profile and checks the admin role.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	callerID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrorUnauthorized)
		return false
	}

	profile, err := s.profiles.GetByID(r.Context(), callerID)
	if err != nil {
		writeError(w, err)
		return false
	}
	if profile.Role != models.RoleAdmin {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin role required"})
		return false
	}
	return true
}
