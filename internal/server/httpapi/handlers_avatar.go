package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/soundcircle/internal/common"
)

type presignUploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type presignDownloadResponse struct {
	URL string `json:"url"`
}

// handlePresignUpload returns a storage key scoped to the caller plus a URL
// accepting a direct PUT of the image bytes.
func (s *Server) handlePresignUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrorUnauthorized)
		return
	}

	key, url, err := s.avatars.GetPresignedPutURL(r.Context(), userID)
	if err != nil {
		s.logger.Error(r.Context(), "error presigning avatar upload", "error", err)
		writeError(w, common.ErrorInternal)
		return
	}

	writeJSON(w, http.StatusOK, presignUploadResponse{Key: key, URL: url})
}

func (s *Server) handlePresignDownload(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "key is required"})
		return
	}

	url, err := s.avatars.GetPresignedGetURL(r.Context(), key)
	if err != nil {
		s.logger.Error(r.Context(), "error presigning avatar download", "error", err)
		writeError(w, common.ErrorInternal)
		return
	}

	writeJSON(w, http.StatusOK, presignDownloadResponse{URL: url})
}
