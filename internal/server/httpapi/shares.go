package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dropgate/dropgate/internal/common"
	"github.com/dropgate/dropgate/internal/server/models"
	"github.com/dropgate/dropgate/internal/server/proxy"
)

// defaultShareTTL applies when a share is registered without an explicit
// expiry.
const defaultShareTTL = 7 * 24 * time.Hour

// sharePasswordHeader carries the link password on share resolution.
const sharePasswordHeader = "X-Share-Password"

type createShareRequest struct {
	FileName         string `json:"fileName"`
	StorageKey       string `json:"storageKey"`
	Size             int64  `json:"size"`
	ContentType      string `json:"contentType"`
	Password         string `json:"password"`
	BatchID          string `json:"batchId"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

type shareReply struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	Downloads   int64     `json:"downloads"`
	ExpiresAt   time.Time `json:"expiresAt"`
	URL         string    `json:"url,omitempty"`
}

// handleCreateShare registers metadata for an already uploaded object and
// returns the share id. The object itself travels through the transfer
// endpoint; this row only makes it addressable as a link.
func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	var req createShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed share request")
		return
	}
	if req.FileName == "" || req.StorageKey == "" {
		writeError(w, http.StatusBadRequest, "fileName and storageKey are required")
		return
	}

	ownerID, _ := r.Context().Value(userIDKey).(string)

	ttl := defaultShareTTL
	if req.ExpiresInSeconds > 0 {
		ttl = time.Duration(req.ExpiresInSeconds) * time.Second
	}

	f := &models.File{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		FileName:    req.FileName,
		StorageKey:  req.StorageKey,
		Size:        req.Size,
		ContentType: req.ContentType,
		BatchID:     req.BatchID,
		ExpiresAt:   time.Now().Add(ttl),
	}
	if req.Password != "" {
		if err := f.SetPassword(req.Password); err != nil {
			writeError(w, http.StatusInternalServerError, "could not protect share")
			return
		}
	}

	if err := s.files.Insert(r.Context(), f); err != nil {
		s.logger.Error(r.Context(), "share insert failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "could not register share")
		return
	}

	writeJSON(w, http.StatusCreated, shareReply{
		ID:          f.ID,
		FileName:    f.FileName,
		Size:        f.Size,
		ContentType: f.ContentType,
		ExpiresAt:   f.ExpiresAt,
	})
}

// handleResolveShare turns a share id into file metadata plus a presigned
// download URL. It is unauthenticated: the id (and optional password) is the
// credential, which is the whole point of a share link. Expired shares are
// indistinguishable from missing ones.
func (s *Server) handleResolveShare(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f, err := s.files.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "share not found")
			return
		}
		s.logger.Error(r.Context(), "share lookup failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "share lookup failed")
		return
	}

	if f.Expired(time.Now()) {
		writeError(w, http.StatusNotFound, "share not found")
		return
	}
	if !f.CheckPassword(r.Header.Get(sharePasswordHeader)) {
		writeError(w, http.StatusUnauthorized, "password required")
		return
	}

	resp, err := s.proxy.Handle(r.Context(), proxy.Envelope{
		Operation:  proxy.OpGetDownloadURL,
		StorageKey: f.StorageKey,
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	if err := s.files.IncrementDownloads(r.Context(), f.ID); err != nil {
		// The download still works; the counter is best effort.
		s.logger.Error(r.Context(), "download counter failed", "id", f.ID, "error", err.Error())
	}

	writeJSON(w, http.StatusOK, shareReply{
		ID:          f.ID,
		FileName:    f.FileName,
		Size:        f.Size,
		ContentType: f.ContentType,
		Downloads:   f.Downloads + 1,
		ExpiresAt:   f.ExpiresAt,
		URL:         resp.URL,
	})
}
