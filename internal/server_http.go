package internal

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"coderoom/internal/storage"
)

type versionDTO struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Code      string    `json:"code"`
	SavedBy   string    `json:"savedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type versionsResponse struct {
	Versions []versionDTO `json:"versions"`
}

type restoreRequest struct {
	RoomID    string `json:"roomId"`
	VersionID string `json:"versionId"`
}

// HandleListVersions serves GET /api/versions/{roomId}: the room's snapshot
// log, newest first.
func (s *Server) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if !s.limiter.Allow(s.clientIP(r)) {
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}
	roomID := strings.TrimPrefix(r.URL.Path, "/api/versions/")
	if roomID == "" || strings.Contains(roomID, "/") {
		writeError(w, http.StatusBadRequest, errors.New("room id is required"))
		return
	}
	versions, err := s.store.ListVersions(r.Context(), roomID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]versionDTO, 0, len(versions))
	for _, v := range versions {
		out = append(out, versionDTO{
			ID:        v.ID,
			RoomID:    v.RoomID,
			Code:      v.Code,
			SavedBy:   v.SavedBy,
			CreatedAt: v.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, versionsResponse{Versions: out})
}

// HandleRestoreVersion serves POST /api/versions/restore: promote a snapshot
// to the live document and push it to everyone in the room.
func (s *Server) HandleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if !s.limiter.Allow(s.clientIP(r)) {
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}
	var req restoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.RoomID == "" || req.VersionID == "" {
		writeError(w, http.StatusBadRequest, errors.New("roomId and versionId are required"))
		return
	}
	if err := s.RestoreVersion(r.Context(), req.RoomID, req.VersionID); err != nil {
		if errors.Is(err, storage.ErrVersionNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleRoomExists reports whether a room currently has a live session.
func (s *Server) HandleRoomExists(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		http.Error(w, "missing room", http.StatusBadRequest)
		return
	}
	if s.hub.Exists(room) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	http.Error(w, "not found", http.StatusNotFound)
}

// HandleHealthz answers liveness probes with the build version and uptime.
func (s *Server) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":        Version,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

// MetricsHandler exposes the JSON counters endpoint.
func (s *Server) MetricsHandler() http.Handler {
	return s.metrics
}

func (s *Server) clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
