package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestListVersionsEndpoint(t *testing.T) {
	srv := newTestServer(t, time.Hour, time.Hour)
	ctx := context.Background()
	if _, err := srv.store.InsertVersion(ctx, "r1", "draft one", "alice"); err != nil {
		t.Fatalf("InsertVersion: %v", err)
	}
	if _, err := srv.store.InsertVersion(ctx, "r1", "draft two", ""); err != nil {
		t.Fatalf("InsertVersion: %v", err)
	}
	if _, err := srv.store.InsertVersion(ctx, "other", "unrelated", ""); err != nil {
		t.Fatalf("InsertVersion: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/versions/r1", nil)
	rec := httptest.NewRecorder()
	srv.HandleListVersions(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp versionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(resp.Versions))
	}
	if resp.Versions[0].CreatedAt.Before(resp.Versions[1].CreatedAt) {
		t.Fatalf("expected newest first")
	}

	// missing room id
	req = httptest.NewRequest(http.MethodGet, "/api/versions/", nil)
	rec = httptest.NewRecorder()
	srv.HandleListVersions(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty room id, got %d", rec.Code)
	}

	// wrong method
	req = httptest.NewRequest(http.MethodDelete, "/api/versions/r1", nil)
	rec = httptest.NewRecorder()
	srv.HandleListVersions(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestRestoreEndpoint(t *testing.T) {
	srv := newTestServer(t, time.Hour, time.Hour)
	ctx := context.Background()
	versionID, err := srv.store.InsertVersion(ctx, "r1", "the snapshot", "alice")
	if err != nil {
		t.Fatalf("InsertVersion: %v", err)
	}

	alice := testClient(t, srv)
	joinRoom(t, srv, alice, "r1", "alice")

	body := strings.NewReader(`{"roomId":"r1","versionId":"` + versionID + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/versions/restore", body)
	rec := httptest.NewRecorder()
	srv.HandleRestoreVersion(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// the room was told and storage was updated
	var restored textPayload
	decodeEvent(t, nextEvent(t, alice, EvCodeChange), &restored)
	if restored.Text != "the snapshot" {
		t.Fatalf("expected restore broadcast, got %q", restored.Text)
	}
	doc := findDocument(t, srv, "r1")
	if doc == nil || doc.Code != "the snapshot" {
		t.Fatalf("expected restored document, got %+v", doc)
	}

	// unknown version
	body = strings.NewReader(`{"roomId":"r1","versionId":"ghost"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/versions/restore", body)
	rec = httptest.NewRecorder()
	srv.HandleRestoreVersion(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	// incomplete request
	body = strings.NewReader(`{"roomId":"r1"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/versions/restore", body)
	rec = httptest.NewRecorder()
	srv.HandleRestoreVersion(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRoomExistsEndpoint(t *testing.T) {
	srv := newTestServer(t, time.Hour, time.Hour)
	alice := testClient(t, srv)
	joinRoom(t, srv, alice, "busy", "alice")

	req := httptest.NewRequest(http.MethodGet, "/exists?room=busy", nil)
	rec := httptest.NewRecorder()
	srv.HandleRoomExists(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for live room, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/exists?room=empty", nil)
	rec = httptest.NewRecorder()
	srv.HandleRoomExists(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for idle room, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/exists", nil)
	rec = httptest.NewRecorder()
	srv.HandleRoomExists(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing room, got %d", rec.Code)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	srv := newTestServer(t, time.Hour, time.Hour)

	rec := httptest.NewRecorder()
	srv.HandleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health["version"] != Version {
		t.Fatalf("expected version %q, got %v", Version, health["version"])
	}

	rec = httptest.NewRecorder()
	srv.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var counters map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &counters); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := counters["document_saves_total"]; !ok {
		t.Fatalf("missing counter in %v", counters)
	}
}

func TestVersionEndpointsAreRateLimited(t *testing.T) {
	srv := newTestServer(t, time.Hour, time.Hour)
	limited := false
	for i := 0; i < 40; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/versions/r1", nil)
		req.RemoteAddr = "203.0.113.7:9999"
		rec := httptest.NewRecorder()
		srv.HandleListVersions(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatalf("expected the limiter to kick in within 40 requests")
	}
}
