package internal

import (
	"context"
	"log"
	"strings"
	"time"
)

const storeOpTimeout = 5 * time.Second

// hydrate lazily loads the room's document from durable storage, once.
// Missing rows default to empty text. Safe to call repeatedly; the cached
// copy is authoritative until the session is destroyed.
func (s *RoomSession) hydrate() {
	if s.docLoaded {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()
	doc, err := s.hub.store.FindDocument(ctx, s.key)
	if err != nil {
		log.Printf("room %s: hydrate failed: %v", s.key, err)
		return
	}
	if doc != nil {
		s.docText = doc.Code
	}
	s.docLoaded = true
}

// handleGetDocument resends the current text to the caller only.
func (s *RoomSession) handleGetDocument(client *Client) {
	s.hydrate()
	client.push(EvLoadCode, textPayload{Text: s.docText})
}

// handleCodeChange applies an edit: cache first, broadcast to everyone but
// the sender, then arm the debounced save. Empty text is dropped outright so
// a transient client glitch can never wipe the room.
func (s *RoomSession) handleCodeChange(client *Client, text string) {
	if text == "" {
		return
	}
	s.docText = text
	s.docLoaded = true
	s.broadcastExcept(client, EvCodeChange, textPayload{Text: text})

	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.saveTimer = time.NewTimer(s.hub.saveDebounce)
}

// handleRestore is the administrative overwrite behind the restore REST
// endpoint: durable storage has already been updated, so this replaces the
// cache, drops any pending debounced save, and broadcasts to the whole room.
func (s *RoomSession) handleRestore(text string) {
	s.docText = text
	s.docLoaded = true
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	s.broadcast(EvCodeChange, textPayload{Text: text})
}

// persistDocument upserts the cached text, fire-and-forget. A failed write
// is logged and retried naturally by the next debounce or snapshot cycle.
func (s *RoomSession) persistDocument() {
	text := s.docText
	roomID := s.key
	store := s.hub.store
	metrics := s.hub.metrics
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
		defer cancel()
		if err := store.UpsertDocument(ctx, roomID, text); err != nil {
			metrics.IncSaveError()
			log.Printf("room %s: document save failed: %v", roomID, err)
			return
		}
		metrics.IncSave()
	}()
}

// snapshotVersion appends the cached text to the immutable version log.
// Skipped while the text is blank or the room has no members.
func (s *RoomSession) snapshotVersion() {
	if len(s.members) == 0 || strings.TrimSpace(s.docText) == "" {
		return
	}
	text := s.docText
	roomID := s.key
	store := s.hub.store
	metrics := s.hub.metrics
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
		defer cancel()
		if _, err := store.InsertVersion(ctx, roomID, text, ""); err != nil {
			log.Printf("room %s: version snapshot failed: %v", roomID, err)
			return
		}
		metrics.IncSnapshot()
	}()
}
