package internal

import (
	"sync"
	"time"

	"coderoom/internal/storage"
)

// Hub is the process-wide session registry: room id to live RoomSession.
// Sessions are created on first join and dropped the moment their member
// list empties.
type Hub struct {
	mutex sync.RWMutex
	rooms map[string]*RoomSession

	store         *storage.Store
	metrics       *Metrics
	saveDebounce  time.Duration
	snapshotEvery time.Duration
}

func NewHub(store *storage.Store, metrics *Metrics, saveDebounce, snapshotEvery time.Duration) *Hub {
	if saveDebounce <= 0 {
		saveDebounce = defaultSaveDebounce
	}
	if snapshotEvery <= 0 {
		snapshotEvery = defaultSnapshotEvery
	}
	return &Hub{
		rooms:         make(map[string]*RoomSession),
		store:         store,
		metrics:       metrics,
		saveDebounce:  saveDebounce,
		snapshotEvery: snapshotEvery,
	}
}

// Exists returns true if a room with the given id currently has a live
// session. A session that has shut down but not yet left the registry does
// not count.
func (hub *Hub) Exists(roomID string) bool {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	session, ok := hub.rooms[roomID]
	return ok && !session.closed()
}

func (hub *Hub) getSession(roomID string) *RoomSession {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	return hub.rooms[roomID]
}

func (hub *Hub) getOrCreateSession(roomID string) *RoomSession {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	if session, exists := hub.rooms[roomID]; exists && !session.closed() {
		return session
	}
	session := newRoomSession(roomID, hub)
	hub.rooms[roomID] = session
	hub.metrics.IncRoom()
	go session.run()
	return session
}

// removeSession drops a session from the registry, but only if the registry
// still points at that exact session. Called by the session itself once its
// member list empties and its timers are stopped.
func (hub *Hub) removeSession(roomID string, session *RoomSession) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	if hub.rooms[roomID] == session {
		delete(hub.rooms, roomID)
		hub.metrics.DecRoom()
	}
}

// Deliver routes an event to the room's session. With create set it will
// spin up a session on demand (joins); otherwise an absent room is a no-op,
// matching the "room not found means empty room" rule. The retry loop covers
// the window where a session shuts down between lookup and send.
func (hub *Hub) Deliver(roomID string, ev sessionEvent, create bool) {
	for {
		var session *RoomSession
		if create {
			session = hub.getOrCreateSession(roomID)
		} else {
			session = hub.getSession(roomID)
		}
		if session == nil {
			return
		}
		if session.deliver(ev) {
			return
		}
		if !create {
			return
		}
	}
}
