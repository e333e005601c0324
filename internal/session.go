package internal

import (
	"time"
)

const (
	defaultSaveDebounce  = 10 * time.Second
	defaultSnapshotEvery = 5 * time.Minute
	maxChatLog           = 100
)

// sessionEvent is the closed set of events a RoomSession processes. The
// run loop dispatches on it with an exhaustive type switch; everything that
// mutates room state arrives through this channel, in order.
type sessionEvent interface{ isSessionEvent() }

type (
	joinEvent       struct{ client *Client; username string }
	leaveEvent      struct{ client *Client }
	disconnectEvent struct{ client *Client; username string }

	getDocumentEvent struct{ client *Client }
	codeChangeEvent  struct{ client *Client; text string }
	restoreEvent     struct{ text string }

	chatEvent struct{ client *Client; text string }

	voiceJoinEvent  struct{ client *Client }
	voiceLeaveEvent struct{ client *Client }
	voiceMuteEvent  struct{ client *Client; muted bool }

	whiteboardJoinEvent   struct{ client *Client; username string }
	whiteboardLeaveEvent  struct{ client *Client; username string }
	whiteboardUpdateEvent struct {
		client   *Client
		username string
		records  []WhiteboardRecord
	}
)

func (joinEvent) isSessionEvent()             {}
func (leaveEvent) isSessionEvent()            {}
func (disconnectEvent) isSessionEvent()       {}
func (getDocumentEvent) isSessionEvent()      {}
func (codeChangeEvent) isSessionEvent()       {}
func (restoreEvent) isSessionEvent()          {}
func (chatEvent) isSessionEvent()             {}
func (voiceJoinEvent) isSessionEvent()        {}
func (voiceLeaveEvent) isSessionEvent()       {}
func (voiceMuteEvent) isSessionEvent()        {}
func (whiteboardJoinEvent) isSessionEvent()   {}
func (whiteboardLeaveEvent) isSessionEvent()  {}
func (whiteboardUpdateEvent) isSessionEvent() {}

// member is one presence entry. Reconnects of the same username swap the
// client pointer in place instead of appending a duplicate.
type member struct {
	client   *Client
	username string
}

// voiceMember is one live voice-call participant.
type voiceMember struct {
	client   *Client
	username string
	muted    bool
}

// RoomSession aggregates all live state for one room: presence, document
// text, chat log, voice roster, and whiteboard records. A single goroutine
// (run) owns every field below the channels; nothing else touches them.
type RoomSession struct {
	key string
	hub *Hub

	events chan sessionEvent
	done   chan struct{}

	members      []member
	docText      string
	docLoaded    bool
	chatLog      []ChatMessage
	voice        []voiceMember
	board        map[string]WhiteboardRecord
	boardViewers []string
	saveTimer    *time.Timer
}

func newRoomSession(key string, hub *Hub) *RoomSession {
	return &RoomSession{
		key:    key,
		hub:    hub,
		events: make(chan sessionEvent, 256),
		done:   make(chan struct{}),
	}
}

func (s *RoomSession) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// deliver hands an event to the run loop. It reports false if the session
// has already shut down, so the hub can retry against a fresh session. A
// buffered send can still win the select against done closing, which is why
// teardown drains the queue afterwards (see drainEvents).
func (s *RoomSession) deliver(ev sessionEvent) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// run is the per-room actor loop. All mutations to this room's state happen
// here, in arrival order; the two timers are owned by this goroutine too.
func (s *RoomSession) run() {
	snapshots := time.NewTicker(s.hub.snapshotEvery)
	defer snapshots.Stop()
	for {
		select {
		case ev := <-s.events:
			if s.handle(ev) {
				return
			}
		case <-s.saveTimerC():
			s.saveTimer = nil
			s.persistDocument()
		case <-snapshots.C:
			s.snapshotVersion()
		}
	}
}

// handle applies one event. It returns true once the room has emptied and
// the session has been torn down, ending the run loop.
func (s *RoomSession) handle(ev sessionEvent) bool {
	switch ev := ev.(type) {
	case joinEvent:
		s.handleJoin(ev.client, ev.username)
	case leaveEvent:
		s.removePresence(ev.client)
		return s.cleanupIfEmpty()
	case disconnectEvent:
		s.handleDisconnect(ev.client, ev.username)
		return s.cleanupIfEmpty()
	case getDocumentEvent:
		s.handleGetDocument(ev.client)
	case codeChangeEvent:
		s.handleCodeChange(ev.client, ev.text)
	case restoreEvent:
		s.handleRestore(ev.text)
	case chatEvent:
		s.handleChatMessage(ev.client, ev.text)
	case voiceJoinEvent:
		s.handleVoiceJoin(ev.client)
	case voiceLeaveEvent:
		s.handleVoiceLeave(ev.client)
	case voiceMuteEvent:
		s.handleVoiceMute(ev.client, ev.muted)
	case whiteboardJoinEvent:
		s.handleWhiteboardJoin(ev.client, ev.username)
	case whiteboardLeaveEvent:
		s.handleWhiteboardLeave(ev.username)
	case whiteboardUpdateEvent:
		s.handleWhiteboardUpdate(ev.client, ev.username, ev.records)
	}
	return false
}

func (s *RoomSession) handleJoin(client *Client, username string) {
	s.hydrate()
	client.push(EvLoadCode, textPayload{Text: s.docText})
	client.push(EvChatHistory, chatHistoryPayload{Messages: append([]ChatMessage(nil), s.chatLog...)})

	// Same username rejoining is a reconnect: migrate the entry to the new
	// connection instead of duplicating it.
	replaced := false
	for i := range s.members {
		if s.members[i].username == username {
			s.members[i].client = client
			replaced = true
			break
		}
	}
	if !replaced {
		s.members = append(s.members, member{client: client, username: username})
	}
	s.broadcastPresence()
}

// handleDisconnect unwinds one connection from every subsystem. Every
// removal tolerates "not found", so a second invocation for the same
// connection is a no-op.
func (s *RoomSession) handleDisconnect(client *Client, username string) {
	s.handleVoiceLeave(client)
	if username != "" {
		s.handleWhiteboardLeave(username)
	}
	s.removePresence(client)
}

func (s *RoomSession) removePresence(client *Client) {
	kept := s.members[:0]
	removed := false
	for _, m := range s.members {
		if m.client.id == client.id {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	s.members = kept
	if removed && len(s.members) > 0 {
		s.broadcastPresence()
	}
}

// usernames returns the deduplicated presence list, filtering entries that
// never completed their join.
func (s *RoomSession) usernames() []string {
	users := make([]string, 0, len(s.members))
	seen := make(map[string]bool, len(s.members))
	for _, m := range s.members {
		if m.username == "" || seen[m.username] {
			continue
		}
		seen[m.username] = true
		users = append(users, m.username)
	}
	return users
}

func (s *RoomSession) broadcastPresence() {
	s.broadcast(EvRoomUsers, roomUsersPayload{Users: s.usernames()})
}

// usernameOf resolves the username bound to a connection, for server-side
// sender attribution.
func (s *RoomSession) usernameOf(client *Client) string {
	for _, m := range s.members {
		if m.client.id == client.id {
			return m.username
		}
	}
	return ""
}

func (s *RoomSession) broadcast(event EventType, payload any) {
	for _, m := range s.members {
		m.client.push(event, payload)
	}
}

func (s *RoomSession) broadcastExcept(skip *Client, event EventType, payload any) {
	for _, m := range s.members {
		if m.client.id == skip.id {
			continue
		}
		m.client.push(event, payload)
	}
}

func (s *RoomSession) saveTimerC() <-chan time.Time {
	if s.saveTimer == nil {
		return nil
	}
	return s.saveTimer.C
}

// cleanupIfEmpty tears the session down once the member list empties: both
// timers stopped, ephemeral state dropped, registry entry removed. A pending
// debounced save is flushed first so the last edits still reach storage.
func (s *RoomSession) cleanupIfEmpty() bool {
	if len(s.members) > 0 {
		return false
	}
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
		s.persistDocument()
	}
	s.chatLog = nil
	s.voice = nil
	s.board = nil
	s.boardViewers = nil
	s.docText = ""
	s.docLoaded = false
	close(s.done)
	s.hub.removeSession(s.key, s)
	s.drainEvents()
	return true
}

// drainEvents re-routes anything still queued when the session shut down.
// An event accepted into the buffer just before done closed would otherwise
// be acknowledged and then lost; joins re-create the room, everything else
// follows the "absent room is an empty room" rule.
func (s *RoomSession) drainEvents() {
	for {
		select {
		case ev := <-s.events:
			_, isJoin := ev.(joinEvent)
			s.hub.Deliver(s.key, ev, isJoin)
		default:
			return
		}
	}
}
