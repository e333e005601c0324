package internal

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"coderoom/internal/storage"
)

// Server owns the shared pieces of the coordinator: the session registry,
// the durable store, the connection table, and the REST rate limiter.
type Server struct {
	hub     *Hub
	store   *storage.Store
	metrics *Metrics
	conns   *connTable
	limiter *RateLimiter
	started time.Time
}

// NewServer wires a coordinator around an opened store. Zero durations pick
// the production debounce and snapshot intervals.
func NewServer(store *storage.Store, saveDebounce, snapshotEvery time.Duration) *Server {
	metrics := NewMetrics()
	return &Server{
		hub:     NewHub(store, metrics, saveDebounce, snapshotEvery),
		store:   store,
		metrics: metrics,
		conns:   newConnTable(),
		limiter: NewRateLimiter(30, time.Minute),
		started: time.Now(),
	}
}

// Hub exposes the session registry for the REST handlers and tests.
func (s *Server) Hub() *Hub { return s.hub }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// room ids are opaque capabilities handed out by the room-creation
		// workflow, so any origin may connect
		return true
	},
}

// ServeWS upgrades the request and starts the connection's pumps. Room
// membership happens later, via the join-room event.
func (s *Server) ServeWS(writer http.ResponseWriter, request *http.Request) {
	websocketConn, err := upgrader.Upgrade(writer, request, nil)
	if err != nil {
		log.Printf("upgrade error: %v", err)
		return
	}
	client := newClient(uuid.NewString(), websocketConn)
	s.conns.add(client)
	s.metrics.IncConn()

	go client.writePump()
	go client.readPump(s)
}

// dispatch routes one decoded envelope from a connection. Unknown events
// are logged and dropped; malformed payloads are dropped silently per the
// error taxonomy.
func (s *Server) dispatch(client *Client, env Envelope) {
	switch env.Event {
	case EvJoinRoom:
		var p joinRoomPayload
		if json.Unmarshal(env.Data, &p) != nil || p.RoomID == "" || p.Username == "" {
			return
		}
		s.conns.bind(client.id, p.RoomID, p.Username)
		s.hub.Deliver(p.RoomID, joinEvent{client: client, username: p.Username}, true)

	case EvLeaveRoom:
		var p roomOnlyPayload
		if json.Unmarshal(env.Data, &p) != nil || p.RoomID == "" {
			return
		}
		s.hub.Deliver(p.RoomID, leaveEvent{client: client}, false)

	case EvGetDocument:
		var p roomOnlyPayload
		if json.Unmarshal(env.Data, &p) != nil || p.RoomID == "" {
			return
		}
		s.handleGetDocument(client, p.RoomID)

	case EvCodeChange:
		var p codeChangePayload
		if json.Unmarshal(env.Data, &p) != nil || p.RoomID == "" {
			return
		}
		s.hub.Deliver(p.RoomID, codeChangeEvent{client: client, text: p.Text}, false)

	case EvChatMessage:
		var p chatSendPayload
		if json.Unmarshal(env.Data, &p) != nil || p.RoomID == "" {
			return
		}
		if !client.allowChat(time.Now()) {
			client.push(EvChatMessage, ChatMessage{
				ID:        "system",
				Sender:    "system",
				Text:      "You're sending messages too quickly. Please wait a moment and try again.",
				Timestamp: time.Now().Format("15:04:05"),
			})
			return
		}
		s.hub.Deliver(p.RoomID, chatEvent{client: client, text: p.Text}, false)

	case EvVoiceJoin:
		var p roomOnlyPayload
		if json.Unmarshal(env.Data, &p) != nil || p.RoomID == "" {
			return
		}
		s.hub.Deliver(p.RoomID, voiceJoinEvent{client: client}, false)

	case EvVoiceLeave:
		var p roomOnlyPayload
		if json.Unmarshal(env.Data, &p) != nil || p.RoomID == "" {
			return
		}
		s.hub.Deliver(p.RoomID, voiceLeaveEvent{client: client}, false)

	case EvVoiceOffer, EvVoiceAnswer, EvIceCandidate:
		var p signalPayload
		if json.Unmarshal(env.Data, &p) != nil || p.To == "" {
			return
		}
		s.relaySignal(env.Event, client, p.To, p.Payload)

	case EvVoiceToggleMute:
		var p muteTogglePayload
		if json.Unmarshal(env.Data, &p) != nil || p.RoomID == "" {
			return
		}
		s.hub.Deliver(p.RoomID, voiceMuteEvent{client: client, muted: p.Muted}, false)

	case EvWhiteboardJoin:
		var p whiteboardJoinPayload
		if json.Unmarshal(env.Data, &p) != nil || p.RoomID == "" {
			return
		}
		username := s.whiteboardUsername(client, p.Username)
		if username == "" {
			return
		}
		s.hub.Deliver(p.RoomID, whiteboardJoinEvent{client: client, username: username}, false)

	case EvWhiteboardLeave:
		var p whiteboardJoinPayload
		if json.Unmarshal(env.Data, &p) != nil || p.RoomID == "" {
			return
		}
		s.hub.Deliver(p.RoomID, whiteboardLeaveEvent{client: client, username: s.whiteboardUsername(client, p.Username)}, false)

	case EvWhiteboardSync:
		var p whiteboardUpdatePayload
		if json.Unmarshal(env.Data, &p) != nil || p.RoomID == "" {
			return
		}
		s.hub.Deliver(p.RoomID, whiteboardUpdateEvent{client: client, username: s.whiteboardUsername(client, p.Username), records: p.Records}, false)

	default:
		log.Printf("conn %s: unhandled event %q", client.id, env.Event)
	}
}

// whiteboardUsername resolves the viewer identity for whiteboard events.
// The join binding wins so the viewer entry matches what disconnect cleanup
// will remove; the payload field is only a fallback for connections that
// never completed a join.
func (s *Server) whiteboardUsername(client *Client, fromPayload string) string {
	if st, ok := s.conns.state(client.id); ok && st.Username != "" {
		return st.Username
	}
	return fromPayload
}

// handleGetDocument answers with the live cache when the room has a
// session, and falls back to durable storage otherwise, so a caller always
// gets an answer even for an idle room.
func (s *Server) handleGetDocument(client *Client, roomID string) {
	if session := s.hub.getSession(roomID); session != nil {
		if session.deliver(getDocumentEvent{client: client}) {
			return
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()
	text := ""
	if doc, err := s.store.FindDocument(ctx, roomID); err != nil {
		log.Printf("room %s: get-document lookup failed: %v", roomID, err)
	} else if doc != nil {
		text = doc.Code
	}
	client.push(EvLoadCode, textPayload{Text: text})
}

// relaySignal forwards a call-setup payload verbatim to exactly the named
// connection, tagged with the sender so the recipient can address its reply.
// A missing target is a silent no-op; the peer times out on its own.
func (s *Server) relaySignal(event EventType, from *Client, targetConnID string, payload json.RawMessage) {
	target := s.conns.client(targetConnID)
	if target == nil {
		return
	}
	username := ""
	if st, ok := s.conns.state(from.id); ok {
		username = st.Username
	}
	target.push(event, signalRelayPayload{From: from.id, Username: username, Payload: payload})
	s.metrics.IncSignal()
}

// handleDisconnect unwinds a closed connection from its room. The conn
// table returns false on the second call for the same id, and every session
// removal tolerates "not found", so this is idempotent end to end.
func (s *Server) handleDisconnect(client *Client) {
	state, live := s.conns.remove(client.id)
	if !live {
		return
	}
	s.metrics.DecConn()
	if state.RoomID == "" {
		return
	}
	s.hub.Deliver(state.RoomID, disconnectEvent{client: client, username: state.Username}, false)
}

// RestoreVersion loads a snapshot, makes it the durable live document, and
// overwrites the in-memory cache of any running session, broadcasting the
// restored text to the whole room.
func (s *Server) RestoreVersion(ctx context.Context, roomID, versionID string) error {
	version, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if err := s.store.UpsertDocument(ctx, roomID, version.Code); err != nil {
		return err
	}
	s.hub.Deliver(roomID, restoreEvent{text: version.Code}, false)
	return nil
}
