package internal

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMsgSize      = 1 << 20
	chatLimitWindow = 3 * time.Second
	chatLimitBurst  = 5
)

// Client wraps a single websocket connection: a unique connection id, a
// buffered send queue, and the chat flood-control window. Room state is
// never stored here; the ConnectionState registry owns that.
type Client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once

	// read-pump-local chat flood control
	messageTimes []time.Time
}

func newClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, 256),
		messageTimes: make([]time.Time, 0, chatLimitBurst),
	}
}

// push enqueues one enveloped event for this connection. If the client's
// buffer is full the message is dropped; the ping/pong deadlines will reap
// a connection that has actually gone away.
func (client *Client) push(event EventType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("conn %s: marshal %s: %v", client.id, event, err)
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return
	}
	select {
	case client.send <- frame:
	default:
	}
}

func (client *Client) closeSend() {
	client.closeOnce.Do(func() {
		close(client.send)
	})
}

func (client *Client) readPump(server *Server) {
	defer func() {
		server.handleDisconnect(client)
		client.closeSend()
		client.conn.Close()
	}()
	client.conn.SetReadLimit(maxMsgSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			// normal close or read error; deferred cleanup unwinds the room
			break
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			log.Printf("conn %s: bad frame: %v", client.id, err)
			continue
		}
		server.dispatch(client, env)
	}
}

func (client *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()
	for {
		select {
		case message, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// allowChat is the per-connection sliding-window limit on chat messages.
// Edits and signaling are never throttled.
func (client *Client) allowChat(now time.Time) bool {
	cutoff := now.Add(-chatLimitWindow)
	idx := 0
	for _, ts := range client.messageTimes {
		if ts.After(cutoff) {
			client.messageTimes[idx] = ts
			idx++
		}
	}
	client.messageTimes = client.messageTimes[:idx]
	if len(client.messageTimes) >= chatLimitBurst {
		return false
	}
	client.messageTimes = append(client.messageTimes, now)
	return true
}

// ConnectionState is the explicit per-connection record: which room the
// connection joined and under which username. Owned by the lifecycle
// handler, keyed by connection id.
type ConnectionState struct {
	RoomID   string
	Username string
}

// connTable tracks every live connection and its state. The client index
// also serves the addressed signaling relay.
type connTable struct {
	mu      sync.Mutex
	states  map[string]ConnectionState
	clients map[string]*Client
}

func newConnTable() *connTable {
	return &connTable{
		states:  make(map[string]ConnectionState),
		clients: make(map[string]*Client),
	}
}

func (t *connTable) add(client *Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clients[client.id] = client
}

func (t *connTable) bind(connID, roomID, username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[connID] = ConnectionState{RoomID: roomID, Username: username}
}

func (t *connTable) state(connID string) (ConnectionState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[connID]
	return st, ok
}

func (t *connTable) client(connID string) *Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clients[connID]
}

// remove drops the connection and returns its last state. The second return
// is false if the connection was already removed, making disconnect
// handling idempotent.
func (t *connTable) remove(connID string) (ConnectionState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, live := t.clients[connID]; !live {
		return ConnectionState{}, false
	}
	st := t.states[connID]
	delete(t.states, connID)
	delete(t.clients, connID)
	return st, true
}
