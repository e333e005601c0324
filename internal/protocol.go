package internal

import "encoding/json"

// EventType names a websocket event. The set is closed: the read pump
// dispatches on it exhaustively and logs anything it does not recognize.
type EventType string

// Events consumed from clients.
const (
	EvJoinRoom        EventType = "join-room"
	EvLeaveRoom       EventType = "leave-room"
	EvGetDocument     EventType = "get-document"
	EvCodeChange      EventType = "code-change"
	EvChatMessage     EventType = "chat-message"
	EvVoiceJoin       EventType = "voice-join"
	EvVoiceLeave      EventType = "voice-leave"
	EvVoiceOffer      EventType = "voice-offer"
	EvVoiceAnswer     EventType = "voice-answer"
	EvIceCandidate    EventType = "ice-candidate"
	EvVoiceToggleMute EventType = "voice-toggle-mute"
	EvWhiteboardJoin  EventType = "whiteboard-join"
	EvWhiteboardLeave EventType = "whiteboard-leave"
	EvWhiteboardSync  EventType = "whiteboard-update"
)

// Events produced for clients. whiteboard-update and the three signaling
// events are reused in both directions.
const (
	EvRoomUsers        EventType = "room-users"
	EvLoadCode         EventType = "load-code"
	EvChatHistory      EventType = "chat-history"
	EvVoiceUsersList   EventType = "voice-users-list"
	EvVoiceUserJoined  EventType = "voice-user-joined"
	EvVoiceUserLeft    EventType = "voice-user-left"
	EvVoiceUsers       EventType = "voice-users"
	EvVoiceMuteChanged EventType = "voice-user-mute-changed"
	EvWhiteboardInit   EventType = "whiteboard-init"
	EvWhiteboardUsers  EventType = "whiteboard-users"
)

// Envelope frames every message on the wire in either direction.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ChatMessage is one entry of a room's bounded chat log. The sender is
// always the username bound to the sending connection, never client input.
type ChatMessage struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// VoiceParticipant is a live voice-call member of a room.
type VoiceParticipant struct {
	ConnID   string `json:"connectionId"`
	Username string `json:"username"`
	Muted    bool   `json:"muted"`
}

// voiceRosterEntry is the public roster view: no connection ids.
type voiceRosterEntry struct {
	Username string `json:"username"`
	Muted    bool   `json:"muted"`
}

// WhiteboardRecord is one replicated drawing record. The payload is opaque
// to the server; it only merges by id and honors the deleted flag.
type WhiteboardRecord struct {
	ID      string          `json:"id"`
	Data    json.RawMessage `json:"data,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
}

// Inbound payloads.

type joinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type roomOnlyPayload struct {
	RoomID string `json:"roomId"`
}

type codeChangePayload struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

type chatSendPayload struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

type signalPayload struct {
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload"`
}

type muteTogglePayload struct {
	RoomID string `json:"roomId"`
	Muted  bool   `json:"muted"`
}

type whiteboardJoinPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type whiteboardUpdatePayload struct {
	RoomID   string             `json:"roomId"`
	Records  []WhiteboardRecord `json:"records"`
	Username string             `json:"username"`
}

// Outbound payloads.

type roomUsersPayload struct {
	Users []string `json:"users"`
}

// textPayload carries document text for both load-code and the outbound
// code-change broadcast.
type textPayload struct {
	Text string `json:"text"`
}

type chatHistoryPayload struct {
	Messages []ChatMessage `json:"messages"`
}

type voiceUsersListPayload struct {
	Users []VoiceParticipant `json:"users"`
}

type voicePeerPayload struct {
	ConnID   string `json:"connectionId"`
	Username string `json:"username"`
}

type voiceUsersPayload struct {
	Users []voiceRosterEntry `json:"users"`
}

type muteChangedPayload struct {
	Username string `json:"username"`
	Muted    bool   `json:"muted"`
}

type signalRelayPayload struct {
	From     string          `json:"from"`
	Username string          `json:"username"`
	Payload  json.RawMessage `json:"payload"`
}

type whiteboardInitPayload struct {
	Records []WhiteboardRecord `json:"records"`
}

type whiteboardUsersPayload struct {
	Users []string `json:"users"`
}

type whiteboardDeltaPayload struct {
	Records  []WhiteboardRecord `json:"records"`
	Username string             `json:"username"`
}
