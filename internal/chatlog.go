package internal

import (
	"strconv"
	"strings"
	"time"
)

// handleChatMessage appends to the bounded chat log and echoes to the whole
// room, sender included, so everyone observes the same ordering. Blank
// messages are dropped silently. The sender name comes from the connection's
// join binding, never from the payload.
func (s *RoomSession) handleChatMessage(client *Client, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	sender := s.usernameOf(client)
	if sender == "" {
		sender = "Anonymous"
	}
	now := time.Now()
	msg := ChatMessage{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		Sender:    sender,
		Text:      text,
		Timestamp: now.Format("15:04:05"),
	}
	s.chatLog = append(s.chatLog, msg)
	if len(s.chatLog) > maxChatLog {
		s.chatLog = s.chatLog[len(s.chatLog)-maxChatLog:]
	}
	s.hub.metrics.IncChat()
	s.broadcast(EvChatMessage, msg)
}
