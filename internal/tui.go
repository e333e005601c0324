package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
)

// TUIModel holds the bubbletea state for the terminal room client: the
// input line, the chat transcript, the presence list, and a live preview of
// the shared document.
type TUIModel struct {
	textInput       textinput.Model
	messages        []ChatMessage
	users           []string
	docText         string
	serverWSURL     string
	roomID          string
	username        string
	websocketConn   *websocket.Conn
	writeMutex      sync.Mutex
	isConnected     bool
	connectionError error
}

// bubbletea messages for the asynchronous websocket events.
type (
	connectedMsg struct{ conn *websocket.Conn }
	envelopeMsg  Envelope
	errorMsg     error
)

var (
	appTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1)
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	connectedStyle   = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle  = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	errorStyle       = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	presenceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("110"))
	docBoxStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(0, 1).MarginTop(1)
	messageBoxStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(1, 2).MarginTop(1)
	inputBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	timestampStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	usernameStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	systemTextStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	messageTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("253"))
)

// NewTUIModel builds a room client model with a focused input.
func NewTUIModel(serverWSURL, roomID, username string) *TUIModel {
	input := textinput.New()
	input.Placeholder = "Message, or /doc <text> to edit the document…"
	input.CharLimit = 0
	input.Focus()
	input.Prompt = "> "

	if username == "" {
		username = defaultUsername()
	}

	return &TUIModel{
		textInput:   input,
		messages:    make([]ChatMessage, 0, 64),
		serverWSURL: serverWSURL,
		roomID:      roomID,
		username:    username,
	}
}

func defaultUsername() string {
	if user := os.Getenv("CODEROOM_USER"); user != "" {
		return user
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "anon"
}

// Init dials the websocket as soon as the program starts.
func (model *TUIModel) Init() tea.Cmd {
	return model.connectCmd()
}

func (model *TUIModel) connectCmd() tea.Cmd {
	return func() tea.Msg {
		conn, _, err := websocket.DefaultDialer.Dial(model.serverWSURL, nil)
		if err != nil {
			return errorMsg(fmt.Errorf("connect %s: %w", model.serverWSURL, err))
		}
		return connectedMsg{conn: conn}
	}
}

// waitForEnvelope blocks on the next server frame and hands it to Update.
func (model *TUIModel) waitForEnvelope() tea.Cmd {
	conn := model.websocketConn
	return func() tea.Msg {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return errorMsg(err)
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return errorMsg(err)
		}
		return envelopeMsg(env)
	}
}

func (model *TUIModel) sendEvent(event EventType, payload any) {
	if model.websocketConn == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return
	}
	model.writeMutex.Lock()
	defer model.writeMutex.Unlock()
	_ = model.websocketConn.WriteMessage(websocket.TextMessage, frame)
}

// Update reacts to key presses and websocket events.
func (model *TUIModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMessage := message.(type) {
	case tea.KeyMsg:
		if typedMessage.Type == tea.KeyCtrlC || typedMessage.Type == tea.KeyEsc {
			if model.websocketConn != nil {
				model.sendEvent(EvLeaveRoom, roomOnlyPayload{RoomID: model.roomID})
				_ = model.websocketConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = model.websocketConn.Close()
			}
			return model, tea.Quit
		}
		if typedMessage.Type == tea.KeyEnter {
			model.submitInput()
			return model, nil
		}

	case connectedMsg:
		model.websocketConn = typedMessage.conn
		model.isConnected = true
		model.connectionError = nil
		model.sendEvent(EvJoinRoom, joinRoomPayload{RoomID: model.roomID, Username: model.username})
		return model, model.waitForEnvelope()

	case envelopeMsg:
		model.applyEnvelope(Envelope(typedMessage))
		return model, model.waitForEnvelope()

	case errorMsg:
		model.isConnected = false
		model.connectionError = typedMessage
		return model, nil
	}

	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(message)
	return model, cmd
}

func (model *TUIModel) submitInput() {
	text := strings.TrimSpace(model.textInput.Value())
	model.textInput.SetValue("")
	if text == "" {
		return
	}
	if doc, ok := strings.CutPrefix(text, "/doc "); ok {
		doc = strings.TrimSpace(doc)
		if doc == "" {
			return
		}
		model.docText = doc
		model.sendEvent(EvCodeChange, codeChangePayload{RoomID: model.roomID, Text: doc})
		return
	}
	model.sendEvent(EvChatMessage, chatSendPayload{RoomID: model.roomID, Text: text})
}

func (model *TUIModel) applyEnvelope(env Envelope) {
	switch env.Event {
	case EvRoomUsers:
		var p roomUsersPayload
		if json.Unmarshal(env.Data, &p) == nil {
			model.users = p.Users
		}
	case EvLoadCode, EvCodeChange:
		var p textPayload
		if json.Unmarshal(env.Data, &p) == nil {
			model.docText = p.Text
		}
	case EvChatHistory:
		var p chatHistoryPayload
		if json.Unmarshal(env.Data, &p) == nil {
			model.messages = append(model.messages[:0], p.Messages...)
		}
	case EvChatMessage:
		var msg ChatMessage
		if json.Unmarshal(env.Data, &msg) == nil {
			model.messages = append(model.messages, msg)
			if len(model.messages) > maxChatLog {
				model.messages = model.messages[len(model.messages)-maxChatLog:]
			}
		}
	default:
		// voice and whiteboard traffic is not rendered by the terminal client
	}
}

// View renders header, document preview, presence, transcript, and input.
func (model *TUIModel) View() string {
	var b strings.Builder
	b.WriteString(appTitleStyle.Render("coderoom / " + model.roomID))
	b.WriteString("\n")

	switch {
	case model.connectionError != nil:
		b.WriteString(errorStyle.Render("✗ " + model.connectionError.Error()))
	case model.isConnected:
		b.WriteString(connectedStyle.Render("● connected as " + model.username))
	default:
		b.WriteString(connectingStyle.Render("… connecting"))
	}
	b.WriteString("\n")

	if len(model.users) > 0 {
		b.WriteString(presenceStyle.Render("here: " + strings.Join(model.users, ", ")))
		b.WriteString("\n")
	}

	b.WriteString(docBoxStyle.Render(model.docPreview()))
	b.WriteString("\n")
	b.WriteString(messageBoxStyle.Render(model.transcript()))
	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(model.textInput.View()))
	b.WriteString("\n")
	return b.String()
}

const docPreviewLines = 8

func (model *TUIModel) docPreview() string {
	if strings.TrimSpace(model.docText) == "" {
		return systemTextStyle.Render("(document is empty)")
	}
	lines := strings.Split(model.docText, "\n")
	if len(lines) > docPreviewLines {
		lines = append(lines[:docPreviewLines], fmt.Sprintf("… %d more lines", len(lines)-docPreviewLines))
	}
	return strings.Join(lines, "\n")
}

const transcriptLines = 12

func (model *TUIModel) transcript() string {
	if len(model.messages) == 0 {
		return systemTextStyle.Render("No messages yet.")
	}
	start := 0
	if len(model.messages) > transcriptLines {
		start = len(model.messages) - transcriptLines
	}
	var lines []string
	for _, msg := range model.messages[start:] {
		stamp := timestampStyle.Render(msg.Timestamp)
		if msg.Sender == "system" {
			lines = append(lines, stamp+" "+systemTextStyle.Render(msg.Text))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			stamp,
			usernameStyle.Render(msg.Sender+":"),
			messageTextStyle.Render(msg.Text)))
	}
	return strings.Join(lines, "\n")
}
