package internal

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

type Metrics struct {
	activeConns    atomic.Int64
	activeRooms    atomic.Int64
	chatMessages   atomic.Uint64
	documentSaves  atomic.Uint64
	saveErrors     atomic.Uint64
	snapshots      atomic.Uint64
	signalsRelayed atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncConn()      { m.activeConns.Add(1) }
func (m *Metrics) DecConn()      { m.activeConns.Add(-1) }
func (m *Metrics) IncRoom()      { m.activeRooms.Add(1) }
func (m *Metrics) DecRoom()      { m.activeRooms.Add(-1) }
func (m *Metrics) IncChat()      { m.chatMessages.Add(1) }
func (m *Metrics) IncSave()      { m.documentSaves.Add(1) }
func (m *Metrics) IncSaveError() { m.saveErrors.Add(1) }
func (m *Metrics) IncSnapshot()  { m.snapshots.Add(1) }
func (m *Metrics) IncSignal()    { m.signalsRelayed.Add(1) }

func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"active_connections":    m.activeConns.Load(),
		"active_rooms":          m.activeRooms.Load(),
		"chat_messages_total":   m.chatMessages.Load(),
		"document_saves_total":  m.documentSaves.Load(),
		"save_errors_total":     m.saveErrors.Load(),
		"snapshots_total":       m.snapshots.Load(),
		"signals_relayed_total": m.signalsRelayed.Load(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
