package app

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	intrnl "coderoom/internal"
)

// RunClient starts the terminal room client against a running coordinator.
func RunClient(cfg ClientConfig) error {
	if cfg.ServerURL == "" {
		return errors.New("server websocket URL is required")
	}
	if cfg.RoomID == "" {
		return errors.New("room id is required")
	}
	model := intrnl.NewTUIModel(cfg.ServerURL, cfg.RoomID, cfg.Username)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
