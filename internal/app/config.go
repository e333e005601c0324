package app

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// ServerConfig defines how the coordinator backend should run.
type ServerConfig struct {
	Addr   string
	WSPath string
	DBPath string

	// SaveDebounce is the quiet period after the last edit before the live
	// document is written; SnapshotEvery is the immutable-version cadence.
	// Zero values select the production defaults (10s / 5m).
	SaveDebounce  time.Duration
	SnapshotEvery time.Duration
}

// ClientConfig defines the parameters the terminal client needs.
type ClientConfig struct {
	ServerURL string
	Username  string
	RoomID    string
}

// DefaultDBPath returns a per-user data path for the bundled SQLite file.
func DefaultDBPath() string {
	if env := os.Getenv("CODEROOM_DB_PATH"); env != "" {
		return env
	}
	if env := os.Getenv("CODEROOM_DATA_DIR"); env != "" {
		return filepath.Join(env, "coderoom.db")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "coderoom", "coderoom.db")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Coderoom", "coderoom.db")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Coderoom", "coderoom.db")
		}
		return filepath.Join(home, ".local", "share", "coderoom", "coderoom.db")
	}
	return filepath.Join(".", ".coderoom", "coderoom.db")
}

// NormalizeWSPath guarantees the websocket path starts with '/' and falls
// back to /ws when empty.
func NormalizeWSPath(path string) string {
	if path == "" {
		return "/ws"
	}
	if path[0] != '/' {
		return "/" + path
	}
	return path
}
