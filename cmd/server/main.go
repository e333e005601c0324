package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coderoom/internal/app"
)

func main() {
	addr := flag.String("addr", getEnv("CODEROOM_ADDR", ":8080"), "server listen address")
	wsPath := flag.String("ws-path", getEnv("CODEROOM_WS_PATH", "/ws"), "websocket endpoint path")
	db := flag.String("db", getEnv("CODEROOM_DB_PATH", ""), "sqlite database path")
	saveDebounce := flag.Duration("save-debounce", 10*time.Second, "quiet period before the live document is persisted")
	snapshotEvery := flag.Duration("snapshot-every", 5*time.Minute, "interval between immutable document versions")
	flag.Parse()

	cfg := app.ServerConfig{
		Addr:          *addr,
		WSPath:        app.NormalizeWSPath(*wsPath),
		DBPath:        *db,
		SaveDebounce:  *saveDebounce,
		SnapshotEvery: *snapshotEvery,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = app.DefaultDBPath()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := app.RunServer(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coderoom: %v\n", err)
		os.Exit(1)
	}
	log.Printf("coderoom server listening on %s (ws path %s, db %s)", handle.Addr(), cfg.WSPath, cfg.DBPath)

	if err := handle.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "coderoom: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
