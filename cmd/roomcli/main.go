package main

import (
	"flag"
	"fmt"
	"os"

	"coderoom/internal/app"
)

func main() {
	serverURL := flag.String("server-url", getEnv("CODEROOM_SERVER", "ws://127.0.0.1:8080/ws"), "server websocket URL")
	username := flag.String("user", getEnv("CODEROOM_USER", ""), "display name inside the room")
	flag.Parse()

	roomID := ""
	if remaining := flag.Args(); len(remaining) > 0 {
		roomID = remaining[0]
	}
	if roomID == "" {
		fmt.Fprintln(os.Stderr, "usage: roomcli [flags] <room-id>")
		os.Exit(2)
	}

	cfg := app.ClientConfig{
		ServerURL: *serverURL,
		Username:  *username,
		RoomID:    roomID,
	}
	if err := app.RunClient(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "roomcli: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
