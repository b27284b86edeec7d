package main

import (
	"flag"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"groupchat/internal/tui"
)

func main() {
	serverURL := flag.String("server", "ws://localhost:8080/ws", "Chat server URL")
	username := flag.String("username", "", "Username (skips the login prompt)")
	flag.Parse()

	// bubbletea owns the terminal; route client logging to a file so it
	// does not tear the UI.
	if f, err := tea.LogToFile("chat.log", "chat"); err == nil {
		defer f.Close()
	} else {
		log.SetOutput(os.Stderr)
	}

	p := tea.NewProgram(tui.New(*serverURL, *username), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Failed to run UI: %v", err)
	}
}
