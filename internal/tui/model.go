// Package tui is the terminal front end: a login prompt followed by the
// chat screen. It holds no chat state of its own; every render reads
// snapshots from the session, and session change notifications arrive as
// ordinary bubbletea messages.
package tui

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"groupchat/internal/client"
	"groupchat/internal/session"
)

const dialTimeout = 10 * time.Second

type phase int

const (
	phaseLogin phase = iota
	phaseChat
)

type (
	// refreshMsg means some session state changed; re-read the snapshots.
	refreshMsg struct{}
	// connectedMsg carries the connected client into the chat phase.
	connectedMsg struct{ client *client.Client }
	// disconnectedMsg means the server went away.
	disconnectedMsg struct{}
	errMsg          struct{ err error }
)

// Model is the bubbletea model for the whole client UI.
type Model struct {
	serverURL string
	autoLogin string

	phase    phase
	username string
	client   *client.Client

	login    textinput.Model
	input    textinput.Model
	viewport viewport.Model

	events chan tea.Msg

	width  int
	height int
	ready  bool
	err    error
	gone   bool
}

// New creates the UI for the server at serverURL. A non-empty username
// skips the login prompt.
func New(serverURL, username string) Model {
	login := textinput.New()
	login.Placeholder = "username"
	login.CharLimit = 32
	login.Focus()

	input := textinput.New()
	input.Placeholder = "Message"

	return Model{
		serverURL: serverURL,
		autoLogin: username,
		phase:     phaseLogin,
		login:     login,
		input:     input,
		events:    make(chan tea.Msg, 32),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.waitForEvent()}
	if m.autoLogin != "" {
		cmds = append(cmds, m.connect(m.autoLogin))
	}
	return tea.Batch(cmds...)
}

// waitForEvent forwards one pushed session event into the update loop.
func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg { return <-m.events }
}

// push delivers a message from a session callback or watcher goroutine.
// When the buffer is full the event is dropped: a queued refresh re-reads
// the same snapshots anyway.
func (m Model) push(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
	}
}

// connect dials, registers, and hands the client to the chat phase.
func (m Model) connect(username string) tea.Cmd {
	return func() tea.Msg {
		c := client.New(m.serverURL)
		c.Session().SetListener(session.Listener{
			RosterChanged:    func() { m.push(refreshMsg{}) },
			MessagesChanged:  func() { m.push(refreshMsg{}) },
			TypingChanged:    func() { m.push(refreshMsg{}) },
			ReactionsChanged: func() { m.push(refreshMsg{}) },
		})

		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		if err := c.Connect(ctx, username); err != nil {
			return errMsg{err}
		}

		go func() {
			<-c.Disconnected()
			m.push(disconnectedMsg{})
		}()
		return connectedMsg{client: c}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		return m, nil

	case connectedMsg:
		m.client = msg.client
		m.username = m.client.Session().Username()
		m.phase = phaseChat
		m.input.Focus()
		m.login.Blur()
		m.resize()
		return m, nil

	case refreshMsg:
		m.refreshViewport()
		return m, m.waitForEvent()

	case disconnectedMsg:
		m.gone = true
		return m, tea.Quit

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateInputs(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		if m.client != nil {
			m.client.Disconnect()
		}
		return m, tea.Quit

	case "enter":
		if m.phase == phaseLogin {
			username := strings.TrimSpace(m.login.Value())
			if username == "" {
				return m, nil
			}
			m.err = nil
			return m, m.connect(username)
		}
		m.submit()
		return m, nil
	}
	return m.updateInputs(msg)
}

// submit sends the composed text (or a /react command) and clears the
// composition box, which also resets the composing flag.
func (m *Model) submit() {
	text := m.input.Value()
	if index, symbol, ok := parseReactCommand(text); ok {
		m.client.Session().React(index, symbol)
	} else {
		m.client.Session().Submit(text)
	}
	m.input.Reset()
	m.client.Session().SetComposing(false)
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.phase {
	case phaseLogin:
		m.login, cmd = m.login.Update(msg)
	case phaseChat:
		m.input, cmd = m.input.Update(msg)
		// The composing flag mirrors box emptiness; the session debounces
		// the outbound typing signal to the false-to-true edge.
		m.client.Session().SetComposing(m.input.Value() != "")
	}
	return m, cmd
}

// parseReactCommand recognizes "/react <index> <emoji>", indices as
// displayed next to each message.
func parseReactCommand(text string) (int, string, bool) {
	fields := strings.Fields(text)
	if len(fields) != 3 || fields[0] != "/react" {
		return 0, "", false
	}
	index, err := strconv.Atoi(fields[1])
	if err != nil || index < 0 {
		return 0, "", false
	}
	return index, fields[2], true
}
