package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const rosterWidth = 20

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	rosterStyle = lipgloss.NewStyle().
			Width(rosterWidth).
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(lipgloss.Color("8"))
	onlineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	senderStyle   = lipgloss.NewStyle().Bold(true)
	stampStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	typingStyle   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8"))
	reactionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}
	if m.gone {
		return "Connection to server lost.\n"
	}
	if m.phase == phaseLogin {
		return m.loginView()
	}
	return m.chatView()
}

func (m Model) loginView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("groupchat"))
	b.WriteString("\n\nPick a username to join:\n\n")
	b.WriteString(m.login.View())
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(errStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("enter: join • esc: quit"))
	return b.String()
}

func (m Model) chatView() string {
	main := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.typingLine(),
		m.input.View(),
		helpStyle.Render("enter: send • /react <index> <emoji> • esc: quit"),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, m.rosterView(), main)
}

func (m Model) rosterView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Users"))
	b.WriteString("\n")
	for _, u := range m.client.Session().Users() {
		marker := " "
		if u.Online {
			marker = onlineStyle.Render("●")
		}
		b.WriteString(fmt.Sprintf("%s %s\n", marker, u.Name))
	}
	return rosterStyle.Height(m.height - 1).Render(b.String())
}

func (m Model) typingLine() string {
	typing := m.client.Session().TypingUsers()
	if len(typing) == 0 {
		return ""
	}
	return typingStyle.Render(strings.Join(typing, ", ") + " is typing...")
}

// resize fits the viewport to the space left beside the roster and above
// the input area.
func (m *Model) resize() {
	width := m.width - rosterWidth - 1
	if width < 1 {
		width = 1
	}
	height := m.height - 3
	if height < 1 {
		height = 1
	}
	m.viewport.Width = width
	m.viewport.Height = height
	m.refreshViewport()
}

// refreshViewport re-renders the message log from session snapshots and
// keeps the view pinned to the newest message.
func (m *Model) refreshViewport() {
	if m.client == nil {
		return
	}
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m *Model) renderMessages() string {
	messages := m.client.Session().Messages()
	grouped := make(map[int][]string)
	for _, r := range m.client.Session().Reactions() {
		grouped[r.MessageIndex] = append(grouped[r.MessageIndex], r.Symbol)
	}

	var b strings.Builder
	for i, msg := range messages {
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			stampStyle.Render(fmt.Sprintf("[%d]", i)),
			senderStyle.Render(msg.From),
			stampStyle.Render(msg.SentAt)))
		b.WriteString("  " + msg.Body + "\n")
		// Reactions pointing at indices this client never saw stay
		// invisible here.
		if symbols := grouped[i]; len(symbols) > 0 {
			b.WriteString("  " + reactionStyle.Render(strings.Join(symbols, " ")) + "\n")
		}
	}
	return b.String()
}
