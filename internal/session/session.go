// Package session owns the client's view of the chat: the roster, the
// message history, the set of participants currently typing, and the
// per-message reactions. It is the only writer of that state, the only
// producer of outbound envelopes, and the consumer of every decoded
// inbound envelope.
package session

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"groupchat/internal/protocol"
)

// DefaultTypingTTL is how long a participant stays in the typing set after
// their last typing envelope.
const DefaultTypingTTL = 3000 * time.Millisecond

// timestampLayout matches the display format the server stamps onto
// relayed messages.
const timestampLayout = "15:04"

// Sender is the transport boundary: a synchronous enqueue of one wire
// frame, not delivery-confirmed.
type Sender interface {
	Send(text string) error
}

// Participant is one entry in the roster.
type Participant struct {
	Name      string
	AvatarURL string
	Online    bool
}

// ChatMessage is one received chat message. SentAt is display-formatted,
// assigned at receipt when the payload carries no timestamp, and immutable
// afterwards.
type ChatMessage struct {
	From   string
	Body   string
	SentAt string
}

// Reaction pairs an emoji with the positional index of the message it was
// attached to. The index refers to the message list at the time the
// reaction was sent; the list is append-only, so it stays valid for the
// session.
type Reaction struct {
	MessageIndex int
	Symbol       string
}

// Listener receives change notifications. Callbacks are invoked outside
// the session's lock and may read snapshots. Nil fields are skipped.
type Listener struct {
	RosterChanged    func()
	MessagesChanged  func()
	TypingChanged    func()
	ReactionsChanged func()
}

// Session is the authoritative local chat state. Every entry point - an
// inbound frame, a local user action, a typing-expiry - runs to completion
// under one mutex before the next begins, so state is never observed
// mid-transition.
type Session struct {
	sender Sender

	mu        sync.Mutex
	listener  Listener
	username  string
	users     []Participant
	messages  []ChatMessage
	typing    []string
	reactions []Reaction
	composing bool

	expiry *expirySchedule
	now    func() time.Time
}

// New creates a session sending outbound envelopes through sender, with
// the default typing TTL.
func New(sender Sender) *Session {
	return NewWithTTL(sender, DefaultTypingTTL)
}

// NewWithTTL creates a session with an explicit typing TTL.
func NewWithTTL(sender Sender, typingTTL time.Duration) *Session {
	s := &Session{
		sender: sender,
		now:    time.Now,
	}
	s.expiry = newExpirySchedule(typingTTL)
	return s
}

// SetListener installs the change-notification callbacks. Call before the
// first frame is handled.
func (s *Session) SetListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// Close stops all pending typing-expiry timers.
func (s *Session) Close() {
	s.expiry.stopAll()
}

// Connect registers the local user with the server. It must be called
// before any other outbound action; a session whose registration did not
// reach the transport is unusable, so the error is returned rather than
// swallowed.
func (s *Session) Connect(username string) error {
	s.mu.Lock()
	s.username = username
	s.mu.Unlock()

	text, err := protocol.NewRegister(username).Encode()
	if err != nil {
		return err
	}
	if err := s.sender.Send(text); err != nil {
		return fmt.Errorf("failed to register as %q: %w", username, err)
	}
	return nil
}

// Username returns the name the session registered with.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Submit sends the composed text as a chat message. Whitespace-only text
// is ignored entirely: no envelope, no notification. Sends are
// fire-and-forget; a transport failure is logged and the action is lost.
func (s *Session) Submit(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.fireAndForget(protocol.NewMessage(text))
}

// React sends a reaction for the message at the given index. The reaction
// is not applied locally: it becomes visible only when the server echoes
// it back, the same way peers see it.
func (s *Session) React(index int, symbol string) {
	env, err := protocol.NewReaction(index, symbol)
	if err != nil {
		log.Printf("Dropping reaction: %v", err)
		return
	}
	s.fireAndForget(env)
}

// SetComposing tracks whether the local composition box is non-empty. A
// typing envelope goes out only on the false-to-true edge; repeated
// keystrokes while already composing send nothing, and there is no
// stopped-typing signal - peers infer stop from their own expiry timers.
func (s *Session) SetComposing(nonEmpty bool) {
	s.mu.Lock()
	edge := nonEmpty && !s.composing
	s.composing = nonEmpty
	s.mu.Unlock()

	if edge {
		s.fireAndForget(protocol.NewTyping())
	}
}

// Users returns a copy of the current roster.
func (s *Session) Users() []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]Participant, len(s.users))
	copy(users, s.users)
	return users
}

// Messages returns a copy of the message history, oldest first.
func (s *Session) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := make([]ChatMessage, len(s.messages))
	copy(messages, s.messages)
	return messages
}

// TypingUsers returns the names currently believed to be typing, in the
// order they started.
func (s *Session) TypingUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	typing := make([]string, len(s.typing))
	copy(typing, s.typing)
	return typing
}

// Reactions returns a copy of all received reactions, in arrival order.
func (s *Session) Reactions() []Reaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	reactions := make([]Reaction, len(s.reactions))
	copy(reactions, s.reactions)
	return reactions
}

func (s *Session) fireAndForget(env protocol.Envelope) {
	text, err := env.Encode()
	if err != nil {
		log.Printf("Dropping outbound %s envelope: %v", env.Kind, err)
		return
	}
	if err := s.sender.Send(text); err != nil {
		log.Printf("Failed to send %s envelope: %v", env.Kind, err)
	}
}
