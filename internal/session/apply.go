package session

import (
	"log"

	"groupchat/internal/protocol"
)

// HandleFrame decodes one inbound wire frame and applies it. Malformed
// frames, unknown kinds, and envelopes missing their required field are
// dropped with no state change; the returned error reports the drop but is
// never fatal to the session.
func (s *Session) HandleFrame(text string) error {
	env, err := protocol.Decode(text)
	if err != nil {
		return err
	}
	return s.apply(env)
}

func (s *Session) apply(env protocol.Envelope) error {
	switch env.Kind {
	case protocol.KindUsers:
		return s.applyUsers(env)
	case protocol.KindMessage:
		return s.applyMessage(env)
	case protocol.KindTyping:
		return s.applyTyping(env)
	case protocol.KindReaction:
		return s.applyReaction(env)
	case protocol.KindRegister:
		// Register only flows client to server; an inbound one is noise.
		log.Printf("Dropping inbound register envelope")
		return nil
	default:
		return nil
	}
}

// applyUsers replaces the roster wholesale. Participants absent from the
// new list are dropped along with any online history; the swap is atomic
// with respect to snapshot readers.
func (s *Session) applyUsers(env protocol.Envelope) error {
	names, err := env.Roster()
	if err != nil {
		return err
	}
	users := make([]Participant, 0, len(names))
	for _, name := range names {
		users = append(users, Participant{
			Name:      name,
			AvatarURL: avatarURL(name),
			Online:    true,
		})
	}

	s.mu.Lock()
	s.users = users
	notify := s.listener.RosterChanged
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
	return nil
}

// applyMessage appends one chat message. A payload without a timestamp is
// stamped with the local wall clock at receipt; a payload that carries one
// keeps it verbatim.
func (s *Session) applyMessage(env protocol.Envelope) error {
	payload, err := env.Payload()
	if err != nil {
		return err
	}
	body, err := protocol.DecodeMessageBody(payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	sentAt := body.Timestamp
	if sentAt == "" {
		sentAt = s.now().Format(timestampLayout)
	}
	s.messages = append(s.messages, ChatMessage{
		From:   body.From,
		Body:   body.Body,
		SentAt: sentAt,
	})
	notify := s.listener.MessagesChanged
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
	return nil
}

// applyTyping adds the sender to the typing set and (re)arms their expiry
// timer. Each sender expires independently; a fresh typing envelope
// supersedes the previous timer for that sender only.
func (s *Session) applyTyping(env protocol.Envelope) error {
	name, err := env.Payload()
	if err != nil {
		return err
	}

	s.mu.Lock()
	added := false
	if !contains(s.typing, name) {
		s.typing = append(s.typing, name)
		added = true
	}
	notify := s.listener.TypingChanged
	s.mu.Unlock()

	s.expiry.schedule(name, func() { s.expireTyping(name) })

	if added && notify != nil {
		notify()
	}
	return nil
}

// applyReaction appends the decoded (index, symbol) pair. The index is not
// range-checked: a reaction to a message this client never saw is kept and
// simply never rendered.
func (s *Session) applyReaction(env protocol.Envelope) error {
	payload, err := env.Payload()
	if err != nil {
		return err
	}
	index, symbol, err := protocol.DecodeReactionPayload(payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.reactions = append(s.reactions, Reaction{MessageIndex: index, Symbol: symbol})
	notify := s.listener.ReactionsChanged
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
	return nil
}

// expireTyping removes one sender from the typing set. It runs as an
// ordinary locked step, so it never interleaves with frame handling.
func (s *Session) expireTyping(name string) {
	s.mu.Lock()
	removed := false
	for i, n := range s.typing {
		if n == name {
			s.typing = append(s.typing[:i], s.typing[i+1:]...)
			removed = true
			break
		}
	}
	notify := s.listener.TypingChanged
	s.mu.Unlock()

	if removed && notify != nil {
		notify()
	}
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
