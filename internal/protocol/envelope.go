// Package protocol implements the wire format spoken with the chat server:
// a JSON envelope tagged with a message kind, carrying either a string list
// (the roster) or a single string payload.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies the type of an envelope. The set is closed; a protocol
// version bump is required to extend it.
type Kind string

const (
	KindUsers    Kind = "users"
	KindRegister Kind = "register"
	KindMessage  Kind = "message"
	KindTyping   Kind = "typing"
	KindReaction Kind = "reaction"
)

// Valid reports whether k is one of the five known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindUsers, KindRegister, KindMessage, KindTyping, KindReaction:
		return true
	default:
		return false
	}
}

var (
	// ErrMalformed means the text was not valid JSON of the expected shape.
	ErrMalformed = errors.New("malformed envelope")
	// ErrUnknownKind means the envelope's messageType is outside the closed set.
	ErrUnknownKind = errors.New("unknown message kind")
	// ErrMissingField means an envelope arrived without the field its kind requires.
	ErrMissingField = errors.New("missing required field")
)

// Envelope is one discrete unit of protocol exchange. Exactly one of Items
// and Data is populated, depending on Kind; the constructors below enforce
// this. Field names and casing are part of the wire contract.
type Envelope struct {
	Kind  Kind     `json:"messageType"`
	Items []string `json:"dataArray"`
	Data  *string  `json:"data"`
}

// NewUsers builds a roster envelope. Only the server sends these.
func NewUsers(names []string) Envelope {
	return Envelope{Kind: KindUsers, Items: names}
}

// NewRegister builds the session-opening envelope carrying the username.
func NewRegister(username string) Envelope {
	return Envelope{Kind: KindRegister, Data: &username}
}

// NewMessage builds an outbound chat message envelope. The body is the raw
// composed text; the server wraps it with sender and timestamp before
// relaying (see MessageBody).
func NewMessage(body string) Envelope {
	return Envelope{Kind: KindMessage, Data: &body}
}

// NewTyping builds an outbound typing indicator. Data is deliberately null:
// the server stamps the sender's identity before relaying.
func NewTyping() Envelope {
	return Envelope{Kind: KindTyping}
}

// NewTypingFrom builds a typing indicator naming its sender. Sent by the
// server when relaying a client's NewTyping.
func NewTypingFrom(sender string) Envelope {
	return Envelope{Kind: KindTyping, Data: &sender}
}

// NewReaction builds a reaction envelope. The (index, symbol) pair is
// sub-encoded into the payload with the same JSON rules as the envelope
// itself, so decoding takes a second pass (DecodeReactionPayload).
func NewReaction(index int, symbol string) (Envelope, error) {
	payload, err := EncodeReactionPayload(index, symbol)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: KindReaction, Data: &payload}, nil
}

// Encode serializes the envelope to its canonical wire text. It cannot fail
// for envelopes built via the constructors.
func (e Envelope) Encode() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to encode envelope: %w", err)
	}
	return string(data), nil
}

// Decode parses wire text into an Envelope. It returns ErrMalformed when the
// text is not valid JSON and ErrUnknownKind when messageType is outside the
// closed set. Callers drop the offending frame and continue.
func Decode(text string) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal([]byte(text), &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !e.Kind.Valid() {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownKind, string(e.Kind))
	}
	return e, nil
}

// Payload returns the string payload, or ErrMissingField when the envelope
// has none.
func (e Envelope) Payload() (string, error) {
	if e.Data == nil {
		return "", fmt.Errorf("%w: data for kind %q", ErrMissingField, string(e.Kind))
	}
	return *e.Data, nil
}

// Roster returns the string list payload, or ErrMissingField when the
// envelope has none.
func (e Envelope) Roster() ([]string, error) {
	if e.Items == nil {
		return nil, fmt.Errorf("%w: dataArray for kind %q", ErrMissingField, string(e.Kind))
	}
	return e.Items, nil
}
