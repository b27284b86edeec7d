package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageBody is the nested object carried inside a message envelope's
// payload on the inbound side. Timestamp is optional; receivers fill it
// from their own clock when absent.
type MessageBody struct {
	From      string `json:"from"`
	Body      string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Encode serializes the body for embedding into a message envelope.
func (b MessageBody) Encode() (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("failed to encode message body: %w", err)
	}
	return string(data), nil
}

// DecodeMessageBody parses a message envelope's payload.
func DecodeMessageBody(text string) (MessageBody, error) {
	var b MessageBody
	if err := json.Unmarshal([]byte(text), &b); err != nil {
		return MessageBody{}, fmt.Errorf("%w: message body: %v", ErrMalformed, err)
	}
	return b, nil
}

// EncodeReactionPayload serializes a (message index, symbol) pair as a
// two-element JSON array, the form the server and every peer expect inside
// a reaction envelope.
func EncodeReactionPayload(index int, symbol string) (string, error) {
	if index < 0 {
		return "", fmt.Errorf("%w: negative reaction index %d", ErrMalformed, index)
	}
	data, err := json.Marshal([2]any{index, symbol})
	if err != nil {
		return "", fmt.Errorf("failed to encode reaction payload: %w", err)
	}
	return string(data), nil
}

// DecodeReactionPayload recovers the pair encoded by EncodeReactionPayload.
// The round trip is exact for every index >= 0 and every symbol.
func DecodeReactionPayload(text string) (int, string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return 0, "", fmt.Errorf("%w: reaction payload: %v", ErrMalformed, err)
	}
	if len(raw) != 2 {
		return 0, "", fmt.Errorf("%w: reaction payload has %d elements, want 2", ErrMalformed, len(raw))
	}
	var index int
	if err := json.Unmarshal(raw[0], &index); err != nil {
		return 0, "", fmt.Errorf("%w: reaction index: %v", ErrMalformed, err)
	}
	if index < 0 {
		return 0, "", fmt.Errorf("%w: negative reaction index %d", ErrMalformed, index)
	}
	var symbol string
	if err := json.Unmarshal(raw[1], &symbol); err != nil {
		return 0, "", fmt.Errorf("%w: reaction symbol: %v", ErrMalformed, err)
	}
	return index, symbol, nil
}
