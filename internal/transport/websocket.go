package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocket implements Conn over a gorilla/websocket connection.
type WebSocket struct {
	conn *websocket.Conn

	// gorilla allows only one concurrent writer per connection.
	writeMu sync.Mutex
}

// Dial connects to a chat server at the given ws:// or wss:// URL.
func Dial(ctx context.Context, serverURL string) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", serverURL, err)
	}
	return &WebSocket{conn: conn}, nil
}

// NewWebSocket wraps an already-established websocket connection.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn}
}

// Read implements Conn. Non-text frames are skipped.
func (w *WebSocket) Read(ctx context.Context) (string, error) {
	deadline, _ := ctx.Deadline()
	if err := w.conn.SetReadDeadline(deadline); err != nil {
		return "", fmt.Errorf("failed to set read deadline: %w", err)
	}
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("failed to read frame: %w", err)
		}
		if messageType == websocket.TextMessage {
			return string(data), nil
		}
	}
}

// Write implements Conn.
func (w *WebSocket) Write(ctx context.Context, text string) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	deadline, _ := ctx.Deadline()
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Close implements Conn.
func (w *WebSocket) Close() error {
	w.writeMu.Lock()
	_ = w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	w.writeMu.Unlock()
	return w.conn.Close()
}

// RemoteAddr implements Conn.
func (w *WebSocket) RemoteAddr() string {
	return w.conn.RemoteAddr().String()
}
