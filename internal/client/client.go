// Package client ties a transport connection to a chat session: it dials
// the server, registers the user, and pumps inbound frames into the
// session until the connection drops.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"groupchat/internal/session"
	"groupchat/internal/transport"
)

// Client is a connected chat client.
type Client struct {
	serverURL string

	mu       sync.RWMutex
	conn     transport.Conn
	session  *session.Session
	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup

	// Closed when the read loop exits, whether by Disconnect or by the
	// server going away.
	disconnected chan struct{}
}

// New creates a client for the chat server at serverURL.
func New(serverURL string) *Client {
	c := &Client{
		serverURL:    serverURL,
		done:         make(chan struct{}),
		disconnected: make(chan struct{}),
	}
	c.session = session.New(c)
	return c
}

// Session returns the client's session for snapshots, listeners, and
// local actions.
func (c *Client) Session() *session.Session {
	return c.session
}

// Connect dials the server and registers username. Registration is the
// first envelope of the session.
func (c *Client) Connect(ctx context.Context, username string) error {
	conn, err := transport.Dial(ctx, c.serverURL)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.session.Connect(username); err != nil {
		conn.Close()
		return err
	}

	c.wg.Add(1)
	go c.readLoop()

	return nil
}

// Send implements session.Sender over the connection.
func (c *Client) Send(text string) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected to server")
	}
	return conn.Write(context.Background(), text)
}

// Disconnected is closed once the connection is gone, whether locally
// closed or dropped by the server.
func (c *Client) Disconnected() <-chan struct{} {
	return c.disconnected
}

// Disconnect closes the connection and waits for the read loop to exit.
// Safe to call more than once.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.doneOnce.Do(func() { close(c.done) })
	c.wg.Wait()
	c.session.Close()
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	defer close(c.disconnected)

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return
	}

	for {
		text, err := conn.Read(context.Background())
		if err != nil {
			select {
			case <-c.done:
			default:
				if !errors.Is(err, net.ErrClosed) {
					log.Printf("Connection lost: %v", err)
				}
			}
			return
		}

		// A bad frame is dropped; the session is untouched and the loop
		// moves on to the next frame.
		if err := c.session.HandleFrame(text); err != nil {
			log.Printf("Dropping frame: %v", err)
		}
	}
}
