// Package server implements the relay the chat protocol assumes: it
// tracks registered users, broadcasts the roster, and fans every message,
// typing indicator, and reaction out to the connected clients. It keeps no
// history; state lives in the clients.
package server

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"groupchat/internal/protocol"
)

const outgoingBuffer = 16

// client is one connected websocket. username stays empty until the
// connection registers; unregistered connections may not send anything
// else.
type client struct {
	conn     net.Conn
	outgoing chan string

	mu       sync.Mutex
	username string
	closed   bool
}

func (c *client) name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

func (c *client) setName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = name
}

// enqueue queues one frame for delivery. It reports false only when the
// client is falling behind; a closed client swallows the frame.
func (c *client) enqueue(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.outgoing <- text:
		return true
	default:
		return false
	}
}

// shutdown closes the outgoing channel exactly once, ending the write loop.
func (c *client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.outgoing)
	}
}

// Server is a chat relay server.
type Server struct {
	address  string
	listener net.Listener
	server   *http.Server

	mu      sync.RWMutex
	clients map[*client]bool

	wg sync.WaitGroup
}

// New creates a relay listening on address once started.
func New(address string) *Server {
	return &Server{
		address: address,
		clients: make(map[*client]bool),
	}
}

// Start begins accepting connections. It returns once the listener is
// bound; serving continues in the background until Stop.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.server = &http.Server{Handler: mux}

	log.Printf("Chat relay listening on %s", listener.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()
	return nil
}

// Stop closes the listener and every client connection.
func (s *Server) Stop() {
	if s.server != nil {
		s.server.Close()
	}

	s.mu.Lock()
	for c := range s.clients {
		c.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("Failed to upgrade connection from %s: %v", r.RemoteAddr, err)
		return
	}

	c := &client{
		conn:     conn,
		outgoing: make(chan string, outgoingBuffer),
	}

	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()

	s.wg.Add(2)
	go s.writeLoop(c)
	go s.readLoop(c)
}

func (s *Server) readLoop(c *client) {
	defer s.wg.Done()
	defer s.drop(c)

	for {
		data, err := wsutil.ReadClientText(c.conn)
		if err != nil {
			return
		}
		s.handleFrame(c, string(data))
	}
}

func (s *Server) writeLoop(c *client) {
	defer s.wg.Done()
	for text := range c.outgoing {
		if err := wsutil.WriteServerText(c.conn, []byte(text)); err != nil {
			log.Printf("Failed to write to %s: %v", c.conn.RemoteAddr(), err)
			c.conn.Close()
			return
		}
	}
}

// drop removes a client. If it had registered, the shrunk roster goes out
// to everyone left.
func (s *Server) drop(c *client) {
	s.mu.Lock()
	if !s.clients[c] {
		s.mu.Unlock()
		return
	}
	delete(s.clients, c)
	s.mu.Unlock()

	c.shutdown()
	c.conn.Close()

	if c.name() != "" {
		s.broadcastRoster()
	}
}

func (s *Server) handleFrame(c *client, text string) {
	env, err := protocol.Decode(text)
	if err != nil {
		log.Printf("Dropping frame from %s: %v", c.conn.RemoteAddr(), err)
		return
	}

	if env.Kind != protocol.KindRegister && c.name() == "" {
		log.Printf("Dropping %s frame from unregistered %s", env.Kind, c.conn.RemoteAddr())
		return
	}

	switch env.Kind {
	case protocol.KindRegister:
		s.handleRegister(c, env)
	case protocol.KindMessage:
		s.handleMessage(c, env)
	case protocol.KindTyping:
		// Outbound typing arrives with a null payload; the relay stamps
		// the sender's registered name before fanning out.
		s.broadcast(protocol.NewTypingFrom(c.name()), c)
	case protocol.KindReaction:
		// Echoed verbatim to everyone, the sender included: clients only
		// apply reactions on the round trip.
		s.broadcast(env, nil)
	case protocol.KindUsers:
		log.Printf("Dropping inbound users frame from %s", c.conn.RemoteAddr())
	}
}

func (s *Server) handleRegister(c *client, env protocol.Envelope) {
	name, err := env.Payload()
	if err != nil || name == "" {
		log.Printf("Dropping register without username from %s", c.conn.RemoteAddr())
		return
	}
	c.setName(name)
	s.broadcastRoster()
}

// handleMessage wraps the raw composed text with the sender's identity and
// a send timestamp, then fans it out to everyone including the sender.
func (s *Server) handleMessage(c *client, env protocol.Envelope) {
	text, err := env.Payload()
	if err != nil {
		log.Printf("Dropping message without body from %s", c.conn.RemoteAddr())
		return
	}
	body, err := protocol.MessageBody{
		From:      c.name(),
		Body:      text,
		Timestamp: time.Now().Format("15:04"),
	}.Encode()
	if err != nil {
		log.Printf("Failed to encode message body: %v", err)
		return
	}
	s.broadcast(protocol.NewMessage(body), nil)
}

// broadcastRoster sends the full list of registered usernames to every
// connected client. The roster is always sent whole; receivers replace,
// never merge.
func (s *Server) broadcastRoster() {
	s.mu.RLock()
	names := make([]string, 0, len(s.clients))
	for c := range s.clients {
		if name := c.name(); name != "" {
			names = append(names, name)
		}
	}
	s.mu.RUnlock()

	s.broadcast(protocol.NewUsers(names), nil)
}

// broadcast fans an envelope out to every connected client except skip. A
// client whose outgoing buffer is full is disconnected rather than allowed
// to stall the relay.
func (s *Server) broadcast(env protocol.Envelope, skip *client) {
	text, err := env.Encode()
	if err != nil {
		log.Printf("Failed to encode %s envelope: %v", env.Kind, err)
		return
	}

	s.mu.RLock()
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		if c != skip {
			targets = append(targets, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(text) {
			log.Printf("Disconnecting slow client %s", c.conn.RemoteAddr())
			c.conn.Close()
		}
	}
}
