package server_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"groupchat/internal/protocol"
	"groupchat/internal/server"
	"groupchat/internal/transport"
)

func startServer(t *testing.T) *server.Server {
	t.Helper()
	srv := server.New("127.0.0.1:0")
	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv
}

func dial(t *testing.T, srv *server.Server) *transport.WebSocket {
	t.Helper()
	conn, err := transport.Dial(context.Background(), "ws://"+srv.Addr()+"/ws")
	if err != nil {
		t.Fatalf("failed to dial server: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *transport.WebSocket, env protocol.Envelope) {
	t.Helper()
	text, err := env.Encode()
	if err != nil {
		t.Fatalf("failed to encode envelope: %v", err)
	}
	if err := conn.Write(context.Background(), text); err != nil {
		t.Fatalf("failed to write envelope: %v", err)
	}
}

func recv(t *testing.T, conn *transport.WebSocket) protocol.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	text, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	env, err := protocol.Decode(text)
	if err != nil {
		t.Fatalf("server sent undecodable frame %q: %v", text, err)
	}
	return env
}

func recvKind(t *testing.T, conn *transport.WebSocket, kind protocol.Kind) protocol.Envelope {
	t.Helper()
	for i := 0; i < 10; i++ {
		env := recv(t, conn)
		if env.Kind == kind {
			return env
		}
	}
	t.Fatalf("no %s frame received", kind)
	return protocol.Envelope{}
}

func roster(t *testing.T, env protocol.Envelope) []string {
	t.Helper()
	names, err := env.Roster()
	if err != nil {
		t.Fatalf("users frame without roster: %v", err)
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return sorted
}

func TestRegisterBroadcastsRoster(t *testing.T) {
	srv := startServer(t)

	alice := dial(t, srv)
	send(t, alice, protocol.NewRegister("alice"))
	if got := roster(t, recvKind(t, alice, protocol.KindUsers)); len(got) != 1 || got[0] != "alice" {
		t.Errorf("roster after first register = %v, want [alice]", got)
	}

	bob := dial(t, srv)
	send(t, bob, protocol.NewRegister("bob"))

	want := []string{"alice", "bob"}
	for _, conn := range []*transport.WebSocket{alice, bob} {
		got := roster(t, recvKind(t, conn, protocol.KindUsers))
		if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("roster = %v, want %v", got, want)
		}
	}
}

func TestMessageWrappedAndBroadcast(t *testing.T) {
	srv := startServer(t)

	alice := dial(t, srv)
	send(t, alice, protocol.NewRegister("alice"))
	bob := dial(t, srv)
	send(t, bob, protocol.NewRegister("bob"))

	send(t, alice, protocol.NewMessage("hello everyone"))

	// Both peers, the sender included, get the wrapped body.
	for _, conn := range []*transport.WebSocket{alice, bob} {
		env := recvKind(t, conn, protocol.KindMessage)
		payload, err := env.Payload()
		if err != nil {
			t.Fatalf("message frame without payload: %v", err)
		}
		body, err := protocol.DecodeMessageBody(payload)
		if err != nil {
			t.Fatalf("message payload does not decode: %v", err)
		}
		if body.From != "alice" || body.Body != "hello everyone" {
			t.Errorf("body = %+v, want from alice, body %q", body, "hello everyone")
		}
		if body.Timestamp == "" {
			t.Error("relay did not stamp a timestamp")
		}
	}
}

func TestTypingStampedAndNotEchoed(t *testing.T) {
	srv := startServer(t)

	alice := dial(t, srv)
	send(t, alice, protocol.NewRegister("alice"))
	bob := dial(t, srv)
	send(t, bob, protocol.NewRegister("bob"))
	recvKind(t, bob, protocol.KindUsers)

	// Outbound typing has a null payload; the relay fills in the sender.
	send(t, alice, protocol.NewTyping())

	env := recvKind(t, bob, protocol.KindTyping)
	if name, _ := env.Payload(); name != "alice" {
		t.Errorf("typing sender = %q, want alice", name)
	}

	// The sender must not see their own typing frame. A message after the
	// typing envelope marks the window: if typing had been echoed, it
	// would arrive before the message does.
	send(t, alice, protocol.NewMessage("marker"))
	for i := 0; i < 10; i++ {
		env := recv(t, alice)
		if env.Kind == protocol.KindTyping {
			t.Fatal("typing frame echoed back to its sender")
		}
		if env.Kind == protocol.KindMessage {
			break
		}
	}
}

func TestReactionEchoedVerbatim(t *testing.T) {
	srv := startServer(t)

	alice := dial(t, srv)
	send(t, alice, protocol.NewRegister("alice"))

	reaction, err := protocol.NewReaction(3, "🎉")
	if err != nil {
		t.Fatalf("NewReaction failed: %v", err)
	}
	send(t, alice, reaction)

	env := recvKind(t, alice, protocol.KindReaction)
	payload, err := env.Payload()
	if err != nil {
		t.Fatalf("reaction frame without payload: %v", err)
	}
	index, symbol, err := protocol.DecodeReactionPayload(payload)
	if err != nil {
		t.Fatalf("reaction payload does not decode: %v", err)
	}
	if index != 3 || symbol != "🎉" {
		t.Errorf("reaction = (%d, %q), want (3, 🎉)", index, symbol)
	}
}

func TestUnregisteredClientCannotSend(t *testing.T) {
	srv := startServer(t)

	alice := dial(t, srv)
	send(t, alice, protocol.NewRegister("alice"))
	recvKind(t, alice, protocol.KindUsers)

	ghost := dial(t, srv)
	send(t, ghost, protocol.NewMessage("should be dropped"))
	send(t, ghost, protocol.NewRegister("ghost"))

	// The register lands, the earlier message does not.
	env := recvKind(t, alice, protocol.KindUsers)
	if got := roster(t, env); len(got) != 2 {
		t.Errorf("roster = %v, want [alice ghost]", got)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if text, err := alice.Read(ctx); err == nil {
		t.Errorf("unexpected frame after dropped message: %s", text)
	}
}

func TestDisconnectShrinksRoster(t *testing.T) {
	srv := startServer(t)

	alice := dial(t, srv)
	send(t, alice, protocol.NewRegister("alice"))
	bob := dial(t, srv)
	send(t, bob, protocol.NewRegister("bob"))

	recvKind(t, alice, protocol.KindUsers) // [alice]
	recvKind(t, alice, protocol.KindUsers) // [alice bob]

	bob.Close()

	env := recvKind(t, alice, protocol.KindUsers)
	if got := roster(t, env); len(got) != 1 || got[0] != "alice" {
		t.Errorf("roster after disconnect = %v, want [alice]", got)
	}
}
