package test

import (
	"context"
	"sort"
	"testing"
	"time"

	"groupchat/internal/client"
	"groupchat/internal/server"
)

// eventually polls until the condition holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func connect(t *testing.T, srv *server.Server, username string) *client.Client {
	t.Helper()
	c := client.New("ws://" + srv.Addr() + "/ws")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx, username); err != nil {
		t.Fatalf("%s failed to connect: %v", username, err)
	}
	t.Cleanup(c.Disconnect)
	return c
}

func rosterNames(c *client.Client) []string {
	users := c.Session().Users()
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Name
	}
	sort.Strings(names)
	return names
}

func hasRoster(c *client.Client, want ...string) bool {
	got := rosterNames(c)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestIntegration_RegisterAndRoster(t *testing.T) {
	srv := server.New("127.0.0.1:0")
	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	defer srv.Stop()

	alice := connect(t, srv, "alice")
	bob := connect(t, srv, "bob")

	eventually(t, "both rosters to settle", func() bool {
		return hasRoster(alice, "alice", "bob") && hasRoster(bob, "alice", "bob")
	})

	bob.Disconnect()

	eventually(t, "alice's roster to shrink", func() bool {
		return hasRoster(alice, "alice")
	})
}

func TestIntegration_MessageFlow(t *testing.T) {
	srv := server.New("127.0.0.1:0")
	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	defer srv.Stop()

	alice := connect(t, srv, "alice")
	bob := connect(t, srv, "bob")

	eventually(t, "rosters to settle", func() bool {
		return hasRoster(alice, "alice", "bob") && hasRoster(bob, "alice", "bob")
	})

	alice.Session().Submit("hello bob")

	for _, c := range []*client.Client{alice, bob} {
		eventually(t, "message to arrive", func() bool {
			return len(c.Session().Messages()) == 1
		})
		msg := c.Session().Messages()[0]
		if msg.From != "alice" || msg.Body != "hello bob" {
			t.Errorf("message = %+v, want from alice, body %q", msg, "hello bob")
		}
		if msg.SentAt == "" {
			t.Error("message has no timestamp")
		}
	}
}

func TestIntegration_TypingIndicator(t *testing.T) {
	srv := server.New("127.0.0.1:0")
	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	defer srv.Stop()

	alice := connect(t, srv, "alice")
	bob := connect(t, srv, "bob")

	eventually(t, "rosters to settle", func() bool {
		return hasRoster(alice, "alice", "bob") && hasRoster(bob, "alice", "bob")
	})

	bob.Session().SetComposing(true)

	eventually(t, "alice to see bob typing", func() bool {
		typing := alice.Session().TypingUsers()
		return len(typing) == 1 && typing[0] == "bob"
	})

	// Typing is relayed only to peers, never echoed.
	if typing := bob.Session().TypingUsers(); len(typing) != 0 {
		t.Errorf("bob sees his own typing indicator: %v", typing)
	}
}

func TestIntegration_ReactionRoundTrip(t *testing.T) {
	srv := server.New("127.0.0.1:0")
	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	defer srv.Stop()

	alice := connect(t, srv, "alice")
	bob := connect(t, srv, "bob")

	eventually(t, "rosters to settle", func() bool {
		return hasRoster(alice, "alice", "bob") && hasRoster(bob, "alice", "bob")
	})

	alice.Session().Submit("react to this")
	eventually(t, "message to arrive", func() bool {
		return len(bob.Session().Messages()) == 1
	})

	bob.Session().React(0, "🎉")

	// The reaction appears on both sides, the reactor included, once the
	// relay echoes it.
	for _, c := range []*client.Client{alice, bob} {
		eventually(t, "reaction to arrive", func() bool {
			return len(c.Session().Reactions()) == 1
		})
		r := c.Session().Reactions()[0]
		if r.MessageIndex != 0 || r.Symbol != "🎉" {
			t.Errorf("reaction = %+v, want index 0 symbol 🎉", r)
		}
	}
}
