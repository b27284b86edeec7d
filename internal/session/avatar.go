package session

import "net/url"

// avatarURL derives a participant's avatar deterministically from their
// name, so every client renders the same face for the same user without
// any avatar exchange in the protocol.
func avatarURL(name string) string {
	return "https://avatars.dicebear.com/api/adventurer-neutral/" + url.PathEscape(name) + ".svg"
}
