package emailutil

import (
	"net/mail"
	"strings"
)

// Normalize lowercases and trims an address so logins are case-insensitive
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Valid reports whether email is a bare address such as "a@b.com".
// Display-name forms like "Ada <a@b.com>" are rejected.
func Valid(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1
}
