package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewSessionID mints a random UUIDv4 session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// ResolveSessionID reuses the client's session id when it sent one.
func ResolveSessionID(supplied string) string {
	if id := strings.TrimSpace(supplied); id != "" {
		return id
	}
	return NewSessionID()
}
