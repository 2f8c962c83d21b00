package id

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID creates a random 32-character hex ID (a v4 UUID without dashes).
func GenerateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Valid reports whether s looks like an ID produced by GenerateID or a
// dashed UUID supplied by a client.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
