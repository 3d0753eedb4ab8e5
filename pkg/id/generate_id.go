// Package id issues the public identifiers of ledger records.
package id

import (
	"encoding/hex"
	"regexp"

	"github.com/google/uuid"
)

// NewID32 returns a random (v4) UUID as exactly 32 lowercase hex characters,
// no separators or prefix.
func NewID32() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

var reID32 = regexp.MustCompile(`^[a-f0-9]{32}$`)

// Valid reports whether s has the shape NewID32 produces.
func Valid(s string) bool { return reID32.MatchString(s) }
