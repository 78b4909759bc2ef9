// Package id generates opaque identifiers for move journal entries and
// request metadata.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MovePrefix marks identifiers minted for move journal entries.
const MovePrefix = "mv_"

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a random UUIDv4 encoded as 26 lowercase base32 characters.
func NewID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(u[:])), nil
}

// NewMoveID returns a NewID tagged with MovePrefix.
func NewMoveID() (string, error) {
	raw, err := NewID()
	if err != nil {
		return "", err
	}
	return MovePrefix + raw, nil
}

// IsMoveID reports whether s was minted by NewMoveID.
func IsMoveID(s string) bool {
	raw, ok := strings.CutPrefix(s, MovePrefix)
	if !ok || len(raw) != 26 || raw != strings.ToLower(raw) {
		return false
	}
	decoded, err := encoding.DecodeString(strings.ToUpper(raw))
	return err == nil && len(decoded) == 16
}
