// Package account holds the SIA DC-09 account directory: the
// read-only id-to-credential mapping consulted by the protocol engine
// on every inbound frame, and the monotonic per-account sequence
// counter.
package account

import (
	"strings"
	"sync/atomic"
)

// MinIDLen and MaxIDLen bound the account id per the DC-09 grammar:
// 3 to 16 hex digits.
const (
	MinIDLen = 3
	MaxIDLen = 16
)

// OHSeedSize is the size in bytes of the seed used to derive an
// account's Osborne-Hoffman scrambled key.
const OHSeedSize = 16

// Account is a single registered alarm panel. It is immutable after
// construction except for sequence, which advances monotonically
// modulo 10000 as frames are received.
type Account struct {
	// ID is the uppercased hex account id, 3-16 digits.
	ID string

	// Key is the account's AES key (16, 24 or 32 bytes), or nil if
	// the account never sends encrypted frames.
	Key []byte

	// OHSeed seeds this account's Osborne-Hoffman scrambled key. It
	// is independent of Key; an account may use OH without AES.
	OHSeed []byte

	sequence uint32
}

// Encrypted reports whether frames from this account are expected to
// carry the AES-encrypted payload flag.
func (a *Account) Encrypted() bool {
	return len(a.Key) > 0
}

// NextSequence advances and returns the account's receive sequence
// counter, wrapping at 10000 as the protocol's 4-digit sequence field
// requires.
func (a *Account) NextSequence() uint32 {
	return atomic.AddUint32(&a.sequence, 1) % 10000
}

// New constructs an Account. id is upper-cased and validated against
// the DC-09 id grammar by the caller (the Store does this on Add).
func New(id string, key, ohSeed []byte) *Account {
	return &Account{
		ID:     strings.ToUpper(id),
		Key:    key,
		OHSeed: ohSeed,
	}
}

// ValidID reports whether id is a syntactically valid DC-09 account
// identifier: 3 to 16 hex digits.
func ValidID(id string) bool {
	if len(id) < MinIDLen || len(id) > MaxIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
