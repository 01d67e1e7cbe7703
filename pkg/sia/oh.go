package sia

import (
	"crypto/rc4"
	"crypto/sha256"
	"fmt"
)

// ScrambledKeySize is the size of the OH handshake blob written to
// the peer on connect and before every subsequent read.
const ScrambledKeySize = 16

// DefaultOHSeed is the seed used for every OH connection, regardless
// of which account eventually resolves from the first decoded frame.
// This mirrors the observed upstream behaviour described in spec.md
// §9: the OH server instantiates a default context rather than
// keying off the accounts map. See DESIGN.md for the rationale for
// preserving this instead of "fixing" it.
var DefaultOHSeed = []byte("sia-oh-default-k")[:16]

// OHContext is the per-connection Osborne-Hoffman obfuscation state.
// It owns two independent RC4 keystreams (one per direction) seeded
// from the same material, since a full-duplex connection advances
// inbound and outbound keystreams independently. It must never be
// shared between connections.
type OHContext struct {
	seed []byte
	enc  *rc4.Cipher
	dec  *rc4.Cipher
}

// NewOHContext builds OH state from seed (typically DefaultOHSeed or
// an account's OHSeed). seed must be non-empty.
func NewOHContext(seed []byte) (*OHContext, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("sia: empty OH seed")
	}
	enc, err := rc4.NewCipher(seed)
	if err != nil {
		return nil, fmt.Errorf("sia: oh enc cipher: %w", err)
	}
	dec, err := rc4.NewCipher(seed)
	if err != nil {
		return nil, fmt.Errorf("sia: oh dec cipher: %w", err)
	}
	return &OHContext{seed: seed, enc: enc, dec: dec}, nil
}

// ScrambledKey derives the fixed-size handshake blob sent to the
// peer on connect, and again before every subsequent read (§4.4).
func (o *OHContext) ScrambledKey() []byte {
	sum := sha256.Sum256(o.seed)
	return sum[:ScrambledKeySize]
}

// EncryptData obfuscates an outbound frame's bytes.
func (o *OHContext) EncryptData(data []byte) []byte {
	dst := make([]byte, len(data))
	o.enc.XORKeyStream(dst, data)
	return dst
}

// DecryptData de-obfuscates an inbound frame's bytes. OH has no
// authentication tag, so a garbled stream surfaces later as a frame
// lex failure rather than here; callers on a stream transport treat
// any lex failure after OH decryption as unrecoverable desync and
// close the connection (spec.md §4.4).
func (o *OHContext) DecryptData(data []byte) []byte {
	dst := make([]byte, len(data))
	o.dec.XORKeyStream(dst, data)
	return dst
}
