package sia

import (
	"fmt"
	"regexp"
)

// MessageType is the DC-09 content variant carried by a frame.
type MessageType string

const (
	SIADCS MessageType = "SIA-DCS"
	ADMCID MessageType = "ADM-CID"
	Null   MessageType = "NULL"
)

// headerRe matches the bytes of a frame up to and including the
// literal '"' pair wrapping the message type. Everything after it,
// out to the byte count declared by length, is the quoted region
// validated by CRC/length and handed to tailRe.
//
// Grammar ported from pysiaalarm's main_regex (utils/regexes.py);
// Go's regexp has no verbose/extended mode, so the pattern is
// flattened to an equivalent compact RE2 expression.
var headerRe = regexp.MustCompile(`^\n?([0-9A-Fa-f]{4})([0-9A-Fa-f]{4})"(\*)?([A-Za-z0-9_-]{1,20})"`)

// tailRe matches the ASCII header subfields at the front of the
// quoted region: sequence, optional receiver, line, optional
// account, then the literal '[' opening the payload. Everything from
// the matched '[' to the end of the quoted region is the raw
// payload, handled separately so encrypted (binary) payloads never
// have to survive a regexp match.
var tailRe = regexp.MustCompile(`^([0-9]{4})(R[0-9A-Fa-f]{1,6})?(L[0-9A-Fa-f]{1,6})(?:#([0-9A-Fa-f]{3,16}))?\[`)

// Frame is the outer DC-09 wire unit, lexed from raw bytes without
// touching anything past the declared length.
type Frame struct {
	CRC           uint16
	Length        int
	Encrypted     bool
	MessageType   MessageType
	Sequence      string
	Receiver      string // without the leading 'R', empty if absent
	Line          string // without the leading 'L'
	Account       string
	Payload       []byte // raw bytes following the payload-opening '['
	QuotedRegion  []byte // the region covered by CRC/length, for re-validation
	HadCR         bool
}

// LexFrame parses raw into a Frame. Apart from checking whether the
// single byte after the quoted region is a CR (recorded as HadCR), it
// never reads past the length declared in the frame header. A non-nil
// error is always
// ErrMalformedFrame, wrapped with detail; callers must not reply to
// the peer when lexing fails (spec: drop silently).
func LexFrame(raw []byte) (*Frame, error) {
	h := headerRe.FindSubmatch(raw)
	if h == nil {
		return nil, fmt.Errorf("%w: no frame header found", ErrMalformedFrame)
	}

	crcVal, err := parseHex16(h[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad crc digits: %v", ErrMalformedFrame, err)
	}
	length, err := parseHex16(h[2])
	if err != nil {
		return nil, fmt.Errorf("%w: bad length digits: %v", ErrMalformedFrame, err)
	}

	headerEnd := len(h[0])
	if headerEnd+int(length) > len(raw) {
		return nil, fmt.Errorf("%w: declared length %d exceeds available bytes", ErrMalformedFrame, length)
	}
	quoted := raw[headerEnd : headerEnd+int(length)]

	t := tailRe.FindSubmatch(quoted)
	if t == nil {
		return nil, fmt.Errorf("%w: no header fields found in quoted region", ErrMalformedFrame)
	}

	f := &Frame{
		CRC:          crcVal,
		Length:       int(length),
		Encrypted:    len(h[3]) > 0,
		MessageType:  MessageType(h[4]),
		Sequence:     string(t[1]),
		QuotedRegion: quoted,
	}
	if len(t[2]) > 0 {
		f.Receiver = string(t[2][1:])
	}
	f.Line = string(t[3][1:])
	f.Account = string(t[4])
	f.Payload = quoted[len(t[0]):]

	trailing := raw[headerEnd+int(length):]
	f.HadCR = len(trailing) > 0 && trailing[0] == '\r'

	return f, nil
}

// ValidateCRCAndLength reports whether f's declared CRC and length
// match the actual quoted region. This is re-derivable at any time
// from f alone, satisfying the CRC/length closure invariants.
func (f *Frame) ValidateCRCAndLength() bool {
	return f.validate() == nil
}

// validate is ValidateCRCAndLength's error-returning counterpart,
// distinguishing a declared-length mismatch (ErrBadLength) from a
// CRC mismatch over an otherwise correctly-sized region (ErrBadCRC).
func (f *Frame) validate() error {
	if len(f.QuotedRegion) != f.Length {
		return ErrBadLength
	}
	if crc16(f.QuotedRegion) != f.CRC {
		return ErrBadCRC
	}
	return nil
}

// EncodeFrame assembles a complete wire frame: kind is the message
// type (request) or response code (ACK/NAK/DUH/RSP); sequence,
// receiver, line and acct are the header subfields to echo; payload
// is copied verbatim after the opening '[' — EncodeFrame does not
// append a closing ']' itself, since a request's payload already
// carries its own closing bracket ahead of an optional unbracketed
// timestamp suffix (spec.md §6). Callers synthesizing a bracket-only
// body (e.g. CreateResponse's "[]", or "[" followed by the ciphertext
// of "]") must include the closing ']' in payload themselves. CRC and length are derived from
// the assembled quoted region, so the result always satisfies the
// CRC/length closure invariants in spec.md §8.
func EncodeFrame(kind string, encrypted bool, sequence, receiver, line, acct string, payload []byte, trailingCR bool) []byte {
	var quoted []byte
	quoted = append(quoted, sequence...)
	if receiver != "" {
		quoted = append(quoted, 'R')
		quoted = append(quoted, receiver...)
	}
	quoted = append(quoted, 'L')
	quoted = append(quoted, line...)
	if acct != "" {
		quoted = append(quoted, '#')
		quoted = append(quoted, acct...)
	}
	quoted = append(quoted, '[')
	quoted = append(quoted, payload...)

	crc := crc16(quoted)
	length := len(quoted)

	encFlag := ""
	if encrypted {
		encFlag = "*"
	}
	out := []byte(fmt.Sprintf("\n%04X%04X\"%s%s\"", crc, length, encFlag, kind))
	out = append(out, quoted...)
	if trailingCR {
		out = append(out, '\r')
	}
	return out
}

func parseHex16(b []byte) (uint16, error) {
	var v uint16
	for _, c := range b {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint16(c - '0')
		case c >= 'a' && c <= 'f':
			v |= uint16(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= uint16(c-'A') + 10
		default:
			return 0, fmt.Errorf("invalid hex digit %q", c)
		}
	}
	return v, nil
}
