package sia

import (
	"regexp"
	"time"
)

// Content is the inner payload lexed from a frame's payload bytes,
// after any AES decryption. Exactly one of the SIA-DCS or ADM-CID
// field groups is populated, per the frame's MessageType.
type Content struct {
	// SIA-DCS fields.
	TimeOffset string // "ti", mm:ss
	ZoneID     string // "id"
	RI         string // zone/partition depending on variant
	Code       string
	Message    string

	// ADM-CID fields.
	EventQualifier string
	EventType      string
	Partition      string

	XData     string
	Timestamp string // raw HH:MM:SS,MM-DD-YYYY, empty if absent
}

// siaContentRe ports pysiaalarm's sia_content_regex: a tolerant
// leading-filler prefix (so AES padding bytes up to the first '|' or
// '[' never break the match), the ti/id/ri/code/message fields, the
// closing ']', and the optional [xdata] and _timestamp suffixes.
var siaContentRe = regexp.MustCompile(
	`^[^|\[\]]*\|?N?` +
		`(?:ti(\d{2}:\d{2}))?/?` +
		`(?:id(\d*))?/?` +
		`(?:ri(\d*))?/?` +
		`([A-Za-z]{2})?` +
		`([^\[\]]*)` +
		`\]` +
		`(?:\[([^\[\]]*)\])?` +
		`(?:_([0-9:,-]*))?$`,
)

// admContentRe ports pysiaalarm's adm_content_regex (Ademco Contact
// ID tunneled over DC-09).
var admContentRe = regexp.MustCompile(
	`^[^|\[\]]*\|?` +
		`(\d)(\d{3})\s(\d{2})\s(\d{3})` +
		`\]` +
		`(?:\[([^\[\]]*)\])?` +
		`(?:_([0-9:,-]*))?$`,
)

// IsKnownMessageType reports whether t is one of the three DC-09
// content variants the engine understands. An unknown type is not a
// framing error (the frame still lexes); it resolves to a DUH
// response per spec.md §4.5.
func IsKnownMessageType(t MessageType) bool {
	switch t {
	case SIADCS, ADMCID, Null:
		return true
	default:
		return false
	}
}

// LexContent parses plaintext (the payload bytes, already AES
// decrypted if the frame was encrypted) according to msgType.
func LexContent(msgType MessageType, plaintext []byte) (*Content, error) {
	switch msgType {
	case SIADCS:
		m := siaContentRe.FindSubmatch(plaintext)
		if m == nil {
			return nil, ErrMalformedFrame
		}
		return &Content{
			TimeOffset: string(m[1]),
			ZoneID:     string(m[2]),
			RI:         string(m[3]),
			Code:       string(m[4]),
			Message:    string(m[5]),
			XData:      string(m[6]),
			Timestamp:  string(m[7]),
		}, nil
	case ADMCID:
		m := admContentRe.FindSubmatch(plaintext)
		if m == nil {
			return nil, ErrMalformedFrame
		}
		return &Content{
			EventQualifier: string(m[1]),
			EventType:      string(m[2]),
			Partition:      string(m[3]),
			RI:             string(m[4]),
			XData:          string(m[5]),
			Timestamp:      string(m[6]),
		}, nil
	case Null:
		return &Content{}, nil
	default:
		return nil, ErrUnrecognizedCode
	}
}

// ParseTimestamp parses the DC-09 "HH:MM:SS,MM-DD-YYYY" timestamp as
// UTC. Returns the zero time and false if ts is empty or malformed.
func ParseTimestamp(ts string) (time.Time, bool) {
	if ts == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("15:04:05,01-02-2006", ts)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
