package sia

import (
	"time"

	"github.com/rs/xid"

	"github.com/simeonmiteff/sia-server/pkg/account"
)

// ResponseKind is the tagged sum of DC-09 response bodies: the
// synthesizer (CreateResponse) is a total function from a decision to
// wire bytes, per Design Note §9.
type ResponseKind string

const (
	ResponseACK ResponseKind = "ACK"
	ResponseNAK ResponseKind = "NAK"
	ResponseDUH ResponseKind = "DUH"
	ResponseRSP ResponseKind = "RSP"
)

// SIAEvent is the semantic unit emitted by the pipeline: the frame
// header, decoded content, the account it validated against, and the
// derived response decision.
type SIAEvent struct {
	// ID correlates this event across logs/metrics; never on the wire.
	ID xid.ID
	// ReceivedAt is wall-clock receipt time, independent of the
	// timestamp carried in the frame.
	ReceivedAt time.Time

	Frame   *Frame
	Content *Content
	Account *account.Account

	ValidMessage   bool // CRC + length + known account
	ValidTimestamp bool

	Response     ResponseKind
	Dispatchable bool // true only for ACK/RSP, per spec.md §4.7 step 7
}

// decision holds the booleans the response synthesizer decides from.
// Collected eagerly by the pipeline (rather than short-circuited) so
// the §4.5 priority table (DUH > NAK > ACK > RSP) can be applied as a
// single total function, exactly as multiple conditions could in
// principle overlap.
type decision struct {
	recognizedCode bool
	accountKnown   bool
	decryptOK      bool
	validCRC       bool
	validTimestamp bool
	isHeartbeat    bool
}

// resolve applies spec.md §4.5's decision order and returns the
// response kind plus whether the event should reach the sink.
func (d decision) resolve() (ResponseKind, bool) {
	if !d.recognizedCode {
		return ResponseDUH, false
	}
	if !d.accountKnown || !d.decryptOK || !d.validCRC || !d.validTimestamp {
		return ResponseNAK, false
	}
	if d.isHeartbeat {
		return ResponseRSP, true
	}
	return ResponseACK, true
}

// CreateResponse synthesizes the wire bytes for e.Response, echoing
// e.Frame's sequence/receiver/line/account exactly. The response body
// is always just the closing bracket of an empty payload: in clear,
// that's the literal "[]"; when the inbound frame resolved to an
// encrypted account, the closing ']' is itself the plaintext that
// gets AES-CBC encrypted under a fresh IV, so the body is "[" followed
// by iv||ciphertext with no clear ']' after it, and that payload
// decrypts back to "]" (mirroring how a request's own trailing ']' rides inside
// its encrypted payload, never appended in clear afterward). Per
// spec.md §4.5/§6: "a body of the form ...#account[]".
func (e *SIAEvent) CreateResponse() ([]byte, error) {
	f := e.Frame
	encrypted := e.Account != nil && e.Account.Encrypted() && f.Encrypted

	var payload []byte
	if encrypted {
		ct, err := EncryptPayload(e.Account.Key, []byte("]"))
		if err != nil {
			return nil, err
		}
		payload = ct
	} else {
		payload = []byte("]")
	}

	return EncodeFrame(string(e.Response), encrypted, f.Sequence, f.Receiver, f.Line, f.Account, payload, f.HadCR), nil
}

// newEventID is a package-level var so tests can stub it; production
// code always uses xid.New.
var newEventID = xid.New
