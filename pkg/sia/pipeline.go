package sia

import (
	"errors"
	"time"

	"github.com/simeonmiteff/sia-server/pkg/account"
)

// DefaultAllowedPast and DefaultAllowedFuture are the clock-skew
// tolerances from spec.md §4.2: reject frames whose embedded
// timestamp is more than DefaultAllowedPast stale, or more than
// DefaultAllowedFuture ahead of the server's clock.
const (
	DefaultAllowedPast   = 20 * time.Second
	DefaultAllowedFuture = 40 * time.Second
)

// Pipeline is parse_and_check_event: the transport-agnostic
// orchestration shared by every dispatch loop (spec.md §4.7, §9).
type Pipeline struct {
	Accounts      *account.Store
	Counters      *Counters
	AllowedPast   time.Duration
	AllowedFuture time.Duration
}

// NewPipeline builds a Pipeline. A zero AllowedPast/AllowedFuture is
// replaced with the spec.md defaults.
func NewPipeline(accounts *account.Store, counters *Counters, allowedPast, allowedFuture time.Duration) *Pipeline {
	if allowedPast <= 0 {
		allowedPast = DefaultAllowedPast
	}
	if allowedFuture <= 0 {
		allowedFuture = DefaultAllowedFuture
	}
	return &Pipeline{
		Accounts:      accounts,
		Counters:      counters,
		AllowedPast:   allowedPast,
		AllowedFuture: allowedFuture,
	}
}

// ParseAndCheckEvent runs raw bytes through lexing, account
// resolution, decryption, CRC/length and timestamp validation, and
// response synthesis. It returns nil only when raw fails to lex as a
// frame at all, in which case the caller must not reply (spec.md
// §4.7 step 1). Every other outcome returns an event whose Response
// is always set to a wire-ready kind.
//
// Every stage below resolves to one of the sentinel errors in
// errors.go (or nil); bumpCounter and decision.resolve both derive
// their verdict from those errors, rather than from independently
// tracked booleans, so the two can never drift apart.
//
// Exactly one Counters category beyond CategoryEvents is incremented
// per call, satisfying the counter-conservation invariant in spec.md
// §8: valid_events + sum(errors.*) == number of calls.
func (p *Pipeline) ParseAndCheckEvent(raw []byte) *SIAEvent {
	p.Counters.Incr(CategoryEvents)

	frame, err := LexFrame(raw)
	if err != nil {
		p.Counters.Incr(CategoryErrorsFormat)
		return nil
	}

	recognizedCode := IsKnownMessageType(frame.MessageType)

	acc, accountErr := p.resolveAccount(frame)
	accountKnown := accountErr == nil
	if accountKnown {
		acc.NextSequence()
	}

	var contentErr error
	var content *Content

	if recognizedCode && accountKnown {
		payload := frame.Payload
		if frame.Encrypted {
			pt, derr := DecryptPayload(acc.Key, payload)
			if derr != nil {
				contentErr = derr
			} else {
				payload = pt
			}
		}
		if contentErr == nil {
			c, cerr := LexContent(frame.MessageType, payload)
			if cerr != nil {
				contentErr = cerr
			} else {
				content = c
			}
		}
	}

	crcErr := frame.validate()
	timestampErr := p.validateTimestamp(content)

	kind, dispatchable := decision{
		recognizedCode: recognizedCode,
		accountKnown:   accountKnown,
		decryptOK:      contentErr == nil,
		validCRC:       crcErr == nil,
		validTimestamp: timestampErr == nil,
		isHeartbeat:    frame.MessageType == Null,
	}.resolve()

	p.bumpCounter(kind, accountErr, contentErr, crcErr, timestampErr)

	return &SIAEvent{
		ID:             newEventID(),
		ReceivedAt:     time.Now().UTC(),
		Frame:          frame,
		Content:        content,
		Account:        acc,
		ValidMessage:   crcErr == nil && accountKnown,
		ValidTimestamp: timestampErr == nil,
		Response:       kind,
		Dispatchable:   dispatchable,
	}
}

// resolveAccount looks up frame's account and confirms it's eligible
// to have sent frame: ErrUnknownAccount if no such account is
// registered, ErrWrongKey if frame is encrypted but the account has
// no AES key on file.
func (p *Pipeline) resolveAccount(frame *Frame) (*account.Account, error) {
	acc := p.Accounts.Lookup(frame.Account)
	if acc == nil {
		return nil, ErrUnknownAccount
	}
	if frame.Encrypted && !acc.Encrypted() {
		return nil, ErrWrongKey
	}
	return acc, nil
}

// validateTimestamp returns ErrBadTimestamp if content carries a
// timestamp outside the configured skew window; nil if content has
// no timestamp (not checked) or one within range.
func (p *Pipeline) validateTimestamp(content *Content) error {
	if content == nil || content.Timestamp == "" {
		return nil
	}
	t, ok := ParseTimestamp(content.Timestamp)
	if !ok {
		return ErrBadTimestamp
	}
	skew := time.Now().UTC().Sub(t)
	if skew < -p.AllowedFuture || skew > p.AllowedPast {
		return ErrBadTimestamp
	}
	return nil
}

// bumpCounter increments the single counter bucket matching kind,
// following the same priority used to pick the sub-reason for a NAK
// as the sequential checks in spec.md §4.7: account, then decrypt,
// then content, then CRC/length, then timestamp.
func (p *Pipeline) bumpCounter(kind ResponseKind, accountErr, contentErr, crcErr, timestampErr error) {
	switch {
	case kind == ResponseDUH:
		p.Counters.Incr(CategoryErrorsCode)
	case accountErr != nil:
		p.Counters.Incr(CategoryErrorsAccount)
	case errors.Is(contentErr, ErrDecryptFailed):
		p.Counters.Incr(CategoryErrorsCRC)
	case contentErr != nil:
		p.Counters.Incr(CategoryErrorsFormat)
	case crcErr != nil:
		p.Counters.Incr(CategoryErrorsCRC)
	case timestampErr != nil:
		p.Counters.Incr(CategoryErrorsTimestamp)
	default:
		p.Counters.Incr(CategoryValidEvents)
	}
}
