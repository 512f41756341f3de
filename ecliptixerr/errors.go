// Package ecliptixerr defines the typed error family returned by every
// Ecliptix package. Callers distinguish failure modes with errors.Is against
// the exported Code sentinels rather than matching on message text.
package ecliptixerr

import "errors"

// Code identifies a class of failure. See spec §7.
type Code int

const (
	// InvalidInput marks wrong buffer sizes, malformed bundles, or
	// out-of-range indices supplied by the caller.
	InvalidInput Code = iota + 1
	// HandshakeRejected marks an SPK signature mismatch, an invalid peer
	// DH key, or a reflection attempt.
	HandshakeRejected
	// MetadataAuthFailed marks an AES-GCM tag mismatch on envelope metadata.
	MetadataAuthFailed
	// PayloadAuthFailed marks an AES-GCM tag mismatch on the envelope
	// payload.
	PayloadAuthFailed
	// Replay marks a duplicate (nonce, index) or an index below the
	// replay window.
	Replay
	// IndexInPast marks a request for an uncached index at or below the
	// chain's current index.
	IndexInPast
	// IndexTooFarAhead marks a request for an index beyond the bounded
	// skip/ratchet ceiling.
	IndexTooFarAhead
	// Terminated marks an operation attempted on a disposed session.
	Terminated
	// CryptoInternal marks a failure surfaced from an underlying
	// primitive (e.g. a rejected low-order X25519 point).
	CryptoInternal
	// ResourceExhausted marks a failed secret allocation.
	ResourceExhausted
	// UnknownKeyIndex marks a withKey lookup for an index absent from the
	// cache.
	UnknownKeyIndex
)

func (c Code) String() string {
	switch c {
	case InvalidInput:
		return "invalid_input"
	case HandshakeRejected:
		return "handshake_rejected"
	case MetadataAuthFailed:
		return "metadata_auth_failed"
	case PayloadAuthFailed:
		return "payload_auth_failed"
	case Replay:
		return "replay"
	case IndexInPast:
		return "index_in_past"
	case IndexTooFarAhead:
		return "index_too_far_ahead"
	case Terminated:
		return "terminated"
	case CryptoInternal:
		return "crypto_internal"
	case ResourceExhausted:
		return "resource_exhausted"
	case UnknownKeyIndex:
		return "unknown_key_index"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by Ecliptix packages. It wraps
// an optional underlying cause and carries a stable Code for errors.Is
// matching.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Op + ": " + e.Code.String() + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Code.String()
}

// Unwrap exposes the wrapped cause, if any, to errors.As/errors.Unwrap.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the same Code, either as a *Error or as one
// of the exported sentinel values below.
func (e *Error) Is(target error) bool {
	if sc, ok := target.(sentinel); ok {
		return e.Code == Code(sc)
	}
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// sentinel lets Code values themselves be compared with errors.Is without
// requiring callers to construct an *Error.
type sentinel Code

func (s sentinel) Error() string { return Code(s).String() }

// New constructs an *Error for op with the given code, optionally wrapping
// cause.
func New(code Code, op string, cause error) *Error {
	return &Error{Code: code, Op: op, Err: cause}
}

// sentinels usable directly with errors.Is(err, ecliptixerr.Replay) etc.
var (
	ErrInvalidInput        = sentinel(InvalidInput)
	ErrHandshakeRejected   = sentinel(HandshakeRejected)
	ErrMetadataAuthFailed  = sentinel(MetadataAuthFailed)
	ErrPayloadAuthFailed   = sentinel(PayloadAuthFailed)
	ErrReplay              = sentinel(Replay)
	ErrIndexInPast         = sentinel(IndexInPast)
	ErrIndexTooFarAhead    = sentinel(IndexTooFarAhead)
	ErrTerminated          = sentinel(Terminated)
	ErrCryptoInternal      = sentinel(CryptoInternal)
	ErrResourceExhausted   = sentinel(ResourceExhausted)
	ErrUnknownKeyIndex     = sentinel(UnknownKeyIndex)
)
