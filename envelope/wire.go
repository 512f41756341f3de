// Package envelope implements SecureEnvelope and EnvelopeMetadata (spec §3,
// §4.6): the wire-level container a RatchetSession's message key encrypts
// into, its separately-encrypted metadata header, and their binary
// encodings.
package envelope

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
)

// wireVersion is bumped whenever the binary layout changes incompatibly.
const wireVersion = 1

// ResultCode mirrors the wire's resultCode field (spec §6).
type ResultCode int32

const (
	// Success marks a normally-produced envelope.
	Success ResultCode = 0
)

// EnvelopeMetadata is the header encrypted inside every envelope under the
// session's stable metadata key: a random request id, the message nonce
// used for the payload, and the sending chain's ratchet index.
type EnvelopeMetadata struct {
	RequestID    uint32
	Nonce        []byte // 12 bytes; the same nonce used for payload AEAD
	RatchetIndex uint32
}

// MarshalBinary encodes m as requestId(4) | nonce(12) | ratchetIndex(4).
func (m EnvelopeMetadata) MarshalBinary() ([]byte, error) {
	if len(m.Nonce) != 12 {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "envelope.EnvelopeMetadata.MarshalBinary", fmt.Errorf("nonce must be 12 bytes"))
	}
	out := make([]byte, 0, 4+12+4)
	out = binary.BigEndian.AppendUint32(out, m.RequestID)
	out = append(out, m.Nonce...)
	out = binary.BigEndian.AppendUint32(out, m.RatchetIndex)
	return out, nil
}

// UnmarshalBinary decodes m from data produced by MarshalBinary.
func (m *EnvelopeMetadata) UnmarshalBinary(data []byte) error {
	if len(data) != 4+12+4 {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "envelope.EnvelopeMetadata.UnmarshalBinary", fmt.Errorf("metadata has wrong length %d", len(data)))
	}
	m.RequestID = binary.BigEndian.Uint32(data[0:4])
	m.Nonce = append([]byte(nil), data[4:16]...)
	m.RatchetIndex = binary.BigEndian.Uint32(data[16:20])
	return nil
}

// SecureEnvelope is the fully-formed wire message (spec §6): encrypted
// metadata, the encrypted payload (ciphertext‖tag as one blob per §9's
// documented tag layout), the random nonce used to encrypt the metadata,
// a timestamp, a result code, and an optional plaintext DH public key.
type SecureEnvelope struct {
	EncryptedMeta    []byte
	EncryptedPayload []byte // ciphertext || 16-byte tag
	HeaderNonce      []byte // 12 bytes; nonce used for EncryptedMeta
	Timestamp        time.Time
	ResultCode       ResultCode
	DHPublic         []byte // 32 bytes, nil when absent
}

// MarshalBinary encodes e as:
//
//	version(1) | metaLen(4) | meta | headerNonce(12) | payloadLen(4) | payload |
//	timestampUnixNano(8) | resultCode(4) | dhPresent(1) | dhPublic(32 if present)
func (e SecureEnvelope) MarshalBinary() ([]byte, error) {
	if len(e.HeaderNonce) != 12 {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "envelope.SecureEnvelope.MarshalBinary", fmt.Errorf("header nonce must be 12 bytes"))
	}
	if e.DHPublic != nil && len(e.DHPublic) != 32 {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "envelope.SecureEnvelope.MarshalBinary", fmt.Errorf("dh public must be 32 bytes"))
	}
	out := make([]byte, 0, 1+4+len(e.EncryptedMeta)+12+4+len(e.EncryptedPayload)+8+4+1+32)
	out = append(out, wireVersion)
	out = appendUint32Prefixed(out, e.EncryptedMeta)
	out = append(out, e.HeaderNonce...)
	out = appendUint32Prefixed(out, e.EncryptedPayload)
	out = binary.BigEndian.AppendUint64(out, uint64(e.Timestamp.UnixNano()))
	out = binary.BigEndian.AppendUint32(out, uint32(e.ResultCode))
	if e.DHPublic != nil {
		out = append(out, 1)
		out = append(out, e.DHPublic...)
	} else {
		out = append(out, 0)
	}
	return out, nil
}

// UnmarshalBinary decodes e from data produced by MarshalBinary.
func (e *SecureEnvelope) UnmarshalBinary(data []byte) error {
	if len(data) < 1+4 {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "envelope.SecureEnvelope.UnmarshalBinary", fmt.Errorf("envelope too short"))
	}
	pos := 0
	version := data[pos]
	pos++
	if version != wireVersion {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "envelope.SecureEnvelope.UnmarshalBinary", fmt.Errorf("unsupported wire version %d", version))
	}

	meta, n, err := readUint32Prefixed(data[pos:])
	if err != nil {
		return err
	}
	pos += n
	if len(data[pos:]) < 12 {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "envelope.SecureEnvelope.UnmarshalBinary", fmt.Errorf("missing header nonce"))
	}
	headerNonce := append([]byte(nil), data[pos:pos+12]...)
	pos += 12

	payload, n, err := readUint32Prefixed(data[pos:])
	if err != nil {
		return err
	}
	pos += n

	if len(data[pos:]) < 8+4+1 {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "envelope.SecureEnvelope.UnmarshalBinary", fmt.Errorf("truncated envelope trailer"))
	}
	ts := int64(binary.BigEndian.Uint64(data[pos:]))
	pos += 8
	rc := int32(binary.BigEndian.Uint32(data[pos:]))
	pos += 4
	present := data[pos]
	pos++

	var dhPub []byte
	switch present {
	case 1:
		if len(data[pos:]) != 32 {
			return ecliptixerr.New(ecliptixerr.InvalidInput, "envelope.SecureEnvelope.UnmarshalBinary", fmt.Errorf("truncated dh public"))
		}
		dhPub = append([]byte(nil), data[pos:pos+32]...)
		pos += 32
	case 0:
		if pos != len(data) {
			return ecliptixerr.New(ecliptixerr.InvalidInput, "envelope.SecureEnvelope.UnmarshalBinary", fmt.Errorf("trailing bytes after envelope"))
		}
	default:
		return ecliptixerr.New(ecliptixerr.InvalidInput, "envelope.SecureEnvelope.UnmarshalBinary", fmt.Errorf("invalid dh-present flag %d", present))
	}

	e.EncryptedMeta = meta
	e.HeaderNonce = headerNonce
	e.EncryptedPayload = payload
	e.Timestamp = time.Unix(0, ts).UTC()
	e.ResultCode = ResultCode(rc)
	e.DHPublic = dhPub
	return nil
}

func appendUint32Prefixed(dst []byte, b []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(b)))
	return append(dst, b...)
}

func readUint32Prefixed(data []byte) (b []byte, consumed int, err error) {
	if len(data) < 4 {
		return nil, 0, ecliptixerr.New(ecliptixerr.InvalidInput, "envelope.readUint32Prefixed", fmt.Errorf("truncated length prefix"))
	}
	l := binary.BigEndian.Uint32(data)
	if uint64(l) > uint64(len(data)-4) {
		return nil, 0, ecliptixerr.New(ecliptixerr.InvalidInput, "envelope.readUint32Prefixed", fmt.Errorf("length prefix %d exceeds remaining data", l))
	}
	return append([]byte(nil), data[4:4+l]...), 4 + int(l), nil
}
