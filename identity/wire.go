package identity

import (
	"encoding/binary"
	"fmt"

	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
	"github.com/ecliptix-labs/ecliptix-core/primitives"
)

// MarshalBinary encodes b per spec §6's PublicBundle layout:
//
//	identityEd25519Public(32) | identityX25519Public(32) | signedPreKeyId(4) |
//	signedPreKeyPublic(32) | signedPreKeySignature(64) | ephemeralPresent(1) |
//	ephemeralX25519Public(32 if present) | otkCount(4) | {preKeyId(4), publicKey(32)}...
func (b PublicBundle) MarshalBinary() ([]byte, error) {
	if len(b.IdentityEd25519Public) != primitives.Ed25519PublicKeySize {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PublicBundle.MarshalBinary", fmt.Errorf("bad identity Ed25519 public size"))
	}
	if len(b.IdentityX25519Public) != primitives.X25519KeySize {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PublicBundle.MarshalBinary", fmt.Errorf("bad identity X25519 public size"))
	}
	if len(b.SignedPreKeyPublic) != primitives.X25519KeySize {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PublicBundle.MarshalBinary", fmt.Errorf("bad signed pre-key public size"))
	}
	if len(b.SignedPreKeySignature) != primitives.Ed25519SignatureSize {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PublicBundle.MarshalBinary", fmt.Errorf("bad signed pre-key signature size"))
	}
	if b.EphemeralX25519Public != nil && len(b.EphemeralX25519Public) != primitives.X25519KeySize {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PublicBundle.MarshalBinary", fmt.Errorf("bad ephemeral public size"))
	}

	out := make([]byte, 0, 32+32+4+32+64+1+32+4+len(b.OneTimePreKeys)*(4+32))
	out = append(out, b.IdentityEd25519Public...)
	out = append(out, b.IdentityX25519Public...)
	out = binary.BigEndian.AppendUint32(out, b.SignedPreKeyID)
	out = append(out, b.SignedPreKeyPublic...)
	out = append(out, b.SignedPreKeySignature...)
	if b.EphemeralX25519Public != nil {
		out = append(out, 1)
		out = append(out, b.EphemeralX25519Public...)
	} else {
		out = append(out, 0)
	}
	out = binary.BigEndian.AppendUint32(out, uint32(len(b.OneTimePreKeys)))
	for _, otk := range b.OneTimePreKeys {
		if len(otk.PublicKey) != primitives.X25519KeySize {
			return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PublicBundle.MarshalBinary", fmt.Errorf("bad one-time pre-key public size"))
		}
		out = binary.BigEndian.AppendUint32(out, otk.PreKeyID)
		out = append(out, otk.PublicKey...)
	}
	return out, nil
}

// UnmarshalBinary decodes b from data produced by MarshalBinary.
func (b *PublicBundle) UnmarshalBinary(data []byte) error {
	const fixed = 32 + 32 + 4 + 32 + 64 + 1
	if len(data) < fixed {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PublicBundle.UnmarshalBinary", fmt.Errorf("bundle too short"))
	}
	pos := 0
	b.IdentityEd25519Public = append([]byte(nil), data[pos:pos+32]...)
	pos += 32
	b.IdentityX25519Public = append([]byte(nil), data[pos:pos+32]...)
	pos += 32
	b.SignedPreKeyID = binary.BigEndian.Uint32(data[pos:])
	pos += 4
	b.SignedPreKeyPublic = append([]byte(nil), data[pos:pos+32]...)
	pos += 32
	b.SignedPreKeySignature = append([]byte(nil), data[pos:pos+64]...)
	pos += 64
	present := data[pos]
	pos++
	switch present {
	case 1:
		if len(data[pos:]) < 32 {
			return ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PublicBundle.UnmarshalBinary", fmt.Errorf("truncated ephemeral public"))
		}
		b.EphemeralX25519Public = append([]byte(nil), data[pos:pos+32]...)
		pos += 32
	case 0:
		b.EphemeralX25519Public = nil
	default:
		return ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PublicBundle.UnmarshalBinary", fmt.Errorf("invalid ephemeral-present flag %d", present))
	}

	if len(data[pos:]) < 4 {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PublicBundle.UnmarshalBinary", fmt.Errorf("truncated one-time pre-key count"))
	}
	count := binary.BigEndian.Uint32(data[pos:])
	pos += 4

	otks := make([]BundledOneTimePreKey, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(data[pos:]) < 4+32 {
			return ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PublicBundle.UnmarshalBinary", fmt.Errorf("truncated one-time pre-key entry"))
		}
		id := binary.BigEndian.Uint32(data[pos:])
		pos += 4
		pub := append([]byte(nil), data[pos:pos+32]...)
		pos += 32
		otks = append(otks, BundledOneTimePreKey{PreKeyID: id, PublicKey: pub})
	}
	if pos != len(data) {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PublicBundle.UnmarshalBinary", fmt.Errorf("trailing bytes after bundle"))
	}
	b.OneTimePreKeys = otks
	return nil
}

// ExchangeState is PubKeyExchange.state (spec §6).
type ExchangeState uint8

const (
	// ExchangeInit is the initiator's opening message: its bundle plus the
	// ratchet initial DH public it wants acknowledged.
	ExchangeInit ExchangeState = iota + 1
	// ExchangeAck is the responder's reply: its own bundle plus its ratchet
	// initial DH public.
	ExchangeAck
)

// PubKeyExchange is the handshake envelope exchanged before any
// SecureEnvelope can be produced: a state tag, an application-defined
// exchange type, the sender's PublicBundle, and the sender's ratchet
// session's InitialDHPublic (distinct from the bundle's own
// ephemeralX25519Public, which belongs to X3DH rather than the Double
// Ratchet — spec §6).
type PubKeyExchange struct {
	State              ExchangeState
	ExchangeType       uint16
	Payload            PublicBundle
	InitialDHPublicKey []byte // 32 bytes
}

// MarshalBinary encodes x as:
//
//	state(1) | exchangeType(2) | payloadLen(4) | payload | initialDhPublicKey(32)
func (x PubKeyExchange) MarshalBinary() ([]byte, error) {
	if len(x.InitialDHPublicKey) != primitives.X25519KeySize {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PubKeyExchange.MarshalBinary", fmt.Errorf("bad initial DH public size"))
	}
	payload, err := x.Payload.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+2+4+len(payload)+32)
	out = append(out, byte(x.State))
	out = binary.BigEndian.AppendUint16(out, x.ExchangeType)
	out = binary.BigEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, payload...)
	out = append(out, x.InitialDHPublicKey...)
	return out, nil
}

// UnmarshalBinary decodes x from data produced by MarshalBinary.
func (x *PubKeyExchange) UnmarshalBinary(data []byte) error {
	if len(data) < 1+2+4 {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PubKeyExchange.UnmarshalBinary", fmt.Errorf("exchange message too short"))
	}
	pos := 0
	x.State = ExchangeState(data[pos])
	pos++
	x.ExchangeType = binary.BigEndian.Uint16(data[pos:])
	pos += 2
	payloadLen := binary.BigEndian.Uint32(data[pos:])
	pos += 4
	if uint64(payloadLen) > uint64(len(data)-pos) {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PubKeyExchange.UnmarshalBinary", fmt.Errorf("payload length exceeds remaining data"))
	}
	if err := x.Payload.UnmarshalBinary(data[pos : pos+int(payloadLen)]); err != nil {
		return err
	}
	pos += int(payloadLen)
	if len(data[pos:]) != 32 {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PubKeyExchange.UnmarshalBinary", fmt.Errorf("bad initial DH public size"))
	}
	x.InitialDHPublicKey = append([]byte(nil), data[pos:]...)
	return nil
}
