package identity

import (
	"bytes"
	"fmt"

	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
	"github.com/ecliptix-labs/ecliptix-core/primitives"
)

// BundledOneTimePreKey is the wire-exchanged (id, public key) pair for one
// one-time pre-key, per spec §3 PublicBundle.
type BundledOneTimePreKey struct {
	PreKeyID  uint32
	PublicKey []byte
}

// PublicBundle is the wire-exchanged bundle of public material a party
// publishes for others to initiate a handshake against, per spec §3.
type PublicBundle struct {
	IdentityEd25519Public []byte
	IdentityX25519Public  []byte
	SignedPreKeyID        uint32
	SignedPreKeyPublic    []byte
	SignedPreKeySignature []byte
	EphemeralX25519Public []byte // optional; nil when absent
	OneTimePreKeys        []BundledOneTimePreKey
}

// CreatePublicBundle assembles the PublicBundle k currently advertises,
// including its present ephemeral public key and the remaining one-time
// pre-keys.
func (k *Keys) CreatePublicBundle() PublicBundle {
	otks := make([]BundledOneTimePreKey, len(k.otPreKeys))
	for i, otk := range k.otPreKeys {
		otks[i] = BundledOneTimePreKey{PreKeyID: otk.ID, PublicKey: append([]byte(nil), otk.Pub...)}
	}
	return PublicBundle{
		IdentityEd25519Public: append([]byte(nil), k.EdPub...),
		IdentityX25519Public:  append([]byte(nil), k.IDPub...),
		SignedPreKeyID:        k.spkID,
		SignedPreKeyPublic:    append([]byte(nil), k.SPKPub...),
		SignedPreKeySignature: append([]byte(nil), k.SPKSig...),
		EphemeralX25519Public: append([]byte(nil), k.EphPub...),
		OneTimePreKeys:        otks,
	}
}

// Validate checks every X25519 public key in b against spec §3's invariant:
// every X25519 public must be validated (reject low-order points and
// all-zero).
func (b PublicBundle) Validate() error {
	if len(b.IdentityEd25519Public) != primitives.Ed25519PublicKeySize {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PublicBundle.Validate", fmt.Errorf("bad identity Ed25519 public size"))
	}
	if err := primitives.ValidatePublicKey(b.IdentityX25519Public); err != nil {
		return err
	}
	if len(b.SignedPreKeySignature) != primitives.Ed25519SignatureSize {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "identity.PublicBundle.Validate", fmt.Errorf("bad SPK signature size"))
	}
	if err := primitives.ValidatePublicKey(b.SignedPreKeyPublic); err != nil {
		return err
	}
	if b.EphemeralX25519Public != nil {
		if err := primitives.ValidatePublicKey(b.EphemeralX25519Public); err != nil {
			return err
		}
	}
	for _, otk := range b.OneTimePreKeys {
		if err := primitives.ValidatePublicKey(otk.PublicKey); err != nil {
			return err
		}
	}
	return nil
}

// VerifyRemoteSPKSignature verifies that sig is a valid Ed25519 signature by
// idEd over spkPub.
func VerifyRemoteSPKSignature(idEd, spkPub, sig []byte) bool {
	return primitives.Ed25519Verify(idEd, spkPub, sig)
}

// EchoesInitialDHPublic reports whether the initial DH public the peer
// advertised (PubKeyExchange.initialDhPublicKey) matches ours, i.e. a
// reflection attempt per spec §7/§8 scenario 5.
func EchoesInitialDHPublic(ourInitialDHPublic, peerEphemeral []byte) bool {
	return peerEphemeral != nil && bytes.Equal(ourInitialDHPublic, peerEphemeral)
}
