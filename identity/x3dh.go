package identity

import (
	"fmt"

	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
	"github.com/ecliptix-labs/ecliptix-core/primitives"
	"github.com/ecliptix-labs/ecliptix-core/secretbuf"
)

// X3DHDeriveSharedSecret computes the initial X3DH shared secret between k
// (the local party) and peer (the remote party's published bundle), per
// spec §4.2.
//
// The caller is the initiator: it uses its own identity and ephemeral key
// pairs against the peer's identity and signed pre-key (and, if the peer's
// bundle lists any one-time pre-keys, against the first one listed). The
// four DH values —
//
//	DH1 = DH(our identity, peer SPK)
//	DH2 = DH(our ephemeral, peer identity)
//	DH3 = DH(our ephemeral, peer SPK)
//	DH4 = DH(our ephemeral, peer OTK)   [if present]
//
// are concatenated and fed through HKDF-Extract (zero salt) then
// HKDF-Expand (fixed info, 32 bytes) to produce the root key.
func (k *Keys) X3DHDeriveSharedSecret(peer PublicBundle) (*secretbuf.Buffer, error) {
	if !VerifyRemoteSPKSignature(peer.IdentityEd25519Public, peer.SignedPreKeyPublic, peer.SignedPreKeySignature) {
		return nil, ecliptixerr.New(ecliptixerr.HandshakeRejected, "identity.X3DHDeriveSharedSecret", fmt.Errorf("invalid SPK signature"))
	}
	if err := peer.Validate(); err != nil {
		return nil, ecliptixerr.New(ecliptixerr.HandshakeRejected, "identity.X3DHDeriveSharedSecret", err)
	}

	dh1, err := dh(k.idPriv, peer.SignedPreKeyPublic)
	if err != nil {
		return nil, ecliptixerr.New(ecliptixerr.HandshakeRejected, "identity.X3DHDeriveSharedSecret", err)
	}
	defer secretbuf.Wipe(dh1)

	dh2, err := dh(k.ephPriv, peer.IdentityX25519Public)
	if err != nil {
		return nil, ecliptixerr.New(ecliptixerr.HandshakeRejected, "identity.X3DHDeriveSharedSecret", err)
	}
	defer secretbuf.Wipe(dh2)

	dh3, err := dh(k.ephPriv, peer.SignedPreKeyPublic)
	if err != nil {
		return nil, ecliptixerr.New(ecliptixerr.HandshakeRejected, "identity.X3DHDeriveSharedSecret", err)
	}
	defer secretbuf.Wipe(dh3)

	concat := make([]byte, 0, 4*primitives.X25519KeySize)
	concat = append(concat, dh1...)
	concat = append(concat, dh2...)
	concat = append(concat, dh3...)
	defer secretbuf.Wipe(concat)

	if len(peer.OneTimePreKeys) > 0 {
		dh4, err := dh(k.ephPriv, peer.OneTimePreKeys[0].PublicKey)
		if err != nil {
			return nil, ecliptixerr.New(ecliptixerr.HandshakeRejected, "identity.X3DHDeriveSharedSecret", err)
		}
		defer secretbuf.Wipe(dh4)
		concat = append(concat, dh4...)
	}

	root, err := primitives.HKDF(nil, concat, x3dhInfo, 32)
	if err != nil {
		return nil, ecliptixerr.New(ecliptixerr.CryptoInternal, "identity.X3DHDeriveSharedSecret", err)
	}
	defer secretbuf.Wipe(root)
	return secretbuf.NewFromBytes(root)
}

// X3DHDeriveSharedSecretAsResponder computes the mirror image of
// X3DHDeriveSharedSecret from the responder's side: k is the responder (its
// identity key, signed pre-key, and — if usedOTKID is non-zero — the named
// one-time pre-key), initiatorBundle is the initiator's published bundle,
// and initiatorEphemeral is the ephemeral X25519 public key carried in that
// bundle (PublicBundle.EphemeralX25519Public), not the ratchet's
// PubKeyExchange.initialDhPublicKey.
//
// Because X25519 DH is commutative, each DH here equals its counterpart in
// X3DHDeriveSharedSecret with the roles reversed, so both parties derive an
// identical root key.
func (k *Keys) X3DHDeriveSharedSecretAsResponder(initiatorBundle PublicBundle, initiatorEphemeral []byte, usedOTKID uint32) (*secretbuf.Buffer, error) {
	if err := primitives.ValidatePublicKey(initiatorEphemeral); err != nil {
		return nil, ecliptixerr.New(ecliptixerr.HandshakeRejected, "identity.X3DHDeriveSharedSecretAsResponder", err)
	}
	if err := initiatorBundle.Validate(); err != nil {
		return nil, ecliptixerr.New(ecliptixerr.HandshakeRejected, "identity.X3DHDeriveSharedSecretAsResponder", err)
	}

	dh1, err := dh(k.spkPriv, initiatorBundle.IdentityX25519Public) // DH(SPK_B, IK_A) == DH(IK_A, SPK_B)
	if err != nil {
		return nil, ecliptixerr.New(ecliptixerr.HandshakeRejected, "identity.X3DHDeriveSharedSecretAsResponder", err)
	}
	defer secretbuf.Wipe(dh1)

	dh2, err := dh(k.idPriv, initiatorEphemeral) // DH(IK_B, EK_A) == DH(EK_A, IK_B)
	if err != nil {
		return nil, ecliptixerr.New(ecliptixerr.HandshakeRejected, "identity.X3DHDeriveSharedSecretAsResponder", err)
	}
	defer secretbuf.Wipe(dh2)

	dh3, err := dh(k.spkPriv, initiatorEphemeral) // DH(SPK_B, EK_A) == DH(EK_A, SPK_B)
	if err != nil {
		return nil, ecliptixerr.New(ecliptixerr.HandshakeRejected, "identity.X3DHDeriveSharedSecretAsResponder", err)
	}
	defer secretbuf.Wipe(dh3)

	concat := make([]byte, 0, 4*primitives.X25519KeySize)
	concat = append(concat, dh1...)
	concat = append(concat, dh2...)
	concat = append(concat, dh3...)
	defer secretbuf.Wipe(concat)

	if usedOTKID != 0 {
		otk, ok := k.takeOneTimePreKey(usedOTKID)
		if !ok {
			return nil, ecliptixerr.New(ecliptixerr.HandshakeRejected, "identity.X3DHDeriveSharedSecretAsResponder", fmt.Errorf("unknown one-time pre-key id %d", usedOTKID))
		}
		dh4, err := dh(otk.priv, initiatorEphemeral) // DH(OPK_B, EK_A) == DH(EK_A, OPK_B)
		otk.priv.Destroy()
		if err != nil {
			return nil, ecliptixerr.New(ecliptixerr.HandshakeRejected, "identity.X3DHDeriveSharedSecretAsResponder", err)
		}
		defer secretbuf.Wipe(dh4)
		concat = append(concat, dh4...)
	}

	root, err := primitives.HKDF(nil, concat, x3dhInfo, 32)
	if err != nil {
		return nil, ecliptixerr.New(ecliptixerr.CryptoInternal, "identity.X3DHDeriveSharedSecretAsResponder", err)
	}
	defer secretbuf.Wipe(root)
	return secretbuf.NewFromBytes(root)
}
