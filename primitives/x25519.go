// Package primitives implements the cryptographic building blocks Ecliptix
// is built from: X25519, Ed25519, HKDF-SHA256, HMAC-SHA256, AES-256-GCM,
// Argon2id, BLAKE2b, and a CSRNG source. Every function here is pure: no
// package-level state, no secret retention beyond the call.
package primitives

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"

	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
)

const (
	// X25519KeySize is the size in bytes of an X25519 scalar or point.
	X25519KeySize = 32
)

// loworderPoints lists the documented small-order Curve25519 points that
// must be rejected as peer public keys, per spec §4.1.
var loworderPoints = [][32]byte{
	{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	{0xe0, 0xeb, 0x7a, 0x7c, 0x3b, 0x41, 0xb8, 0xae, 0x16, 0x56, 0xe3, 0xfa, 0xf1, 0x9f, 0xc4, 0x6a, 0xda, 0x09, 0x8d, 0xeb, 0x9c, 0x32, 0xb1, 0xfd, 0x86, 0x62, 0x05, 0x16, 0x5f, 0x49, 0xb8, 0x00},
	{0x5f, 0x9c, 0x95, 0xbc, 0xa3, 0x50, 0x8c, 0x24, 0xb1, 0xd0, 0xb1, 0x55, 0x9c, 0x83, 0xef, 0x5b, 0x04, 0x44, 0x5c, 0xc4, 0x58, 0x1c, 0x8e, 0x86, 0xd8, 0x22, 0x4e, 0xdd, 0xd0, 0x9f, 0x11, 0x57},
	{0xec, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f},
	{0xed, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
	{0xee, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f},
}

var allZero32 [32]byte

// ValidatePublicKey rejects an X25519 public key that is all-zero or one of
// the documented small-order points.
func ValidatePublicKey(pub []byte) error {
	if len(pub) != X25519KeySize {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "primitives.ValidatePublicKey", fmt.Errorf("want %d bytes, got %d", X25519KeySize, len(pub)))
	}
	for _, p := range loworderPoints {
		if bytes.Equal(pub, p[:]) {
			return ecliptixerr.New(ecliptixerr.CryptoInternal, "primitives.ValidatePublicKey", fmt.Errorf("rejected low-order point"))
		}
	}
	return nil
}

// GenerateX25519 creates a fresh, clamped X25519 key pair using the package
// CSRNG.
func GenerateX25519() (priv, pub []byte, err error) {
	priv = make([]byte, X25519KeySize)
	if _, err = io.ReadFull(rand.Reader, priv); err != nil {
		return nil, nil, ecliptixerr.New(ecliptixerr.CryptoInternal, "primitives.GenerateX25519", err)
	}
	clamp(priv)
	pubBytes, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, ecliptixerr.New(ecliptixerr.CryptoInternal, "primitives.GenerateX25519", err)
	}
	return priv, pubBytes, nil
}

// clamp applies RFC 7748 scalar clamping in place.
func clamp(priv []byte) {
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
}

// X25519DH computes the Diffie-Hellman shared secret between priv and pub,
// rejecting invalid peer public keys and all-zero outputs per spec §4.1.
func X25519DH(priv, pub []byte) ([]byte, error) {
	if len(priv) != X25519KeySize {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "primitives.X25519DH", fmt.Errorf("bad private key size %d", len(priv)))
	}
	if err := ValidatePublicKey(pub); err != nil {
		return nil, err
	}
	shared, err := curve25519.X25519(priv, pub)
	if err != nil {
		return nil, ecliptixerr.New(ecliptixerr.CryptoInternal, "primitives.X25519DH", err)
	}
	if bytes.Equal(shared, allZero32[:]) {
		return nil, ecliptixerr.New(ecliptixerr.CryptoInternal, "primitives.X25519DH", fmt.Errorf("shared secret is all-zero"))
	}
	return shared, nil
}
