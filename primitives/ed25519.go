package primitives

import (
	stded25519 "crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
)

const (
	// Ed25519PublicKeySize is the size in bytes of an Ed25519 public key.
	Ed25519PublicKeySize = stded25519.PublicKeySize
	// Ed25519PrivateKeySize is the size in bytes of an Ed25519 private key
	// (seed || public, per crypto/ed25519's convention).
	Ed25519PrivateKeySize = stded25519.PrivateKeySize
	// Ed25519SignatureSize is the size in bytes of an Ed25519 signature.
	Ed25519SignatureSize = stded25519.SignatureSize
)

// GenerateEd25519 creates a fresh Ed25519 signing key pair.
func GenerateEd25519() (priv, pub []byte, err error) {
	pubKey, privKey, err := stded25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, ecliptixerr.New(ecliptixerr.CryptoInternal, "primitives.GenerateEd25519", err)
	}
	return privKey, pubKey, nil
}

// Ed25519Sign signs message with priv and returns the raw 64-byte signature.
func Ed25519Sign(priv, message []byte) ([]byte, error) {
	if len(priv) != Ed25519PrivateKeySize {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "primitives.Ed25519Sign", fmt.Errorf("bad private key size %d", len(priv)))
	}
	return stded25519.Sign(stded25519.PrivateKey(priv), message), nil
}

// Ed25519Verify reports whether sig is a valid signature by pub over
// message.
func Ed25519Verify(pub, message, sig []byte) bool {
	if len(pub) != Ed25519PublicKeySize || len(sig) != Ed25519SignatureSize {
		return false
	}
	return stded25519.Verify(stded25519.PublicKey(pub), message, sig)
}
