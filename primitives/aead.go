package primitives

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
)

const (
	// AESKeySize is the key size in bytes required by AEADSeal/Open.
	AESKeySize = 32
	// AESNonceSize is the nonce size in bytes required by AEADSeal/Open.
	AESNonceSize = 12
	// AESTagSize is the size in bytes of the GCM authentication tag
	// appended to every ciphertext produced by AEADSeal.
	AESTagSize = 16
)

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("want %d-byte key, got %d", AESKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// AEADSeal encrypts and authenticates plaintext under key and nonce,
// authenticating additionalData, and returns ciphertext with the 16-byte
// tag appended, per spec §4.1.
func AEADSeal(key, nonce, plaintext, additionalData []byte) ([]byte, error) {
	if len(nonce) != AESNonceSize {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "primitives.AEADSeal", fmt.Errorf("want %d-byte nonce, got %d", AESNonceSize, len(nonce)))
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "primitives.AEADSeal", err)
	}
	return aead.Seal(nil, nonce, plaintext, additionalData), nil
}

// AEADOpen decrypts and authenticates ciphertext (which must be
// ciphertext||tag, see SplitTag) under key and nonce, authenticating
// additionalData. A failed tag check is surfaced as authErr (the caller
// maps this to MetadataAuthFailed or PayloadAuthFailed per context).
func AEADOpen(key, nonce, ciphertext, additionalData []byte, authErr ecliptixerr.Code) ([]byte, error) {
	if len(nonce) != AESNonceSize {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "primitives.AEADOpen", fmt.Errorf("want %d-byte nonce, got %d", AESNonceSize, len(nonce)))
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "primitives.AEADOpen", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ecliptixerr.New(authErr, "primitives.AEADOpen", err)
	}
	return plaintext, nil
}

// SplitTag splits a ciphertext||tag blob into its ciphertext and trailing
// 16-byte tag, per spec §9 "Two-byte AES-GCM tag layout" (the wire payload
// is a single blob; callers split on the trailing 16 bytes before treating
// the two parts independently, e.g. for length accounting).
func SplitTag(blob []byte) (ciphertext, tag []byte, err error) {
	if len(blob) < AESTagSize {
		return nil, nil, ecliptixerr.New(ecliptixerr.InvalidInput, "primitives.SplitTag", fmt.Errorf("blob shorter than tag size"))
	}
	n := len(blob) - AESTagSize
	return blob[:n], blob[n:], nil
}
