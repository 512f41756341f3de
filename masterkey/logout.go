package masterkey

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/ecliptix-labs/ecliptix-core/primitives"
	"github.com/ecliptix-labs/ecliptix-core/secretbuf"
)

var (
	logoutHMACInfo  = []byte("ecliptix-logout-hmac-v1")
	logoutProofInfo = []byte("ecliptix-logout-proof-v1")
)

// DeriveLogoutHMACKey and DeriveLogoutProofKey derive the two independent
// 32-byte keys used to authenticate a session-termination request: one for
// the HMAC over the termination message, one for a proof-of-possession
// value, per spec §4.9.
func DeriveLogoutHMACKey(masterKey *secretbuf.Buffer) (*secretbuf.Buffer, error) {
	return deriveLogoutKey(masterKey, logoutHMACInfo)
}

func DeriveLogoutProofKey(masterKey *secretbuf.Buffer) (*secretbuf.Buffer, error) {
	return deriveLogoutKey(masterKey, logoutProofInfo)
}

func deriveLogoutKey(masterKey *secretbuf.Buffer, info []byte) (*secretbuf.Buffer, error) {
	var out []byte
	var err error
	viewErr := masterKey.View(func(mk []byte) {
		out, err = primitives.HKDFExpand(mk, info, 32)
	})
	if viewErr != nil {
		return nil, viewErr
	}
	if err != nil {
		return nil, err
	}
	defer secretbuf.Wipe(out)
	return secretbuf.NewFromBytes(out)
}

// VerifyLogoutHMAC checks, in constant time, whether mac authenticates
// message under the logout HMAC key.
func VerifyLogoutHMAC(logoutHMACKey *secretbuf.Buffer, message, mac []byte) bool {
	var ok bool
	_ = logoutHMACKey.View(func(key []byte) {
		expected := computeHMAC(key, message)
		ok = hmac.Equal(expected, mac)
	})
	return ok
}

func computeHMAC(key, message []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(message)
	return h.Sum(nil)
}

// ComputeLogoutHMAC produces the authentication tag a caller attaches to a
// termination request.
func ComputeLogoutHMAC(logoutHMACKey *secretbuf.Buffer, message []byte) ([]byte, error) {
	var out []byte
	viewErr := logoutHMACKey.View(func(key []byte) {
		out = computeHMAC(key, message)
	})
	if viewErr != nil {
		return nil, viewErr
	}
	return out, nil
}
