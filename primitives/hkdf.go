package primitives

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
)

// HKDFExtract implements RFC 5869's Extract step: PRK = HMAC-SHA256(salt,
// ikm). If salt is nil, 32 zero bytes are used per spec §4.1.
func HKDFExtract(salt, ikm []byte) []byte {
	if salt == nil {
		salt = make([]byte, sha256.Size)
	}
	h := hmac.New(sha256.New, salt)
	h.Write(ikm)
	return h.Sum(nil)
}

// HKDFExpand implements RFC 5869's Expand step, producing l bytes of output
// keying material from prk and info.
func HKDFExpand(prk, info []byte, l int) ([]byte, error) {
	if l <= 0 {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "primitives.HKDFExpand", fmt.Errorf("l must be positive"))
	}
	r := hkdf.Expand(sha256.New, prk, info)
	out := make([]byte, l)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, ecliptixerr.New(ecliptixerr.CryptoInternal, "primitives.HKDFExpand", err)
	}
	return out, nil
}

// HKDF runs Extract then Expand in one call, mirroring the common case used
// throughout the ratchet and X3DH derivations.
func HKDF(salt, ikm, info []byte, l int) ([]byte, error) {
	prk := HKDFExtract(salt, ikm)
	defer zero(prk)
	return HKDFExpand(prk, info, l)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
