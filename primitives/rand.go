package primitives

import (
	"crypto/rand"
	"io"

	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
)

// RandomBytes returns n cryptographically secure random bytes, used for
// envelope header nonces and (via RandomUint32) request ids.
func RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, ecliptixerr.New(ecliptixerr.CryptoInternal, "primitives.RandomBytes", err)
	}
	return buf, nil
}

// RandomUint32 returns a uniformly random uint32, used for request ids.
func RandomUint32() (uint32, error) {
	b, err := RandomBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}
