package primitives

import (
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
)

// Argon2idParams holds the tunables for Argon2id key stretching. See spec
// §4.1: parallelism 4, iterations 4, memory 256 MiB, output 32, matching
// DefaultArgon2idParams below.
type Argon2idParams struct {
	// Time is the number of iterations.
	Time uint32
	// MemoryKiB is the memory cost in KiB.
	MemoryKiB uint32
	// Threads is the degree of parallelism.
	Threads uint8
	// KeyLength is the output length in bytes.
	KeyLength uint32
}

// DefaultArgon2idParams returns the protocol-fixed Argon2id parameters used
// by MasterKeyDerivation: parallelism 4, iterations 4, memory 256 MiB,
// output 32 bytes.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:      4,
		MemoryKiB: 256 * 1024,
		Threads:   4,
		KeyLength: 32,
	}
}

// Argon2idStretch stretches ikm with salt using Argon2id under params.
func Argon2idStretch(ikm, salt []byte, params Argon2idParams) ([]byte, error) {
	if len(salt) == 0 {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "primitives.Argon2idStretch", fmt.Errorf("salt must not be empty"))
	}
	if params.KeyLength == 0 {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "primitives.Argon2idStretch", fmt.Errorf("key length must be positive"))
	}
	return argon2.IDKey(ikm, salt, params.Time, params.MemoryKiB, params.Threads, params.KeyLength), nil
}
