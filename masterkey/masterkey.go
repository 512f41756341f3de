// Package masterkey implements MasterKeyDerivation and LogoutKeyDerivation
// (spec §4.9): deriving a per-membership master key from a low-entropy
// export key via Argon2id stretching and a BLAKE2b personalized binding,
// then deriving per-purpose sub-seeds and logout authentication keys from
// it.
package masterkey

import (
	"crypto/sha256"
	"fmt"

	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
	"github.com/ecliptix-labs/ecliptix-core/primitives"
	"github.com/ecliptix-labs/ecliptix-core/secretbuf"
)

// MembershipIDSize is the fixed width a membership identifier must have.
const MembershipIDSize = 16

// masterKeySalt is the 16-byte constant salt bound into every master key
// derivation, domain-separating it from any other use of BLAKE2b-personal
// in this module.
var masterKeySalt = []byte("ECLIPTIX_MSTR_V1")

var argonSaltSuffix = []byte("ECLIPTIX_MASTER_KEY")

const (
	contextEd25519 = "ED25519"
	contextX25519  = "X25519"
	contextSPK     = "SPK_X25519"
)

// Version is the protocol version bound into every master-key and sub-seed
// derivation, allowing a future key-schedule change to produce
// distinguishable output.
const Version uint32 = 1

// DeriveMasterKey stretches exportKey with Argon2id under a salt bound to
// membershipId, then binds the result to membershipId via a BLAKE2b
// personalized hash, producing the 32-byte master key.
func DeriveMasterKey(exportKey, membershipID []byte) (*secretbuf.Buffer, error) {
	if len(membershipID) != MembershipIDSize {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "masterkey.DeriveMasterKey", fmt.Errorf("membership id must be %d bytes, got %d", MembershipIDSize, len(membershipID)))
	}

	argonSalt := sha256.New()
	argonSalt.Write(membershipID)
	argonSalt.Write(versionBytes(Version))
	argonSalt.Write(argonSaltSuffix)
	salt := argonSalt.Sum(nil)

	stretched, err := primitives.Argon2idStretch(exportKey, salt, primitives.DefaultArgon2idParams())
	if err != nil {
		return nil, err
	}
	defer secretbuf.Wipe(stretched)

	master, err := primitives.Blake2bPersonal(nil, masterKeySalt, membershipID, stretched, 32)
	if err != nil {
		return nil, err
	}
	defer secretbuf.Wipe(master)

	return secretbuf.NewFromBytes(master)
}

// DeriveEd25519Seed, DeriveX25519Seed, and DeriveSignedPreKeySeed derive
// context-bound 32-byte sub-seeds from masterKey, suitable as the seed for
// generating the corresponding long-term key pair.
func DeriveEd25519Seed(masterKey *secretbuf.Buffer, membershipID []byte) ([]byte, error) {
	return deriveSubSeed(masterKey, membershipID, contextEd25519)
}

func DeriveX25519Seed(masterKey *secretbuf.Buffer, membershipID []byte) ([]byte, error) {
	return deriveSubSeed(masterKey, membershipID, contextX25519)
}

func DeriveSignedPreKeySeed(masterKey *secretbuf.Buffer, membershipID []byte) ([]byte, error) {
	return deriveSubSeed(masterKey, membershipID, contextSPK)
}

func deriveSubSeed(masterKey *secretbuf.Buffer, membershipID []byte, context string) ([]byte, error) {
	if len(membershipID) != MembershipIDSize {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "masterkey.deriveSubSeed", fmt.Errorf("membership id must be %d bytes, got %d", MembershipIDSize, len(membershipID)))
	}
	data := make([]byte, 0, 4+len(context)+len(membershipID))
	data = append(data, versionBytes(Version)...)
	data = append(data, []byte(context)...)
	data = append(data, membershipID...)

	var out []byte
	var err error
	viewErr := masterKey.View(func(mk []byte) {
		out, err = primitives.Blake2bKeyed(mk, data, 32)
	})
	if viewErr != nil {
		return nil, viewErr
	}
	return out, err
}

func versionBytes(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
