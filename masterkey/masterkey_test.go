package masterkey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func membershipID() []byte {
	return []byte("0123456789abcdef")[:MembershipIDSize]
}

func TestDeriveMasterKeyDeterministic(t *testing.T) {
	exportKey := []byte("a shared export key from the app layer")

	k1, err := DeriveMasterKey(exportKey, membershipID())
	require.NoError(t, err)
	defer k1.Destroy()

	k2, err := DeriveMasterKey(exportKey, membershipID())
	require.NoError(t, err)
	defer k2.Destroy()

	require.True(t, k1.Equal(k2))
}

func TestDeriveMasterKeyRejectsBadMembershipIDSize(t *testing.T) {
	_, err := DeriveMasterKey([]byte("export key"), []byte("too-short"))
	require.Error(t, err)
}

func TestSubSeedsAreDistinctAndDeterministic(t *testing.T) {
	master, err := DeriveMasterKey([]byte("export key material"), membershipID())
	require.NoError(t, err)
	defer master.Destroy()

	ed1, err := DeriveEd25519Seed(master, membershipID())
	require.NoError(t, err)
	ed2, err := DeriveEd25519Seed(master, membershipID())
	require.NoError(t, err)
	require.Equal(t, ed1, ed2)

	x25519Seed, err := DeriveX25519Seed(master, membershipID())
	require.NoError(t, err)
	require.NotEqual(t, ed1, x25519Seed)

	spkSeed, err := DeriveSignedPreKeySeed(master, membershipID())
	require.NoError(t, err)
	require.NotEqual(t, x25519Seed, spkSeed)
}

func TestLogoutKeysAuthenticateAndRejectTampering(t *testing.T) {
	master, err := DeriveMasterKey([]byte("export key material"), membershipID())
	require.NoError(t, err)
	defer master.Destroy()

	hmacKey, err := DeriveLogoutHMACKey(master)
	require.NoError(t, err)
	defer hmacKey.Destroy()

	message := []byte("terminate-session-42")
	tag, err := ComputeLogoutHMAC(hmacKey, message)
	require.NoError(t, err)
	require.True(t, VerifyLogoutHMAC(hmacKey, message, tag))

	tampered := append([]byte(nil), tag...)
	tampered[0] ^= 0xFF
	require.False(t, VerifyLogoutHMAC(hmacKey, message, tampered))
}

func TestLogoutHMACAndProofKeysAreIndependent(t *testing.T) {
	master, err := DeriveMasterKey([]byte("export key material"), membershipID())
	require.NoError(t, err)
	defer master.Destroy()

	hmacKey, err := DeriveLogoutHMACKey(master)
	require.NoError(t, err)
	defer hmacKey.Destroy()

	proofKey, err := DeriveLogoutProofKey(master)
	require.NoError(t, err)
	defer proofKey.Destroy()

	require.False(t, hmacKey.Equal(proofKey))
}
