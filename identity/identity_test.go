package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndPublicBundleValidates(t *testing.T) {
	k, err := Generate(5)
	require.NoError(t, err)
	defer k.Destroy()

	bundle := k.CreatePublicBundle()
	require.NoError(t, bundle.Validate())
	require.Len(t, bundle.OneTimePreKeys, 5)
}

func TestX3DHInitiatorResponderAgree(t *testing.T) {
	alice, err := Generate(1)
	require.NoError(t, err)
	defer alice.Destroy()
	bob, err := Generate(1)
	require.NoError(t, err)
	defer bob.Destroy()

	bobBundle := bob.CreatePublicBundle()
	usedOTKID := bobBundle.OneTimePreKeys[0].PreKeyID

	rootAlice, err := alice.X3DHDeriveSharedSecret(bobBundle)
	require.NoError(t, err)
	defer rootAlice.Destroy()

	rootBob, err := bob.X3DHDeriveSharedSecretAsResponder(alice.CreatePublicBundle(), alice.EphPub, usedOTKID)
	require.NoError(t, err)
	defer rootBob.Destroy()

	require.True(t, rootAlice.Equal(rootBob))
}

func TestX3DHRejectsBadSPKSignature(t *testing.T) {
	alice, err := Generate(0)
	require.NoError(t, err)
	defer alice.Destroy()
	bob, err := Generate(0)
	require.NoError(t, err)
	defer bob.Destroy()

	bundle := bob.CreatePublicBundle()
	bundle.SignedPreKeySignature[0] ^= 0xFF

	_, err = alice.X3DHDeriveSharedSecret(bundle)
	require.Error(t, err)
}

func TestX3DHRejectsLowOrderPeerKey(t *testing.T) {
	alice, err := Generate(0)
	require.NoError(t, err)
	defer alice.Destroy()
	bob, err := Generate(0)
	require.NoError(t, err)
	defer bob.Destroy()

	bundle := bob.CreatePublicBundle()
	bundle.IdentityX25519Public = make([]byte, 32)

	_, err = alice.X3DHDeriveSharedSecret(bundle)
	require.Error(t, err)
}

func TestEchoesInitialDHPublicDetectsReflection(t *testing.T) {
	our := []byte("0123456789abcdef0123456789abcdef")[:32]
	require.True(t, EchoesInitialDHPublic(our, append([]byte(nil), our...)))
	other := append([]byte(nil), our...)
	other[0] ^= 1
	require.False(t, EchoesInitialDHPublic(our, other))
}
