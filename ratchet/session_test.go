package ratchet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
)

func sharedRootKey() []byte {
	return []byte("root-key-32-bytes-aaaaaaaaaaaaaa")[:32]
}

// establishPair builds an Initiator and a Responder session sharing the same
// X3DH root key, each finalized against the other's initial DH public key,
// mirroring how identity.X3DHDeriveSharedSecret/AsResponder feed
// FinalizeChainAndDHKeys in practice.
func establishPair(t *testing.T) (*Session, *Session) {
	t.Helper()

	alice, err := Create(1, Initiator, Config{DHRatchetEveryN: 3, RatchetOnNewDHKey: true, MaxChainAge: time.Hour, MaxMessagesWithoutRatchet: 1000})
	require.NoError(t, err)
	bob, err := Create(1, Responder, Config{DHRatchetEveryN: 3, RatchetOnNewDHKey: true, MaxChainAge: time.Hour, MaxMessagesWithoutRatchet: 1000})
	require.NoError(t, err)

	root := sharedRootKey()
	require.NoError(t, alice.FinalizeChainAndDHKeys(root, bob.InitialDHPublic()))
	require.NoError(t, bob.FinalizeChainAndDHKeys(root, alice.InitialDHPublic()))

	return alice, bob
}

func TestHandshakeAndRoundTrip(t *testing.T) {
	alice, bob := establishPair(t)
	defer alice.Terminate()
	defer bob.Terminate()

	out, err := alice.PrepareNextSendMessage()
	require.NoError(t, err)
	require.True(t, out.IncludeDHPublic)

	if out.IncludeDHPublic {
		_, err := bob.MaybeRatchetOnReceive(out.DHPublic)
		require.NoError(t, err)
	}

	recvKey, err := bob.CheckAndDeriveReceiveKey(out.Nonce, out.Index)
	require.NoError(t, err)

	require.True(t, out.Key.Equal(recvKey))
}

func TestOutOfOrderWithinWindow(t *testing.T) {
	alice, bob := establishPair(t)
	defer alice.Terminate()
	defer bob.Terminate()

	var sent []*OutgoingMessage
	for i := 0; i < 3; i++ {
		out, err := alice.PrepareNextSendMessage()
		require.NoError(t, err)
		sent = append(sent, out)
	}

	// Deliver out of order: 3, 1, 2.
	order := []int{2, 0, 1}
	for _, i := range order {
		out := sent[i]
		if out.IncludeDHPublic {
			_, err := bob.MaybeRatchetOnReceive(out.DHPublic)
			require.NoError(t, err)
		}
		key, err := bob.CheckAndDeriveReceiveKey(out.Nonce, out.Index)
		require.NoError(t, err)
		require.True(t, out.Key.Equal(key))
	}
}

func TestDuplicateDeliveryRejected(t *testing.T) {
	alice, bob := establishPair(t)
	defer alice.Terminate()
	defer bob.Terminate()

	out, err := alice.PrepareNextSendMessage()
	require.NoError(t, err)
	if out.IncludeDHPublic {
		_, err := bob.MaybeRatchetOnReceive(out.DHPublic)
		require.NoError(t, err)
	}

	_, err = bob.CheckAndDeriveReceiveKey(out.Nonce, out.Index)
	require.NoError(t, err)

	_, err = bob.CheckAndDeriveReceiveKey(out.Nonce, out.Index)
	require.Error(t, err)
	require.ErrorIs(t, err, ecliptixerr.ErrReplay)
}

func TestDHRatchetAdvertisementCadence(t *testing.T) {
	alice, err := Create(1, Initiator, Config{DHRatchetEveryN: 3, MaxChainAge: time.Hour, MaxMessagesWithoutRatchet: 1000})
	require.NoError(t, err)
	bob, err := Create(1, Responder, Config{DHRatchetEveryN: 3, MaxChainAge: time.Hour, MaxMessagesWithoutRatchet: 1000})
	require.NoError(t, err)
	defer alice.Terminate()
	defer bob.Terminate()

	root := sharedRootKey()
	require.NoError(t, alice.FinalizeChainAndDHKeys(root, bob.InitialDHPublic()))
	require.NoError(t, bob.FinalizeChainAndDHKeys(root, alice.InitialDHPublic()))

	env1, err := alice.PrepareNextSendMessage()
	require.NoError(t, err)
	require.True(t, env1.IncludeDHPublic)

	env2, err := alice.PrepareNextSendMessage()
	require.NoError(t, err)
	require.False(t, env2.IncludeDHPublic)

	env3, err := alice.PrepareNextSendMessage()
	require.NoError(t, err)
	require.False(t, env3.IncludeDHPublic)

	env4, err := alice.PrepareNextSendMessage()
	require.NoError(t, err)
	require.True(t, env4.IncludeDHPublic)
	require.NotEqual(t, env1.DHPublic, env4.DHPublic)
}

func TestReceiveKeyMatchesSenderKey(t *testing.T) {
	// CheckAndDeriveReceiveKey only derives the key; AEAD tag verification
	// (and so tamper detection) happens in the envelope layer using the
	// returned key. Here we confirm that the key the receiver derives for an
	// index equals the key the sender used for it.
	alice, bob := establishPair(t)
	defer alice.Terminate()
	defer bob.Terminate()

	out, err := alice.PrepareNextSendMessage()
	require.NoError(t, err)
	if out.IncludeDHPublic {
		_, err := bob.MaybeRatchetOnReceive(out.DHPublic)
		require.NoError(t, err)
	}

	key, err := bob.CheckAndDeriveReceiveKey(out.Nonce, out.Index)
	require.NoError(t, err)
	require.True(t, out.Key.Equal(key))
}

func TestReflectionAttemptRejected(t *testing.T) {
	alice, err := Create(1, Initiator, DefaultConfig())
	require.NoError(t, err)
	defer alice.Terminate()

	err = alice.FinalizeChainAndDHKeys(sharedRootKey(), alice.InitialDHPublic())
	require.Error(t, err)
	require.ErrorIs(t, err, ecliptixerr.ErrHandshakeRejected)
}

func TestPerformReceivingRatchetResetsSendingChainIndex(t *testing.T) {
	alice, bob := establishPair(t)
	defer alice.Terminate()
	defer bob.Terminate()

	for i := 0; i < 3; i++ {
		_, err := alice.PrepareNextSendMessage()
		require.NoError(t, err)
	}

	out, err := bob.PrepareNextSendMessage()
	require.NoError(t, err)
	require.True(t, out.IncludeDHPublic)

	ratcheted, err := alice.MaybeRatchetOnReceive(out.DHPublic)
	require.NoError(t, err)
	require.True(t, ratcheted)

	next, err := alice.PrepareNextSendMessage()
	require.NoError(t, err)
	require.EqualValues(t, 1, next.Index)
}
