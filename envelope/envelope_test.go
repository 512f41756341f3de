package envelope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
	"github.com/ecliptix-labs/ecliptix-core/ratchet"
)

func rootKey() []byte {
	return []byte("envelope-test-root-key-32-bytes!")[:32]
}

func establishPair(t *testing.T) (*ratchet.Session, *ratchet.Session) {
	t.Helper()
	alice, err := ratchet.Create(1, ratchet.Initiator, ratchet.DefaultConfig())
	require.NoError(t, err)
	bob, err := ratchet.Create(1, ratchet.Responder, ratchet.DefaultConfig())
	require.NoError(t, err)

	root := rootKey()
	require.NoError(t, alice.FinalizeChainAndDHKeys(root, bob.InitialDHPublic()))
	require.NoError(t, bob.FinalizeChainAndDHKeys(root, alice.InitialDHPublic()))
	return alice, bob
}

func TestEnvelopeRoundTrip(t *testing.T) {
	alice, bob := establishPair(t)
	defer alice.Terminate()
	defer bob.Terminate()

	ad := AssociatedData([]byte("alice-identity-x25519-pub-32byt"), []byte("bob-identity-x25519-public-32by"))

	env, err := ProduceEnvelope(alice, ad, []byte("hello over the wire"))
	require.NoError(t, err)

	plaintext, err := ConsumeEnvelope(bob, ad, env)
	require.NoError(t, err)
	require.Equal(t, "hello over the wire", string(plaintext))
}

func TestEnvelopeEncodeDecodeRoundTrip(t *testing.T) {
	alice, bob := establishPair(t)
	defer alice.Terminate()
	defer bob.Terminate()

	ad := AssociatedData([]byte("alice-identity-x25519-pub-32byt"), []byte("bob-identity-x25519-public-32by"))
	env, err := ProduceEnvelope(alice, ad, []byte("encode me"))
	require.NoError(t, err)

	wire, err := env.MarshalBinary()
	require.NoError(t, err)

	var decoded SecureEnvelope
	require.NoError(t, decoded.UnmarshalBinary(wire))

	plaintext, err := ConsumeEnvelope(bob, ad, &decoded)
	require.NoError(t, err)
	require.Equal(t, "encode me", string(plaintext))
}

func TestEnvelopeTamperedTagFailsPayloadAuth(t *testing.T) {
	alice, bob := establishPair(t)
	defer alice.Terminate()
	defer bob.Terminate()

	ad := AssociatedData([]byte("alice-identity-x25519-pub-32byt"), []byte("bob-identity-x25519-public-32by"))
	env, err := ProduceEnvelope(alice, ad, []byte("tamper target"))
	require.NoError(t, err)

	tampered := append([]byte(nil), env.EncryptedPayload...)
	tampered[0] ^= 0xFF
	env.EncryptedPayload = tampered

	_, err = ConsumeEnvelope(bob, ad, env)
	require.Error(t, err)
	require.ErrorIs(t, err, ecliptixerr.ErrPayloadAuthFailed)
}

func TestEnvelopeTamperedMetadataFailsMetadataAuth(t *testing.T) {
	alice, bob := establishPair(t)
	defer alice.Terminate()
	defer bob.Terminate()

	ad := AssociatedData([]byte("alice-identity-x25519-pub-32byt"), []byte("bob-identity-x25519-public-32by"))
	env, err := ProduceEnvelope(alice, ad, []byte("tamper metadata"))
	require.NoError(t, err)

	tampered := append([]byte(nil), env.EncryptedMeta...)
	tampered[0] ^= 0xFF
	env.EncryptedMeta = tampered

	_, err = ConsumeEnvelope(bob, ad, env)
	require.Error(t, err)
	require.ErrorIs(t, err, ecliptixerr.ErrMetadataAuthFailed)
}

func TestEnvelopeReflectionAttemptRejectedAtHandshake(t *testing.T) {
	alice, err := ratchet.Create(1, ratchet.Initiator, ratchet.DefaultConfig())
	require.NoError(t, err)
	defer alice.Terminate()

	err = alice.FinalizeChainAndDHKeys(rootKey(), alice.InitialDHPublic())
	require.Error(t, err)
	require.ErrorIs(t, err, ecliptixerr.ErrHandshakeRejected)
}

func TestEnvelopeTimestampRoundTrips(t *testing.T) {
	alice, bob := establishPair(t)
	defer alice.Terminate()
	defer bob.Terminate()

	ad := AssociatedData([]byte("alice-identity-x25519-pub-32byt"), []byte("bob-identity-x25519-public-32by"))
	env, err := ProduceEnvelope(alice, ad, []byte("time"))
	require.NoError(t, err)

	wire, err := env.MarshalBinary()
	require.NoError(t, err)

	var decoded SecureEnvelope
	require.NoError(t, decoded.UnmarshalBinary(wire))
	require.WithinDuration(t, env.Timestamp, decoded.Timestamp, time.Microsecond)
}
