package protocolsvc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ecliptix-labs/ecliptix-core/identity"
)

func establishConnection(t *testing.T, alice, bob *System) (aliceConn, bobConn uint32) {
	t.Helper()

	aliceConn, initMsg, err := alice.BeginHandshakeAsInitiator(bob.PublicBundle())
	require.NoError(t, err)

	bobConn, ackMsg, err := bob.BeginHandshakeAsResponder(initMsg, bob.PublicBundle().OneTimePreKeys[0].PreKeyID)
	require.NoError(t, err)

	require.NoError(t, alice.CompleteHandshakeAsInitiator(aliceConn, ackMsg))
	return aliceConn, bobConn
}

func TestBeginHandshakeAndRoundTrip(t *testing.T) {
	alice, err := NewSystem(2, NopLogger{})
	require.NoError(t, err)
	defer alice.Close()

	bob, err := NewSystem(2, NopLogger{})
	require.NoError(t, err)
	defer bob.Close()

	aliceConn, bobConn := establishConnection(t, alice, bob)

	ad := []byte("shared-associated-data")
	env, err := alice.Send(aliceConn, ad, []byte("hello bob"))
	require.NoError(t, err)

	plaintext, err := bob.Receive(bobConn, ad, env)
	require.NoError(t, err)
	require.Equal(t, "hello bob", string(plaintext))
}

func TestEventHandlerReceivesHandshakeEstablished(t *testing.T) {
	alice, err := NewSystem(1, NopLogger{})
	require.NoError(t, err)
	defer alice.Close()

	bob, err := NewSystem(1, NopLogger{})
	require.NoError(t, err)
	defer bob.Close()

	var aliceEvents, bobEvents []Event
	alice.OnEvent(func(ev Event) { aliceEvents = append(aliceEvents, ev) })
	bob.OnEvent(func(ev Event) { bobEvents = append(bobEvents, ev) })

	establishConnection(t, alice, bob)

	require.Len(t, aliceEvents, 1)
	require.Equal(t, EventHandshakeEstablished, aliceEvents[0].Kind)
	require.Len(t, bobEvents, 1)
	require.Equal(t, EventHandshakeEstablished, bobEvents[0].Kind)
}

func TestSendOnUnknownConnectionFails(t *testing.T) {
	alice, err := NewSystem(1, NopLogger{})
	require.NoError(t, err)
	defer alice.Close()

	_, err = alice.Send(9999, nil, []byte("x"))
	require.Error(t, err)
}

func TestTerminateRemovesSession(t *testing.T) {
	alice, err := NewSystem(1, NopLogger{})
	require.NoError(t, err)
	defer alice.Close()

	bob, err := NewSystem(1, NopLogger{})
	require.NoError(t, err)
	defer bob.Close()

	aliceConn, _ := establishConnection(t, alice, bob)

	alice.Terminate(aliceConn)
	_, err = alice.Send(aliceConn, nil, []byte("x"))
	require.Error(t, err)
}

func TestCompleteHandshakeRejectsUnknownConnection(t *testing.T) {
	alice, err := NewSystem(1, NopLogger{})
	require.NoError(t, err)
	defer alice.Close()

	err = alice.CompleteHandshakeAsInitiator(123, &identity.PubKeyExchange{})
	require.Error(t, err)
}

func TestCompleteHandshakeRejectsReflectedInitialDHPublic(t *testing.T) {
	alice, err := NewSystem(1, NopLogger{})
	require.NoError(t, err)
	defer alice.Close()

	bob, err := NewSystem(1, NopLogger{})
	require.NoError(t, err)
	defer bob.Close()

	aliceConn, initMsg, err := alice.BeginHandshakeAsInitiator(bob.PublicBundle())
	require.NoError(t, err)

	reflected := &identity.PubKeyExchange{
		State:              identity.ExchangeAck,
		Payload:            bob.PublicBundle(),
		InitialDHPublicKey: initMsg.InitialDHPublicKey,
	}
	err = alice.CompleteHandshakeAsInitiator(aliceConn, reflected)
	require.Error(t, err)
}
