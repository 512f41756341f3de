// Package protocolsvc assembles identity, X3DH, and the Double Ratchet into
// a single ProtocolSystem facade: begin a handshake, produce and consume
// envelopes, and react to ratchet/adaptive-policy events, all under one
// connection identity.
package protocolsvc

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ecliptix-labs/ecliptix-core/adaptive"
	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
	"github.com/ecliptix-labs/ecliptix-core/envelope"
	"github.com/ecliptix-labs/ecliptix-core/identity"
	"github.com/ecliptix-labs/ecliptix-core/ratchet"
	"github.com/ecliptix-labs/ecliptix-core/secretbuf"
)

// EventKind identifies a notable lifecycle event a System reports to its
// installed handler, per spec §5's "event-handler install" mutating
// operation.
type EventKind int

const (
	// EventHandshakeEstablished fires once FinalizeChainAndDHKeys succeeds.
	EventHandshakeEstablished EventKind = iota + 1
	// EventDHRatchet fires whenever a full two-sided DH ratchet runs.
	EventDHRatchet
	// EventLoadClassChanged names a change of the adaptive policy's load
	// class. System does not emit it: the sampler reclassifies on its own
	// ticker and no System operation compares or reports the class.
	EventLoadClassChanged
)

// Event is one notification delivered to a System's EventHandler.
type Event struct {
	Kind      EventKind
	ConnectID uint32
	LoadClass adaptive.Class
}

// EventHandler receives Events from a System. Installing nil disables
// notifications.
type EventHandler func(Event)

// System is ProtocolSystem: the top-level facade over one party's identity,
// its connections' ratchet sessions, and the shared adaptive policy that
// governs their ratchet cadence.
type System struct {
	mu sync.Mutex

	keys   *identity.Keys
	log    Logger
	policy *adaptive.Policy

	sessions     map[uint32]*ratchet.Session
	pending      map[uint32]*ratchet.Session  // Fresh sessions awaiting the peer's Ack
	pendingRoots map[uint32]*secretbuf.Buffer // X3DH root keys awaiting finalization
	handler      EventHandler
}

// NewSystem constructs a System around a freshly generated identity with
// oneTimeCount one-time pre-keys, starting the adaptive sampler on a
// 10-second cadence per spec §4.8.
func NewSystem(oneTimeCount int, log Logger) (*System, error) {
	if log == nil {
		log = NopLogger{}
	}
	keys, err := identity.Generate(oneTimeCount)
	if err != nil {
		return nil, err
	}
	s := &System{
		keys:         keys,
		log:          log,
		policy:       adaptive.NewPolicy(time.Now),
		sessions:     make(map[uint32]*ratchet.Session),
		pending:      make(map[uint32]*ratchet.Session),
		pendingRoots: make(map[uint32]*secretbuf.Buffer),
	}
	s.policy.Start(10 * time.Second)
	log.Infof("protocol system initialized with %d one-time pre-keys", oneTimeCount)
	return s, nil
}

// OnEvent installs handler as the System's event notification sink,
// replacing any previously installed handler.
func (s *System) OnEvent(handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

func (s *System) notify(ev Event) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

// PublicBundle returns the bundle this system's identity currently
// advertises, for publication to peers.
func (s *System) PublicBundle() identity.PublicBundle {
	return s.keys.CreatePublicBundle()
}

// newConnectID allocates a connection id from the first four bytes of a
// fresh random UUID (read big-endian), cheap and collision-resistant enough for in-process session keys.
func newConnectID() uint32 {
	id := uuid.New()
	return uint32(id[0])<<24 | uint32(id[1])<<16 | uint32(id[2])<<8 | uint32(id[3])
}

// BeginHandshakeAsInitiator runs X3DH against peer's published bundle and
// creates a Fresh ratchet session, but cannot finalize it yet: the
// session's first DH ratchet step needs the responder's own ratchet initial
// DH public key (PubKeyExchange.initialDhPublicKey), which only arrives in
// the Ack. The returned PubKeyExchange is the Init message the caller must
// deliver to the peer; CompleteHandshakeAsInitiator finishes the handshake
// once the matching Ack comes back.
func (s *System) BeginHandshakeAsInitiator(peer identity.PublicBundle) (connectID uint32, initMsg *identity.PubKeyExchange, err error) {
	root, err := s.keys.X3DHDeriveSharedSecret(peer)
	if err != nil {
		s.log.Errorf("x3dh initiator handshake failed: %v", err)
		return 0, nil, err
	}

	id := newConnectID()
	_, cfg := s.policy.Current()
	sess, err := ratchet.Create(id, ratchet.Initiator, cfg)
	if err != nil {
		root.Destroy()
		return 0, nil, err
	}

	s.mu.Lock()
	s.pending[id] = sess
	s.pendingRoots[id] = root
	s.mu.Unlock()

	s.log.Infof("connection %d: initiator handshake started, awaiting ack", id)
	return id, &identity.PubKeyExchange{
		State:              identity.ExchangeInit,
		Payload:            s.PublicBundle(),
		InitialDHPublicKey: sess.InitialDHPublic(),
	}, nil
}

// CompleteHandshakeAsInitiator finalizes the session opened by
// BeginHandshakeAsInitiator for connectID once the responder's Ack arrives,
// rejecting a reflected initial DH public per spec §7/§8 scenario 5.
func (s *System) CompleteHandshakeAsInitiator(connectID uint32, ack *identity.PubKeyExchange) error {
	s.mu.Lock()
	sess, ok := s.pending[connectID]
	root := s.pendingRoots[connectID]
	s.mu.Unlock()
	if !ok {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "protocolsvc.System.CompleteHandshakeAsInitiator", fmt.Errorf("no pending handshake for connection %d", connectID))
	}

	if identity.EchoesInitialDHPublic(sess.InitialDHPublic(), ack.InitialDHPublicKey) {
		return ecliptixerr.New(ecliptixerr.HandshakeRejected, "protocolsvc.System.CompleteHandshakeAsInitiator", fmt.Errorf("ack reflects our own initial DH public key"))
	}

	var rootBytes []byte
	if err := root.View(func(p []byte) { rootBytes = append([]byte(nil), p...) }); err != nil {
		return err
	}

	if err := sess.FinalizeChainAndDHKeys(rootBytes, ack.InitialDHPublicKey); err != nil {
		s.log.Errorf("connection %d: finalize failed: %v", connectID, err)
		return err
	}
	root.Destroy()

	s.mu.Lock()
	delete(s.pending, connectID)
	delete(s.pendingRoots, connectID)
	s.sessions[connectID] = sess
	s.mu.Unlock()

	s.log.Infof("connection %d established as initiator", connectID)
	s.notify(Event{Kind: EventHandshakeEstablished, ConnectID: connectID})
	return nil
}

// BeginHandshakeAsResponder runs X3DH's responder-side derivation against
// init's bundle and ratchet initial DH public key, finalizes a new session
// immediately (the responder has everything it needs in the Init message),
// and returns its connection id plus the Ack the caller must send back.
func (s *System) BeginHandshakeAsResponder(init *identity.PubKeyExchange, usedOTKID uint32) (connectID uint32, ackMsg *identity.PubKeyExchange, err error) {
	initiatorEphemeral := init.Payload.EphemeralX25519Public
	root, err := s.keys.X3DHDeriveSharedSecretAsResponder(init.Payload, initiatorEphemeral, usedOTKID)
	if err != nil {
		s.log.Errorf("x3dh responder handshake failed: %v", err)
		return 0, nil, err
	}

	id := newConnectID()
	_, cfg := s.policy.Current()
	sess, err := ratchet.Create(id, ratchet.Responder, cfg)
	if err != nil {
		root.Destroy()
		return 0, nil, err
	}

	var rootBytes []byte
	if err := root.View(func(p []byte) { rootBytes = append([]byte(nil), p...) }); err != nil {
		root.Destroy()
		sess.Terminate()
		return 0, nil, err
	}
	root.Destroy()

	if err := sess.FinalizeChainAndDHKeys(rootBytes, init.InitialDHPublicKey); err != nil {
		sess.Terminate()
		return 0, nil, err
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.log.Infof("connection %d established as responder", id)
	s.notify(Event{Kind: EventHandshakeEstablished, ConnectID: id})
	return id, &identity.PubKeyExchange{
		State:              identity.ExchangeAck,
		Payload:            s.PublicBundle(),
		InitialDHPublicKey: sess.InitialDHPublic(),
	}, nil
}

// Send encrypts plaintext for the session named by connectID and returns the
// wire envelope. It emits no event, including when the envelope advertises a
// new DH public key.
func (s *System) Send(connectID uint32, ad, plaintext []byte) (*envelope.SecureEnvelope, error) {
	sess, err := s.session(connectID)
	if err != nil {
		return nil, err
	}
	s.policy.RecordArrival()

	env, err := envelope.ProduceEnvelope(sess, ad, plaintext)
	if err != nil {
		s.log.Errorf("connection %d: produce envelope failed: %v", connectID, err)
		return nil, err
	}
	return env, nil
}

// Receive decrypts env against the session named by connectID, reporting a
// DH-ratchet event if consuming it triggered one.
func (s *System) Receive(connectID uint32, ad []byte, env *envelope.SecureEnvelope) ([]byte, error) {
	sess, err := s.session(connectID)
	if err != nil {
		return nil, err
	}
	s.policy.RecordArrival()

	before := sess.CurrentState()
	plaintext, err := envelope.ConsumeEnvelope(sess, ad, env)
	if err != nil {
		s.log.Errorf("connection %d: consume envelope failed: %v", connectID, err)
		return nil, err
	}
	if before == ratchet.Established && env.DHPublic != nil {
		s.notify(Event{Kind: EventDHRatchet, ConnectID: connectID})
	}
	return plaintext, nil
}

// Terminate disposes of the session named by connectID, if any, and removes
// it from the System.
func (s *System) Terminate(connectID uint32) {
	s.mu.Lock()
	sess, ok := s.sessions[connectID]
	delete(s.sessions, connectID)
	s.mu.Unlock()
	if ok {
		sess.Terminate()
	}
}

// Close stops the adaptive sampler and disposes of every identity secret and
// open session. The System must not be used afterward.
func (s *System) Close() {
	s.policy.Stop()
	s.mu.Lock()
	sessions := s.sessions
	pending := s.pending
	roots := s.pendingRoots
	s.sessions = nil
	s.pending = nil
	s.pendingRoots = nil
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.Terminate()
	}
	for _, sess := range pending {
		sess.Terminate()
	}
	for _, root := range roots {
		root.Destroy()
	}
	s.keys.Destroy()
}

func (s *System) session(connectID uint32) (*ratchet.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[connectID]
	if !ok {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "protocolsvc.System.session", fmt.Errorf("unknown connection id %d", connectID))
	}
	return sess, nil
}
