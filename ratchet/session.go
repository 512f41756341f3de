package ratchet

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ecliptix-labs/ecliptix-core/chain"
	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
	"github.com/ecliptix-labs/ecliptix-core/primitives"
	"github.com/ecliptix-labs/ecliptix-core/secretbuf"
)

var (
	ratchetInfo  = []byte("ratchet")
	metadataInfo = []byte("metadata")
)

// State is a RatchetSession's lifecycle state (spec §4.4).
type State int

const (
	// Fresh is a session that has an initial sending DH pair but no root key
	// yet, and has not yet completed its first DH ratchet against a peer key.
	Fresh State = iota + 1
	// Established is a session with both a sending and a receiving chain.
	Established
	// Terminated is a disposed session; every operation fails.
	Terminated
)

// Role identifies which side of the handshake a session played.
type Role int

const (
	// Initiator started the handshake (computed X3DHDeriveSharedSecret).
	Initiator Role = iota + 1
	// Responder answered the handshake (computed
	// X3DHDeriveSharedSecretAsResponder).
	Responder
)

// Session is RatchetSession: the Double Ratchet state machine combining a
// root key, a sending ChainStep, a receiving ChainStep, nonce generation,
// and replay protection, all behind a single mutex (spec §3, §4.4, §5).
type Session struct {
	mu sync.Mutex

	connectID uint32
	role      Role
	state     State
	cfg       Config

	rootKey *secretbuf.Buffer

	// sendDHPriv/sendDHPub are the session's currently advertised DH key
	// pair before the first ratchet establishes a sending ChainStep (the
	// Fresh state has no chain yet but must still own a DH key pair to
	// perform it).
	sendDHPriv *secretbuf.Buffer
	sendDHPub  []byte

	sending   *chain.Step
	receiving *chain.Step

	peerDHPub []byte

	nonce       *nonceState
	metadataKey *secretbuf.Buffer
	replay      *replayWindow

	lastRatchetTime  time.Time
	sentSinceRatchet uint32
	needsAdvertise   bool
}

// Create constructs a Fresh session: it generates the initial DH key pair
// this side will advertise once a peer public key is known, per spec §4.4.
func Create(connectID uint32, role Role, cfg Config) (*Session, error) {
	priv, pub, err := primitives.GenerateX25519()
	if err != nil {
		return nil, err
	}
	sb, err := secretbuf.NewFromBytes(priv)
	if err != nil {
		return nil, err
	}
	return &Session{
		connectID:      connectID,
		role:           role,
		state:          Fresh,
		cfg:            cfg,
		sendDHPriv:     sb,
		sendDHPub:      pub,
		replay:         newReplayWindow(DefaultReplayWindow),
		needsAdvertise: true,
	}, nil
}

// InitialDHPublic returns the DH public key this side advertises in the
// handshake message before finalization, per spec §6 PubKeyExchange.
func (s *Session) InitialDHPublic() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.sendDHPub...)
}

// ConnectID returns the session's connection identifier.
func (s *Session) ConnectID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectID
}

// CurrentState returns the session's current lifecycle state.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// deriveEpoch re-derives the per-epoch nonce prefix and metadata key from
// the current root key. Called whenever the root key changes.
func (s *Session) deriveEpoch() error {
	var rk []byte
	if err := s.rootKey.View(func(p []byte) { rk = append([]byte(nil), p...) }); err != nil {
		return err
	}
	defer secretbuf.Wipe(rk)

	ns, err := newNonceState(rk)
	if err != nil {
		return err
	}
	mkBytes, err := primitives.HKDFExpand(rk, metadataInfo, 32)
	if err != nil {
		return err
	}
	mk, err := secretbuf.NewFromBytes(mkBytes)
	if err != nil {
		return err
	}

	s.nonce = ns
	if s.metadataKey != nil {
		s.metadataKey.Destroy()
	}
	s.metadataKey = mk
	return nil
}

// FinalizeChainAndDHKeys transitions a Fresh session to Established: it
// consumes the X3DH root key and the peer's ratchet initial DH public (the
// InitialDHPublicKey of the peer's PubKeyExchange, distinct from its bundle's
// signed pre-key and ephemeral), then performs the first DH ratchet to seed
// both chains, per spec §4.4.
func (s *Session) FinalizeChainAndDHKeys(rootKey []byte, peerInitialDHPublic []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Fresh {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "ratchet.Session.FinalizeChainAndDHKeys", fmt.Errorf("session is not Fresh"))
	}
	if err := primitives.ValidatePublicKey(peerInitialDHPublic); err != nil {
		return ecliptixerr.New(ecliptixerr.HandshakeRejected, "ratchet.Session.FinalizeChainAndDHKeys", err)
	}
	if bytes.Equal(s.sendDHPub, peerInitialDHPublic) {
		return ecliptixerr.New(ecliptixerr.HandshakeRejected, "ratchet.Session.FinalizeChainAndDHKeys", fmt.Errorf("peer advertised our own initial DH public key"))
	}

	rk, err := secretbuf.NewFromBytes(append([]byte(nil), rootKey...))
	if err != nil {
		return err
	}
	s.rootKey = rk

	// Step 1: first KDF call, using our existing sendDHPriv, seeds the
	// receiving chain.
	var dh1 []byte
	var dhErr error
	if viewErr := s.sendDHPriv.View(func(p []byte) {
		dh1, dhErr = primitives.X25519DH(p, peerInitialDHPublic)
	}); viewErr != nil {
		return viewErr
	}
	if dhErr != nil {
		return dhErr
	}
	defer secretbuf.Wipe(dh1)

	var newRoot1, recvChainKey []byte
	var kdfErr error
	if viewErr := s.rootKey.View(func(rkBytes []byte) {
		tempKey := primitives.HKDFExtract(rkBytes, dh1)
		defer secretbuf.Wipe(tempKey)
		var out []byte
		out, kdfErr = primitives.HKDFExpand(tempKey, ratchetInfo, 64)
		if kdfErr == nil {
			newRoot1 = out[:32]
			recvChainKey = out[32:]
		}
	}); viewErr != nil {
		return viewErr
	}
	if kdfErr != nil {
		return kdfErr
	}

	recv, err := chain.Create(chain.KindReceiver, recvChainKey, nil, nil, DefaultCacheWindow)
	secretbuf.Wipe(recvChainKey)
	if err != nil {
		secretbuf.Wipe(newRoot1)
		return err
	}
	s.receiving = recv
	s.peerDHPub = append([]byte(nil), peerInitialDHPublic...)

	newRootBuf1, err := secretbuf.NewFromBytes(newRoot1)
	if err != nil {
		return err
	}
	s.rootKey.Destroy()
	s.rootKey = newRootBuf1

	// Step 2: generate a fresh sender DH pair and run a second KDF call to
	// seed the sending chain (the "immediate dual-DH" variant, chosen so
	// both sides apply an identical, unambiguous algorithm).
	newPriv, newPub, err := primitives.GenerateX25519()
	if err != nil {
		return err
	}
	var dh2 []byte
	dh2, err = primitives.X25519DH(newPriv, peerInitialDHPublic)
	if err != nil {
		secretbuf.Wipe(newPriv)
		return err
	}
	defer secretbuf.Wipe(dh2)

	var newRoot2, sendChainKey []byte
	var kdfErr2 error
	if viewErr := s.rootKey.View(func(rkBytes []byte) {
		tempKey := primitives.HKDFExtract(rkBytes, dh2)
		defer secretbuf.Wipe(tempKey)
		var out []byte
		out, kdfErr2 = primitives.HKDFExpand(tempKey, ratchetInfo, 64)
		if kdfErr2 == nil {
			newRoot2 = out[:32]
			sendChainKey = out[32:]
		}
	}); viewErr != nil {
		secretbuf.Wipe(newPriv)
		return viewErr
	}
	if kdfErr2 != nil {
		secretbuf.Wipe(newPriv)
		return kdfErr2
	}

	send, err := chain.Create(chain.KindSender, sendChainKey, newPriv, newPub, DefaultCacheWindow)
	secretbuf.Wipe(sendChainKey)
	secretbuf.Wipe(newPriv)
	if err != nil {
		secretbuf.Wipe(newRoot2)
		return err
	}
	s.sending = send

	newRootBuf2, err := secretbuf.NewFromBytes(newRoot2)
	if err != nil {
		return err
	}
	s.rootKey.Destroy()
	s.rootKey = newRootBuf2

	s.sendDHPriv.Destroy()
	s.sendDHPriv = nil
	s.sendDHPub = newPub

	if err := s.deriveEpoch(); err != nil {
		return err
	}

	s.state = Established
	s.lastRatchetTime = time.Now()
	s.sentSinceRatchet = 0
	s.needsAdvertise = true
	return nil
}

// OutgoingMessage is the result of preparing one message to send: its
// chain index, derived message key, nonce, and whether the caller must
// include the session's current DH public key in the envelope header.
type OutgoingMessage struct {
	Index            uint32
	Key              *secretbuf.Buffer
	Nonce            []byte
	IncludeDHPublic  bool
	DHPublic         []byte
}

// PrepareNextSendMessage advances the sending chain by one message, decides
// whether this message must advertise a new DH public key, and returns the
// derived message key and nonce.
//
// A new DH key pair is advertised on the first message after finalization or
// after a receiving ratchet, and again once DHRatchetEveryN messages have
// been sent since the last rotation. No other Config field is consulted here:
// EnablePerMessageRatchet, RatchetOnNewDHKey, MaxChainAge and
// MaxMessagesWithoutRatchet affect only ShouldRatchet, which the session
// does not call.
func (s *Session) PrepareNextSendMessage() (*OutgoingMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Established {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "ratchet.Session.PrepareNextSendMessage", fmt.Errorf("session is not Established"))
	}

	if s.sentSinceRatchet >= s.cfg.DHRatchetEveryN && s.cfg.DHRatchetEveryN > 0 {
		if err := s.selfAdvertiseNewDHKey(); err != nil {
			return nil, err
		}
	}

	if s.nonce.atMax() {
		return nil, ecliptixerr.New(ecliptixerr.ResourceExhausted, "ratchet.Session.PrepareNextSendMessage", fmt.Errorf("nonce counter exhausted; peer must ratchet before further sends"))
	}

	idx := s.sending.CurrentIndex() + 1
	key, err := s.sending.GetOrDeriveKeyFor(idx)
	if err != nil {
		return nil, err
	}
	nonce, err := s.nonce.next()
	if err != nil {
		return nil, err
	}

	includeDH := s.needsAdvertise
	s.needsAdvertise = false
	s.sentSinceRatchet++

	return &OutgoingMessage{
		Index:           idx,
		Key:             key,
		Nonce:           nonce,
		IncludeDHPublic: includeDH,
		DHPublic:        append([]byte(nil), s.sending.DHPublic()...),
	}, nil
}

// selfAdvertiseNewDHKey generates a fresh DH key pair for the sending slot
// without touching the chain key or index, a lightweight courtesy refresh
// distinct from the full two-sided DH ratchet performed on receipt of a new
// peer key (see PerformReceivingRatchet).
func (s *Session) selfAdvertiseNewDHKey() error {
	newPriv, newPub, err := primitives.GenerateX25519()
	if err != nil {
		return err
	}
	if err := s.sending.ReplaceDHKeyPair(newPriv, newPub); err != nil {
		secretbuf.Wipe(newPriv)
		return err
	}
	secretbuf.Wipe(newPriv)
	s.sentSinceRatchet = 0
	s.needsAdvertise = true
	return nil
}

// PerformReceivingRatchet runs the full two-sided DH ratchet algorithm upon
// observing a new peer DH public key in an incoming envelope: it re-keys the
// receiving chain against the peer's new key using our current sending DH
// private key, then generates a fresh sending DH pair and re-keys the
// sending chain in turn, per spec §4.4. All derivation happens into local
// values; session state is only mutated once every step has succeeded, so a
// failure leaves the session unchanged.
func (s *Session) PerformReceivingRatchet(peerDHPublic []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Established {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "ratchet.Session.PerformReceivingRatchet", fmt.Errorf("session is not Established"))
	}
	if err := primitives.ValidatePublicKey(peerDHPublic); err != nil {
		return err
	}

	var curPriv []byte
	if !s.sending.DHPrivate(func(p []byte) { curPriv = append([]byte(nil), p...) }) {
		return ecliptixerr.New(ecliptixerr.CryptoInternal, "ratchet.Session.PerformReceivingRatchet", fmt.Errorf("sending chain has no DH private key"))
	}
	defer secretbuf.Wipe(curPriv)

	dh1, err := primitives.X25519DH(curPriv, peerDHPublic)
	if err != nil {
		return err
	}
	defer secretbuf.Wipe(dh1)

	var newRoot1, recvChainKey []byte
	var kdfErr error
	if viewErr := s.rootKey.View(func(rk []byte) {
		tempKey := primitives.HKDFExtract(rk, dh1)
		defer secretbuf.Wipe(tempKey)
		var out []byte
		out, kdfErr = primitives.HKDFExpand(tempKey, ratchetInfo, 64)
		if kdfErr == nil {
			newRoot1 = out[:32]
			recvChainKey = out[32:]
		}
	}); viewErr != nil {
		return viewErr
	}
	if kdfErr != nil {
		return kdfErr
	}

	newPriv, newPub, err := primitives.GenerateX25519()
	if err != nil {
		secretbuf.Wipe(newRoot1)
		secretbuf.Wipe(recvChainKey)
		return err
	}
	dh2, err := primitives.X25519DH(newPriv, peerDHPublic)
	if err != nil {
		secretbuf.Wipe(newPriv)
		secretbuf.Wipe(newRoot1)
		secretbuf.Wipe(recvChainKey)
		return err
	}
	defer secretbuf.Wipe(dh2)

	var newRoot2, sendChainKey []byte
	tempKey2 := primitives.HKDFExtract(newRoot1, dh2)
	secretbuf.Wipe(newRoot1)
	defer secretbuf.Wipe(tempKey2)
	out2, err := primitives.HKDFExpand(tempKey2, ratchetInfo, 64)
	if err != nil {
		secretbuf.Wipe(newPriv)
		secretbuf.Wipe(recvChainKey)
		return err
	}
	newRoot2 = out2[:32]
	sendChainKey = out2[32:]

	// All derivations succeeded; commit.
	if err := s.receiving.UpdateAfterDHRatchet(recvChainKey, nil, nil); err != nil {
		secretbuf.Wipe(newPriv)
		secretbuf.Wipe(newRoot2)
		secretbuf.Wipe(sendChainKey)
		secretbuf.Wipe(recvChainKey)
		return err
	}
	secretbuf.Wipe(recvChainKey)
	s.peerDHPub = append([]byte(nil), peerDHPublic...)

	if err := s.sending.UpdateAfterDHRatchet(sendChainKey, newPriv, newPub); err != nil {
		secretbuf.Wipe(newPriv)
		secretbuf.Wipe(newRoot2)
		secretbuf.Wipe(sendChainKey)
		return err
	}
	secretbuf.Wipe(sendChainKey)
	secretbuf.Wipe(newPriv)

	newRootBuf, err := secretbuf.NewFromBytes(newRoot2)
	if err != nil {
		return err
	}
	s.rootKey.Destroy()
	s.rootKey = newRootBuf

	if err := s.deriveEpoch(); err != nil {
		return err
	}
	s.replay.clear()

	s.lastRatchetTime = time.Now()
	s.sentSinceRatchet = 0
	s.needsAdvertise = true
	return nil
}

// MaybeRatchetOnReceive reports whether an incoming envelope's DH public
// key differs from the currently tracked peer key and, if so, performs the
// receiving ratchet against it. It is a no-op (returning false, nil) when
// the envelope carries no DH public key or repeats the one already in use.
func (s *Session) MaybeRatchetOnReceive(envelopeDHPublic []byte) (ratcheted bool, err error) {
	if envelopeDHPublic == nil {
		return false, nil
	}
	s.mu.Lock()
	same := s.peerDHPub != nil && bytes.Equal(s.peerDHPub, envelopeDHPublic)
	s.mu.Unlock()
	if same {
		return false, nil
	}
	if err := s.PerformReceivingRatchet(envelopeDHPublic); err != nil {
		return false, err
	}
	return true, nil
}

// CheckAndDeriveReceiveKey validates (nonce, index) against replay
// protection, derives or retrieves the message key at index on the
// receiving chain, records the (nonce, index) pair as consumed, and returns
// the key. Per spec §4.5, a key is returned to the caller exactly once: a
// repeated index, whether replayed or re-delivered, fails.
func (s *Session) CheckAndDeriveReceiveKey(nonce []byte, index uint32) (*secretbuf.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Established {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "ratchet.Session.CheckAndDeriveReceiveKey", fmt.Errorf("session is not Established"))
	}
	if !s.replay.check(nonce, index, s.receiving.CurrentIndex()) {
		return nil, ecliptixerr.New(ecliptixerr.Replay, "ratchet.Session.CheckAndDeriveReceiveKey", fmt.Errorf("index %d rejected by replay window", index))
	}

	key, err := s.receiving.GetOrDeriveKeyFor(index)
	if err != nil {
		return nil, err
	}
	s.replay.record(nonce, index)
	s.receiving.ConsumeKey(index)
	return key, nil
}

// GetMetadataEncryptionKey lends the current epoch's metadata-encryption
// key to fn.
func (s *Session) GetMetadataEncryptionKey(fn func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Established {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "ratchet.Session.GetMetadataEncryptionKey", fmt.Errorf("session is not Established"))
	}
	return s.metadataKey.View(fn)
}

// Terminate disposes of every secret the session holds and moves it to the
// Terminated state. Every subsequent operation fails.
func (s *Session) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Terminated {
		return
	}
	if s.rootKey != nil {
		s.rootKey.Destroy()
	}
	if s.sendDHPriv != nil {
		s.sendDHPriv.Destroy()
	}
	if s.metadataKey != nil {
		s.metadataKey.Destroy()
	}
	if s.sending != nil {
		s.sending.Destroy()
	}
	if s.receiving != nil {
		s.receiving.Destroy()
	}
	s.state = Terminated
}
