// Package chain implements ChainStep (spec §3, §4.3): one direction of a
// Double Ratchet session — a symmetric KDF chain, its derived message-key
// cache, and an optional DH key slot.
package chain

import (
	"fmt"

	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
	"github.com/ecliptix-labs/ecliptix-core/primitives"
	"github.com/ecliptix-labs/ecliptix-core/secretbuf"
)

// Kind identifies which direction a Step advances.
type Kind int

const (
	// KindSender marks the sending chain.
	KindSender Kind = iota + 1
	// KindReceiver marks the receiving chain.
	KindReceiver
)

// maxIndexCeiling bounds how far ahead of CurrentIndex a single request may
// derive, per spec §4.3's "IndexTooFarAhead" edge case.
const maxIndexCeiling = 10000

var (
	msgInfo   = []byte("msg")
	chainInfo = []byte("chain")
)

// cachedKey is one retained message key, tagged with its chain index for
// pruning.
type cachedKey struct {
	index uint32
	key   *secretbuf.Buffer
}

// Step is one direction's symmetric KDF chain: the current chain key, the
// current index, an optional DH key pair/public slot, and a bounded cache
// of derived message keys (§3 ChainStep invariants).
type Step struct {
	kind         Kind
	chainKey     *secretbuf.Buffer
	currentIndex uint32
	dhPriv       *secretbuf.Buffer
	dhPub        []byte
	cacheWindow  int
	cache        []cachedKey // ordered by ascending index
}

// Create constructs a new Step. Either both dhPriv/dhPub must be non-nil or
// neither, per spec §4.3.
func Create(kind Kind, chainKey []byte, dhPriv, dhPub []byte, cacheWindow int) (*Step, error) {
	if len(chainKey) != 32 {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "chain.Create", fmt.Errorf("chain key must be 32 bytes, got %d", len(chainKey)))
	}
	if (dhPriv == nil) != (dhPub == nil) {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "chain.Create", fmt.Errorf("dhPriv and dhPub must both be present or both absent"))
	}
	if cacheWindow <= 0 {
		cacheWindow = 1000
	}

	ck, err := secretbuf.NewFromBytes(append([]byte(nil), chainKey...))
	if err != nil {
		return nil, err
	}

	s := &Step{
		kind:        kind,
		chainKey:    ck,
		cacheWindow: cacheWindow,
	}
	if dhPriv != nil {
		dp, err := secretbuf.NewFromBytes(append([]byte(nil), dhPriv...))
		if err != nil {
			ck.Destroy()
			return nil, err
		}
		s.dhPriv = dp
		s.dhPub = append([]byte(nil), dhPub...)
	}
	return s, nil
}

// Kind returns which direction this Step advances.
func (s *Step) Kind() Kind { return s.kind }

// CurrentIndex returns the chain's current, monotonically non-decreasing
// index.
func (s *Step) CurrentIndex() uint32 { return s.currentIndex }

// DHPublic returns the chain's current DH public key, if any.
func (s *Step) DHPublic() []byte { return s.dhPub }

// DHPrivate lends the chain's current DH private key to fn, if any.
func (s *Step) DHPrivate(fn func([]byte)) (ok bool) {
	if s.dhPriv == nil {
		return false
	}
	_ = s.dhPriv.View(func(p []byte) { fn(p) })
	return true
}

func (s *Step) step(ck []byte) (newCK, mk []byte, err error) {
	newCK, err = primitives.HKDFExpand(ck, chainInfo, 32)
	if err != nil {
		return nil, nil, err
	}
	mk, err = primitives.HKDFExpand(ck, msgInfo, 32)
	if err != nil {
		secretbuf.Wipe(newCK)
		return nil, nil, err
	}
	return newCK, mk, nil
}

// GetOrDeriveKeyFor returns the message key at targetIndex, deriving and
// caching every intervening key if needed. Cached hits return the same
// 32-byte key across calls (spec §8 invariant).
func (s *Step) GetOrDeriveKeyFor(targetIndex uint32) (*secretbuf.Buffer, error) {
	if k := s.lookup(targetIndex); k != nil {
		return k, nil
	}
	if targetIndex <= s.currentIndex {
		return nil, ecliptixerr.New(ecliptixerr.IndexInPast, "chain.Step.GetOrDeriveKeyFor", fmt.Errorf("index %d <= current %d and not cached", targetIndex, s.currentIndex))
	}
	if uint64(targetIndex)-uint64(s.currentIndex) > maxIndexCeiling {
		return nil, ecliptixerr.New(ecliptixerr.IndexTooFarAhead, "chain.Step.GetOrDeriveKeyFor", fmt.Errorf("index %d too far ahead of current %d", targetIndex, s.currentIndex))
	}

	var target *secretbuf.Buffer
	for idx := s.currentIndex + 1; idx <= targetIndex; idx++ {
		var ckBytes []byte
		var mkBytes []byte
		var err error
		viewErr := s.chainKey.View(func(p []byte) {
			ckBytes, mkBytes, err = s.step(p)
		})
		if viewErr != nil {
			return nil, viewErr
		}
		if err != nil {
			return nil, err
		}
		newChainKey, err := secretbuf.NewFromBytes(ckBytes)
		if err != nil {
			secretbuf.Wipe(mkBytes)
			return nil, err
		}
		s.chainKey.Destroy()
		s.chainKey = newChainKey

		mkBuf, err := secretbuf.NewFromBytes(mkBytes)
		if err != nil {
			return nil, err
		}
		s.cache = append(s.cache, cachedKey{index: idx, key: mkBuf})
		if idx == targetIndex {
			target = mkBuf
		}
	}
	s.currentIndex = targetIndex
	s.prune(targetIndex)
	if target == nil {
		// Should be unreachable given the loop above, but guards against
		// a logic regression silently returning nil.
		return nil, ecliptixerr.New(ecliptixerr.CryptoInternal, "chain.Step.GetOrDeriveKeyFor", fmt.Errorf("target key not produced"))
	}
	return target, nil
}

// SkipKeysUntil derives and caches every key up to (but not including
// consuming) targetIndex, equivalent to successive derivations without
// returning the final key to the caller.
func (s *Step) SkipKeysUntil(targetIndex uint32) error {
	if targetIndex <= s.currentIndex {
		return nil
	}
	_, err := s.GetOrDeriveKeyFor(targetIndex)
	return err
}

// UpdateAfterDHRatchet wipes the cache, installs newChainKey, resets
// CurrentIndex to 0, and optionally replaces the DH key pair (both
// components together or neither), per spec §4.3.
func (s *Step) UpdateAfterDHRatchet(newChainKey []byte, newDHPriv, newDHPub []byte) error {
	if len(newChainKey) != 32 {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "chain.Step.UpdateAfterDHRatchet", fmt.Errorf("chain key must be 32 bytes"))
	}
	if (newDHPriv == nil) != (newDHPub == nil) {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "chain.Step.UpdateAfterDHRatchet", fmt.Errorf("dhPriv and dhPub must both be present or both absent"))
	}

	ck, err := secretbuf.NewFromBytes(append([]byte(nil), newChainKey...))
	if err != nil {
		return err
	}

	var newDP *secretbuf.Buffer
	if newDHPriv != nil {
		newDP, err = secretbuf.NewFromBytes(append([]byte(nil), newDHPriv...))
		if err != nil {
			ck.Destroy()
			return err
		}
	}

	s.wipeCache()
	s.chainKey.Destroy()
	s.chainKey = ck
	s.currentIndex = 0
	if newDP != nil {
		if s.dhPriv != nil {
			s.dhPriv.Destroy()
		}
		s.dhPriv = newDP
		s.dhPub = append([]byte(nil), newDHPub...)
	}
	return nil
}

// ReplaceDHKeyPair swaps only the DH key pair advertised alongside this
// chain, leaving the chain key, current index, and cache untouched. This is
// used for a sender-side key-refresh courtesy (spec §4.8 DH advertisement
// cadence) which is not itself a cryptographic ratchet: the peer has not
// yet contributed a new DH value, so the chain's symmetric state must not
// reset.
func (s *Step) ReplaceDHKeyPair(priv, pub []byte) error {
	if len(priv) == 0 || len(pub) == 0 {
		return ecliptixerr.New(ecliptixerr.InvalidInput, "chain.Step.ReplaceDHKeyPair", fmt.Errorf("priv and pub must be non-empty"))
	}
	newPriv, err := secretbuf.NewFromBytes(append([]byte(nil), priv...))
	if err != nil {
		return err
	}
	if s.dhPriv != nil {
		s.dhPriv.Destroy()
	}
	s.dhPriv = newPriv
	s.dhPub = append([]byte(nil), pub...)
	return nil
}

// WithKey lends a read-only view of the cached key at index to fn, failing
// with UnknownKeyIndex if absent.
func (s *Step) WithKey(index uint32, fn func([]byte)) error {
	k := s.lookup(index)
	if k == nil {
		return ecliptixerr.New(ecliptixerr.UnknownKeyIndex, "chain.Step.WithKey", fmt.Errorf("no cached key at index %d", index))
	}
	return k.View(fn)
}

// ConsumeKey drops the cache bookkeeping entry at index, if present,
// returning whether it was found. It does not destroy the key itself: the
// caller already holds (or is about to receive) that same buffer and owns
// its remaining lifetime. Once consumed, an index is no longer served by
// WithKey or returned again — replay protection relies on this.
func (s *Step) ConsumeKey(index uint32) bool {
	for i, ck := range s.cache {
		if ck.index == index {
			s.cache = append(s.cache[:i], s.cache[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Step) lookup(index uint32) *secretbuf.Buffer {
	for _, ck := range s.cache {
		if ck.index == index {
			return ck.key
		}
	}
	return nil
}

// prune drops cache entries with index < currentIndex-cacheWindow+1,
// applied after insertion so the just-derived target index always survives
// even if the window would otherwise exclude it (spec §4.3 tie-break).
func (s *Step) prune(currentIndex uint32) {
	floor := int64(currentIndex) - int64(s.cacheWindow) + 1
	if floor <= 0 {
		return
	}
	kept := s.cache[:0]
	for _, ck := range s.cache {
		if int64(ck.index) >= floor || ck.index == currentIndex {
			kept = append(kept, ck)
		} else {
			ck.key.Destroy()
		}
	}
	s.cache = kept
}

func (s *Step) wipeCache() {
	for _, ck := range s.cache {
		ck.key.Destroy()
	}
	s.cache = nil
}

// Destroy wipes the chain key, DH private key, and every cached message key.
func (s *Step) Destroy() {
	if s.chainKey != nil {
		s.chainKey.Destroy()
	}
	if s.dhPriv != nil {
		s.dhPriv.Destroy()
	}
	s.wipeCache()
}
