package ratchet

import (
	"encoding/binary"
	"fmt"

	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
	"github.com/ecliptix-labs/ecliptix-core/primitives"
)

var noncePrefixInfo = []byte("nonce-prefix")

// nonceState is the per-epoch nonce generator from spec §4.7: a 4-byte
// prefix derived once per epoch via HKDF-Expand(rootKey, "nonce-prefix", 4),
// concatenated with an 8-byte big-endian monotonic counter.
type nonceState struct {
	prefix  [4]byte
	counter uint64
}

// newNonceState derives a fresh nonce prefix for a new epoch from rootKey.
func newNonceState(rootKey []byte) (*nonceState, error) {
	prefix, err := primitives.HKDFExpand(rootKey, noncePrefixInfo, 4)
	if err != nil {
		return nil, ecliptixerr.New(ecliptixerr.CryptoInternal, "ratchet.newNonceState", err)
	}
	ns := &nonceState{}
	copy(ns.prefix[:], prefix)
	return ns, nil
}

// next returns the next 12-byte nonce in this epoch. The caller must have
// already forced a ratchet if the counter is at its maximum value (spec §8
// "Nonce counter at 2^64-1 triggers a forced ratchet before producing a
// message").
func (ns *nonceState) next() ([]byte, error) {
	if ns.counter == ^uint64(0) {
		return nil, ecliptixerr.New(ecliptixerr.ResourceExhausted, "ratchet.nonceState.next", fmt.Errorf("nonce counter exhausted; caller must ratchet first"))
	}
	out := make([]byte, 12)
	copy(out[:4], ns.prefix[:])
	binary.BigEndian.PutUint64(out[4:], ns.counter)
	ns.counter++
	return out, nil
}

// atMax reports whether the next call to next would exhaust the counter.
func (ns *nonceState) atMax() bool {
	return ns.counter == ^uint64(0)
}
