// Package ratchet implements RatchetSession (spec §3, §4.4): the Double
// Ratchet state machine combining a root key, a sending ChainStep, a
// receiving ChainStep, replay protection, and nonce generation.
package ratchet

import "time"

// Config is RatchetConfig from spec §3: the tunables governing when a DH
// ratchet is advertised/triggered.
type Config struct {
	// DHRatchetEveryN triggers a ratchet every N sent messages.
	DHRatchetEveryN uint32
	// EnablePerMessageRatchet forces a DH ratchet on every message.
	EnablePerMessageRatchet bool
	// RatchetOnNewDHKey triggers a ratchet whenever a new peer DH key
	// arrives.
	RatchetOnNewDHKey bool
	// MaxChainAge forces a ratchet once the current epoch is this old.
	MaxChainAge time.Duration
	// MaxMessagesWithoutRatchet forces a ratchet once this many messages
	// have been sent since the last one.
	MaxMessagesWithoutRatchet uint32
}

// DefaultConfig returns the "Light" load-class configuration from spec
// §4.8's classification table, a reasonable default before any adaptive
// sampling has occurred.
func DefaultConfig() Config {
	return Config{
		DHRatchetEveryN:           5,
		EnablePerMessageRatchet:   false,
		RatchetOnNewDHKey:         true,
		MaxChainAge:               30 * time.Minute,
		MaxMessagesWithoutRatchet: 100,
	}
}

// DefaultCacheWindow and DefaultReplayWindow are the spec-documented
// defaults for ChainStep's message-key cache and the replay-protection
// window, respectively (spec §3, §4.5).
const (
	DefaultCacheWindow  = 1000
	DefaultReplayWindow = 1024
	DefaultMaxSkip      = 1000
)

// ShouldRatchet implements AdaptivePolicy's decision function from spec
// §4.8: whether a DH ratchet should be triggered given the current chain
// index, the time of the last ratchet, whether a new peer DH key was just
// observed, and the current config.
func ShouldRatchet(cfg Config, index uint32, lastRatchetTime time.Time, receivedNewDHKey bool, now time.Time) bool {
	if cfg.EnablePerMessageRatchet {
		return true
	}
	if receivedNewDHKey && cfg.RatchetOnNewDHKey {
		return true
	}
	if cfg.DHRatchetEveryN > 0 && index > 0 && index%cfg.DHRatchetEveryN == 0 {
		return true
	}
	if cfg.MaxChainAge > 0 && now.Sub(lastRatchetTime) > cfg.MaxChainAge {
		return true
	}
	if cfg.MaxMessagesWithoutRatchet > 0 && index >= cfg.MaxMessagesWithoutRatchet {
		return true
	}
	return false
}
