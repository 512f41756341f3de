// Package adaptive implements AdaptivePolicy (spec §4.8): a message-rate
// sampler that classifies load into Light/Moderate/Heavy/Extreme and
// publishes the matching ratchet.Config for sessions to pick up.
package adaptive

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ecliptix-labs/ecliptix-core/ratchet"
)

// Class is a load classification derived from recent message-arrival rate.
type Class int

const (
	Light Class = iota
	Moderate
	Heavy
	Extreme
)

func (c Class) String() string {
	switch c {
	case Light:
		return "Light"
	case Moderate:
		return "Moderate"
	case Heavy:
		return "Heavy"
	case Extreme:
		return "Extreme"
	default:
		return "Unknown"
	}
}

// window is the span over which arrivals are retained before they age out.
const window = 60 * time.Second

// minSampleSeconds floors the denominator used to turn an arrival count into
// a messages/sec rate. A burst recorded within a single instant (or within a
// sub-second span) can't be divided by its own elapsed time without
// exaggerating the rate to infinity, so anything narrower than this is
// treated as if it had spanned exactly this long.
const minSampleSeconds = 1.0

// classify maps a messages/sec rate onto a load Class and its matching
// ratchet.Config, per spec §4.8's table.
func classify(rate float64) (Class, ratchet.Config) {
	switch {
	case rate < 10:
		return Light, ratchet.Config{
			DHRatchetEveryN:           5,
			RatchetOnNewDHKey:         true,
			MaxChainAge:               30 * time.Minute,
			MaxMessagesWithoutRatchet: 100,
		}
	case rate < 50:
		return Moderate, ratchet.Config{
			DHRatchetEveryN:           10,
			RatchetOnNewDHKey:         true,
			MaxChainAge:               45 * time.Minute,
			MaxMessagesWithoutRatchet: 200,
		}
	case rate < 200:
		return Heavy, ratchet.Config{
			DHRatchetEveryN:           25,
			RatchetOnNewDHKey:         true,
			MaxChainAge:               60 * time.Minute,
			MaxMessagesWithoutRatchet: 500,
		}
	default:
		return Extreme, ratchet.Config{
			DHRatchetEveryN:           50,
			RatchetOnNewDHKey:         true,
			MaxChainAge:               120 * time.Minute,
			MaxMessagesWithoutRatchet: 1000,
		}
	}
}

// Policy maintains a time-stamped queue of recent message arrivals and
// periodically (or on demand) reclassifies load, publishing the resulting
// ratchet.Config through an atomic snapshot so sessions can read it without
// taking a lock.
//
// Per spec §5's "timer-driven sampler" concurrency note, the sampler only
// ever touches its own arrival queue; it never re-enters session code.
type Policy struct {
	mu       sync.Mutex
	arrivals []time.Time
	now      func() time.Time

	snapshot atomic.Pointer[snapshotState]

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
}

type snapshotState struct {
	class  Class
	config ratchet.Config
}

// NewPolicy constructs a Policy starting in the Light class. now is injected
// for deterministic testing; pass time.Now in production.
func NewPolicy(now func() time.Time) *Policy {
	p := &Policy{now: now}
	class, cfg := classify(0)
	p.snapshot.Store(&snapshotState{class: class, config: cfg})
	return p
}

// RecordArrival registers one message arrival at the current time.
func (p *Policy) RecordArrival() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.arrivals = append(p.arrivals, p.now())
}

// Reclassify prunes arrivals older than the retention window, computes the
// current messages/sec rate over the surviving arrivals' own span, and
// atomically publishes the matching Class and ratchet.Config. Safe to call
// directly (on-demand) or from a periodic ticker.
//
// The rate is count divided by the span between the oldest and newest
// surviving arrival, not by the full retention window or by how long it's
// been since Reclassify was last called: a burst's density depends on how
// tightly its own arrivals are packed, not on when a caller got around to
// asking about it.
func (p *Policy) Reclassify() (Class, ratchet.Config) {
	p.mu.Lock()
	now := p.now()
	cutoff := now.Add(-window)
	i := 0
	for i < len(p.arrivals) && p.arrivals[i].Before(cutoff) {
		i++
	}
	p.arrivals = p.arrivals[i:]
	count := len(p.arrivals)
	var span time.Duration
	if count > 0 {
		span = p.arrivals[count-1].Sub(p.arrivals[0])
	}
	p.mu.Unlock()

	sampleSeconds := span.Seconds()
	if sampleSeconds < minSampleSeconds {
		sampleSeconds = minSampleSeconds
	}
	rate := float64(count) / sampleSeconds
	class, cfg := classify(rate)
	p.snapshot.Store(&snapshotState{class: class, config: cfg})
	return class, cfg
}

// Current returns the most recently published classification and config
// without touching the arrival queue or blocking on the sampler.
func (p *Policy) Current() (Class, ratchet.Config) {
	s := p.snapshot.Load()
	return s.class, s.config
}

// Start launches the periodic reclassification ticker at the given
// interval (spec §4.8 default: 10 seconds). Start is a no-op if the sampler
// is already running.
func (p *Policy) Start(interval time.Duration) {
	if p.ticker != nil {
		return
	}
	p.ticker = time.NewTicker(interval)
	p.stop = make(chan struct{})
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-p.ticker.C:
				p.Reclassify()
			case <-p.stop:
				return
			}
		}
	}()
}

// Stop cancels the sampler's ticker, per spec §5 ("the sampler timer is
// cancelled on session disposal").
func (p *Policy) Stop() {
	if p.ticker == nil {
		return
	}
	p.ticker.Stop()
	close(p.stop)
	p.wg.Wait()
	p.ticker = nil
}
