package adaptive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ecliptix-labs/ecliptix-core/ratchet"
)

// clock is a manually-advanced time source for deterministic sampling tests.
type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestNewPolicyStartsLight(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	p := NewPolicy(c.now)
	class, cfg := p.Current()
	require.Equal(t, Light, class)
	require.Equal(t, uint32(5), cfg.DHRatchetEveryN)
}

func TestReclassifyTransitionsAcrossLoadClasses(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	p := NewPolicy(c.now)

	for i := 0; i < 5; i++ {
		p.RecordArrival()
	}
	class, cfg := p.Reclassify()
	require.Equal(t, Light, class)
	require.Equal(t, uint32(5), cfg.DHRatchetEveryN)

	for i := 0; i < 20; i++ {
		p.RecordArrival()
	}
	class, cfg = p.Reclassify()
	require.Equal(t, Moderate, class)
	require.Equal(t, uint32(10), cfg.DHRatchetEveryN)

	for i := 0; i < 100; i++ {
		p.RecordArrival()
	}
	class, cfg = p.Reclassify()
	require.Equal(t, Heavy, class)
	require.Equal(t, uint32(25), cfg.DHRatchetEveryN)

	for i := 0; i < 500; i++ {
		p.RecordArrival()
	}
	class, cfg = p.Reclassify()
	require.Equal(t, Extreme, class)
	require.Equal(t, uint32(50), cfg.DHRatchetEveryN)
}

func TestOldArrivalsAgeOutOfWindow(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	p := NewPolicy(c.now)

	for i := 0; i < 3000; i++ {
		p.RecordArrival()
	}
	class, _ := p.Reclassify()
	require.Equal(t, Extreme, class)

	c.advance(61 * time.Second)
	class, cfg := p.Reclassify()
	require.Equal(t, Light, class)
	require.Equal(t, uint32(5), cfg.DHRatchetEveryN)
}

// TestAdaptiveClassificationScenario records 300 arrivals in a single burst
// and reclassifies 10 seconds later: the rate is taken over the burst's own
// span (floored at 1s), so 300 msg/s classifies Extreme (dhRatchetEveryN=50)
// regardless of the 10 seconds that passed afterwards, and a
// ratchet previously scheduled for message index 10 under the old Light
// config (dhRatchetEveryN=5, which 10 % 5 == 0 would have triggered) no
// longer fires once the new config is in effect.
func TestAdaptiveClassificationScenario(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	p := NewPolicy(c.now)

	for i := 0; i < 300; i++ {
		p.RecordArrival()
	}
	c.advance(10 * time.Second)
	class, cfg := p.Reclassify()
	require.Equal(t, Extreme, class)
	require.Equal(t, uint32(50), cfg.DHRatchetEveryN)

	now := c.now()
	require.False(t, ratchet.ShouldRatchet(cfg, 10, now, false, now))
}

func TestStartAndStopRunSamplerWithoutPanicking(t *testing.T) {
	p := NewPolicy(time.Now)
	p.Start(5 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	p.Stop()

	class, _ := p.Current()
	require.Equal(t, Light, class)
}
