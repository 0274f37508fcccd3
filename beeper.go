// beeper.go - ring buffer of (T-state, level) beeper events, consumer-side
// resampling and backpressure handling.

package main

import "sync"

// BeeperEvent is a single beeper/tape level transition, timestamped in
// absolute T-states. Level is the sum of the three component amplitudes
// (beeper bit, tape playback, tape record), each contributing +-1.
type BeeperEvent struct {
	TState uint64
	Level  int8
}

const (
	beeperRingSize = 8192
	cpuHz          = 3_500_000

	// Backpressure thresholds, in output samples. The spec names the three
	// tiers (max, throttle, trim) without pinning exact values; these give
	// roughly 46ms/58ms/70ms of slack at a 44.1kHz sample rate, which keeps
	// the ring (8192 events, each at most a handful of T-states apart
	// during normal beeper use) from backing up before trimming kicks in.
	beeperMaxLatencySamples      = 2048
	beeperThrottleLatencySamples = beeperMaxLatencySamples + 512
	beeperTrimLatencySamples     = beeperThrottleLatencySamples + 512

	beeperHighPassAlpha = 0.995

	// Idle reset: consumer re-baselines after this many silent samples.
	beeperIdleSamples = 512
)

// Beeper is the single-producer/single-consumer beeper audio pipeline:
// the emulation thread pushes level transitions, the host's audio callback
// pulls resampled, high-pass-filtered output.
type Beeper struct {
	mutex sync.Mutex

	ring       [beeperRingSize]BeeperEvent
	head, tail uint64 // monotonic cursors; ring index is cursor % beeperRingSize

	lastEventT uint64
	lastLevel  int8

	sampleRate      int
	cyclesPerSample float64

	playbackPosition float64 // in T-states, fractional
	xPrev, yPrev     float64

	audioEnabled bool
}

func NewBeeper(sampleRate int) *Beeper {
	b := &Beeper{
		sampleRate:      sampleRate,
		cyclesPerSample: float64(cpuHz) / float64(sampleRate),
	}
	return b
}

// SetAudioEnabled toggles whether a host audio consumer is attached. With
// no consumer, Push silently keeps the playback position caught up so the
// ring never appears backlogged.
func (b *Beeper) SetAudioEnabled(enabled bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.audioEnabled = enabled
}

// Push records a level transition at tstate. Event T-states are clamped
// monotonic: an event older than the previous one is promoted to the
// previous event's time rather than rejected.
func (b *Beeper) Push(tstate uint64, level int8) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if tstate < b.lastEventT {
		tstate = b.lastEventT
	}

	if b.head-b.tail >= beeperRingSize {
		b.tail++ // ring full: drop the oldest event
	}
	b.ring[b.head%beeperRingSize] = BeeperEvent{TState: tstate, Level: level}
	b.head++
	b.lastEventT = tstate

	if !b.audioEnabled {
		// No consumer draining the ring: keep the producer's notion of
		// playback position caught up to avoid an unbounded apparent
		// backlog once audio is re-enabled.
		caughtUp := float64(tstate) - beeperMaxLatencySamples*b.cyclesPerSample
		if caughtUp > b.playbackPosition {
			b.playbackPosition = caughtUp
			b.dropConsumedLocked()
		}
	}
}

// dropConsumedLocked advances tail past any ring events the current
// playback position has already passed, updating lastLevel to the most
// recent one consumed. Caller holds mutex.
func (b *Beeper) dropConsumedLocked() {
	for b.tail < b.head {
		e := b.ring[b.tail%beeperRingSize]
		if float64(e.TState) > b.playbackPosition {
			break
		}
		b.lastLevel = e.Level
		b.tail++
	}
}

// PullSamples fills out with resampled, high-pass-filtered beeper output,
// one sample per frame of `channels` elements, scaled to the full int16
// range (the identical value is written to every channel of the frame).
func (b *Beeper) PullSamples(out []int16, channels int) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for i := 0; i < len(out); i += channels {
		b.playbackPosition += b.cyclesPerSample
		b.dropConsumedLocked()
		b.applyBackpressureLocked()

		var x float64
		if b.tail == b.head &&
			b.playbackPosition-float64(b.lastEventT) > beeperIdleSamples*b.cyclesPerSample {
			// Long silence: re-baseline rather than let the integrator drift.
			b.xPrev = 0
			b.yPrev = 0
			x = 0
		} else {
			x = float64(b.lastLevel) / 3.0
		}

		y := x - b.xPrev + beeperHighPassAlpha*b.yPrev
		b.xPrev = x
		b.yPrev = y

		sample := int16(clampFloat(y, -1, 1) * 32767)
		for c := 0; c < channels && i+c < len(out); c++ {
			out[i+c] = sample
		}
	}
}

// applyBackpressureLocked trims the backlog once the producer has gotten
// too far ahead of the consumer. Caller holds mutex.
func (b *Beeper) applyBackpressureLocked() {
	writerCursorT := float64(b.lastEventT)
	latencySamples := (writerCursorT - b.playbackPosition) / b.cyclesPerSample
	if latencySamples > beeperThrottleLatencySamples && latencySamples > beeperTrimLatencySamples {
		b.playbackPosition = writerCursorT - beeperThrottleLatencySamples*b.cyclesPerSample
		b.dropConsumedLocked()
		b.xPrev = 0
		b.yPrev = 0
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
