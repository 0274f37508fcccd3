// tape_recorder.go - captures MIC-bit transitions into pulses, and encodes
// the captured pulses as either a TAP block (by decoding the pilot/sync/data
// structure back out) or a raw WAV sample run.

package main

import "sync"

const (
	tapeRecorderBlockGapTStates = 350000 // ~0.1s: ends the active block
	tapeRecorderAutoStopTStates = 7000000 // ~2s: auto-finalises the session
	tapeWavAmplitude            = 20000
)

// TapeRecorderState mirrors spec.md's TapeRecorderState entity for host and
// debugger inspection.
type TapeRecorderState struct {
	Pulses         []uint32
	AudioSamples   []int16
	LastTransition uint64
	LastLevel      bool
	BlockActive    bool
	Recording      bool
	SessionDirty   bool
	IdleStartT     uint64
	AppendMode     bool
}

// TapeRecorder observes port-0xFE MIC writes (via ULA.SetMICHook) and turns
// level transitions into pulses, finalising a block after a long enough gap
// and the whole session after an even longer silence.
type TapeRecorder struct {
	mutex sync.Mutex

	state TapeRecorderState

	sampleRate   int
	tStatesPerSample float64
	sampleAccum  float64

	finishedBlocks [][]uint32
}

func NewTapeRecorder(sampleRate int) *TapeRecorder {
	return &TapeRecorder{
		sampleRate:       sampleRate,
		tStatesPerSample: float64(tapeTStatesPerSec) / float64(sampleRate),
	}
}

// Start begins a fresh recording session at the given starting level.
func (r *TapeRecorder) Start(level bool, tstate uint64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.state = TapeRecorderState{
		LastLevel:      level,
		LastTransition: tstate,
		Recording:      true,
	}
	r.finishedBlocks = nil
}

// Stop ends the session; any pending block is finalised.
func (r *TapeRecorder) Stop() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.finalizeActiveBlockLocked()
	r.state.Recording = false
}

// OnMICTransition is the hook installed via ULA.SetMICHook. The ULA calls it
// on every port 0xFE write; calls that repeat the current level are ignored,
// so one pulse is recorded per actual MIC edge. A gap of at least
// tapeRecorderBlockGapTStates finalises the active block and is not itself
// stored as a pulse.
func (r *TapeRecorder) OnMICTransition(level bool, tstate uint64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if !r.state.Recording || level == r.state.LastLevel {
		return
	}

	pulse := tstate - r.state.LastTransition
	if pulse >= tapeRecorderBlockGapTStates {
		r.finalizeActiveBlockLocked()
	} else if pulse > 0 {
		r.state.Pulses = append(r.state.Pulses, uint32(pulse))
	}
	if pulse > 0 {
		r.appendWAVRunLocked(uint32(pulse))
	}
	r.state.LastTransition = tstate
	r.state.LastLevel = level
	r.state.BlockActive = true
	r.state.IdleStartT = tstate
	r.state.SessionDirty = true
}

// Tick lets the recorder notice prolonged silence even when no further MIC
// writes arrive (auto-stop per spec.md §4.7); callers should invoke this
// roughly once per frame with the current T-state.
func (r *TapeRecorder) Tick(tstate uint64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if !r.state.Recording || len(r.state.Pulses) == 0 {
		return
	}
	if tstate-r.state.IdleStartT >= tapeRecorderAutoStopTStates {
		r.finalizeActiveBlockLocked()
		r.state.Recording = false
	}
}

func (r *TapeRecorder) finalizeActiveBlockLocked() {
	if !r.state.BlockActive || len(r.state.Pulses) == 0 {
		return
	}
	r.finishedBlocks = append(r.finishedBlocks, r.state.Pulses)
	r.state.Pulses = nil
	r.state.BlockActive = false
}

// appendWAVRunLocked renders one pulse as a run of 16-bit PCM samples at
// the fixed host sample rate, level encoded as +-tapeWavAmplitude.
func (r *TapeRecorder) appendWAVRunLocked(pulseTStates uint32) {
	r.sampleAccum += float64(pulseTStates) / r.tStatesPerSample
	n := int(r.sampleAccum)
	r.sampleAccum -= float64(n)

	amplitude := int16(-tapeWavAmplitude)
	if r.state.LastLevel {
		amplitude = tapeWavAmplitude
	}
	for i := 0; i < n; i++ {
		r.state.AudioSamples = append(r.state.AudioSamples, amplitude)
	}
}

// FinishedBlocks returns the pulse runs completed by block-gap detection,
// each eligible for TAP decoding via DecodeTAPBlock.
func (r *TapeRecorder) FinishedBlocks() [][]uint32 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([][]uint32, len(r.finishedBlocks))
	copy(out, r.finishedBlocks)
	return out
}

// State returns a copy of the current recorder state.
func (r *TapeRecorder) State() TapeRecorderState {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.state
}

// WAVSamples returns the accumulated PCM capture so far.
func (r *TapeRecorder) WAVSamples() []int16 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([]int16, len(r.state.AudioSamples))
	copy(out, r.state.AudioSamples)
	return out
}
