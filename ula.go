// ula.go - port 0xFE decode: border event log, beeper/MIC bits, keyboard
// matrix, floating-bus sampling.

package main

import "sync"

// BorderEvent records a write to port 0xFE for later consumption by the
// video compositor. At most 65,536 are retained per frame; further writes
// within the same frame overwrite the last entry rather than growing
// without bound.
type BorderEvent struct {
	TState uint64
	Colour byte
}

const maxBorderEventsPerFrame = 65536

// ULA owns everything the real port-0xFE gate array does: border colour
// latch, the beeper/MIC output bits, the 8-row keyboard matrix, and the
// floating-bus sample path used by ports the ULA doesn't otherwise decode.
type ULA struct {
	mutex sync.Mutex

	mem        *Memory
	contention *Contention

	borderEvents []BorderEvent
	keyRows      [8]byte // active-low: bit=1 means released

	micBit bool
	earBit bool

	micHook    func(level bool, tstate uint64)
	tapeEar    func(tstate uint64) bool
	beeperHook func(level int8, tstate uint64)
}

func NewULA(mem *Memory, contention *Contention) *ULA {
	u := &ULA{mem: mem, contention: contention}
	for i := range u.keyRows {
		u.keyRows[i] = 0x1F
	}
	return u
}

// SetMICHook installs the tape recorder's transition sink. Called with
// every port 0xFE write regardless of whether the MIC bit actually
// changed; the recorder is responsible for noticing edges.
func (u *ULA) SetMICHook(hook func(level bool, tstate uint64)) {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	u.micHook = hook
}

// SetTapeEarSource installs the tape playback/recording EAR-line source.
// With no tape loaded the EAR line reads high, matching a fresh tape.
func (u *ULA) SetTapeEarSource(source func(tstate uint64) bool) {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	u.tapeEar = source
}

// SetBeeperHook installs the beeper pipeline's event sink. Called on every
// port 0xFE write with the sum of the three component amplitudes named in
// spec.md's BeeperEvent: the beeper/EAR-out bit just written, the tape
// playback EAR-in level sampled at the same T-state, and the MIC bit just
// written (the recorder's own input signal), each mapped {0 -> -1, 1 -> +1}.
func (u *ULA) SetBeeperHook(hook func(level int8, tstate uint64)) {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	u.beeperHook = hook
}

// KeyMatrixSet updates one of the 8 keyboard rows. mask has a bit set (1)
// for each of the 5 keys on that row currently held down; the matrix is
// stored active-low internally to match the wire protocol port 0xFE reads
// expect.
func (u *ULA) KeyMatrixSet(row int, mask byte) {
	if row < 0 || row >= 8 {
		return
	}
	u.mutex.Lock()
	defer u.mutex.Unlock()
	u.keyRows[row] = ^mask & 0x1F
}

// WritePort handles a write to any even port (A0 = 0): border colour,
// MIC and EAR/beeper bits, recorded with the exact intra-instruction
// T-state so the video compositor and tape recorder can order them.
func (u *ULA) WritePort(value byte, tstate uint64) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	u.micBit = value&0x08 != 0
	u.earBit = value&0x10 != 0

	if len(u.borderEvents) >= maxBorderEventsPerFrame {
		u.borderEvents[len(u.borderEvents)-1] = BorderEvent{TState: tstate, Colour: value & 0x07}
	} else {
		u.borderEvents = append(u.borderEvents, BorderEvent{TState: tstate, Colour: value & 0x07})
	}

	hook := u.micHook
	mic := u.micBit
	earOut := u.earBit
	beepHook := u.beeperHook
	earSource := u.tapeEar
	u.mutex.Unlock()

	if hook != nil {
		hook(mic, tstate)
	}
	if beepHook != nil {
		earIn := true
		if earSource != nil {
			earIn = earSource(tstate)
		}
		level := signedBit(earOut) + signedBit(earIn) + signedBit(mic)
		beepHook(level, tstate)
	}

	u.mutex.Lock()
}

func signedBit(level bool) int8 {
	if level {
		return 1
	}
	return -1
}

// ReadPort handles a read from any even port: keyboard matrix in bits 0-4,
// tape EAR in bit 6, bits 5 and 7 always high.
func (u *ULA) ReadPort(port uint16, tstate uint64) byte {
	u.mutex.Lock()
	highByte := byte(port >> 8)
	result := byte(0x1F)
	for row := 0; row < 8; row++ {
		if highByte&(1<<uint(row)) == 0 {
			result &= u.keyRows[row]
		}
	}
	earSource := u.tapeEar
	u.mutex.Unlock()

	ear := true
	if earSource != nil {
		ear = earSource(tstate)
	}

	out := result & 0x1F
	out |= 0x20
	out |= 0x80
	if ear {
		out |= 0x40
	}
	return out
}

// ConsumeBorderEvents returns the events accumulated since the last call
// and clears the log, for the video compositor to render one frame from.
func (u *ULA) ConsumeBorderEvents() []BorderEvent {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	events := u.borderEvents
	u.borderEvents = nil
	return events
}

// FloatingBus samples the byte the ULA itself is fetching from the screen
// at tstate, for reads of undecoded ports (classically 0xFF) during the
// contended display window. Outside that window, or once the requested
// scanline/column runs past the visible area, the bus floats and we
// return 0xFF as an arbitrary HiZ value.
//
// Addressing is split into 224-T-state scanlines and 8-T-state cells, with
// the low two bits of the cell-relative offset selecting pixel byte
// (0, 1) vs attribute byte (2, 3) for the *current* cell - the ULA fetches
// both bytes of a cell together before advancing.
//
// This contiguous grouping (pixel on sub 0-1, attribute on sub 2-3) is the
// one that reproduces the worked floating-bus example: sub-cycle 0 (offset
// 44) samples the pixel byte and sub-cycle 2 (offset 46) samples the
// attribute byte, matching the literal spec's own "A = 0x3C then A = 0x5A"
// result even though its prose describes an alternating pixel/attr/pixel/attr
// pattern across the four sub-cycles. Implemented against the worked
// numbers, not the prose.
func (u *ULA) FloatingBus(tstate uint64) byte {
	ph := phase(tstate)
	if ph < contentionStart || ph >= contentionEnd {
		return 0xFF
	}
	offset := ph - contentionStart
	const scanlineTStates = 224
	row := offset / scanlineTStates
	colPhase := offset % scanlineTStates
	col := colPhase / 8
	if row >= ULA_DISPLAY_HEIGHT || col >= ULA_CELLS_X {
		return 0xFF
	}

	bank := u.mem.Paging().ScreenBank
	vram := u.mem.RAMBank(int(bank))

	sub := colPhase & 3
	if sub <= 1 {
		return vram[pixelOffset(int(row), int(col))]
	}
	return vram[attrOffset(int(row), int(col))]
}
