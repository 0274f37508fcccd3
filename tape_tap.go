// tape_tap.go - TAP file parsing/writing, and pulse-run -> TAP block
// decoding for the tape recorder's TAP output path.

package main

import (
	"encoding/binary"
	"fmt"
	"os"
)

// LoadTAP parses a .tap file into a sequence of Standard TapeBlocks, each
// a {u16 length, bytes[length]} record with a fixed 1000ms pause.
func LoadTAP(path string) ([]TapeBlock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tape: read %s: %w", path, err)
	}
	return ParseTAPData(data)
}

func ParseTAPData(data []byte) ([]TapeBlock, error) {
	var blocks []TapeBlock
	pos := 0
	for pos < len(data) {
		if pos+2 > len(data) {
			return nil, fmt.Errorf("tape: truncated TAP block length at offset %d", pos)
		}
		length := int(binary.LittleEndian.Uint16(data[pos : pos+2]))
		pos += 2
		if pos+length > len(data) {
			return nil, fmt.Errorf("tape: truncated TAP block body at offset %d (want %d bytes)", pos, length)
		}
		body := make([]byte, length)
		copy(body, data[pos:pos+length])
		pos += length

		blocks = append(blocks, TapeBlock{
			Kind:             TapeBlockStandard,
			UsedBitsLastByte: 8,
			PauseMS:          1000,
			Data:             body,
		})
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("tape: empty TAP file")
	}
	return blocks, nil
}

// EncodeTAP renders a sequence of blocks as TAP bytes (used by the tape
// recorder's TAP output path and by the convert-tape CLI command).
func EncodeTAP(blocks []TapeBlock) []byte {
	var out []byte
	for _, b := range blocks {
		var lenBuf [2]byte
		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(b.Data)))
		out = append(out, lenBuf[:]...)
		out = append(out, b.Data...)
	}
	return out
}

const (
	tapDecodePilotMinCount  = 100
	tapeDecodePilotTolerance = 0.25
	tapeDecodePilotFloorT    = 200
)

// DecodeTAPBlock implements spec.md §4.7's recorder-output TAP decoder:
// given a run of captured pulses, locate a pilot tone, derive a scale
// factor from its measured period, verify the sync pair, then decode the
// remaining pulses in pairs against scaled bit0/bit1 references.
func DecodeTAPBlock(pulses []uint32) (*TapeBlock, error) {
	pilotEnd, avgPilot, err := findPilotRun(pulses)
	if err != nil {
		return nil, err
	}

	scale := avgPilot / float64(tapePilotTStates)
	if scale < 0.5 {
		scale = 0.5
	}
	if scale > 2.0 {
		scale = 2.0
	}

	if pilotEnd+2 > len(pulses) {
		return nil, fmt.Errorf("tape: pulse run too short for sync pair")
	}
	wantSync1 := float64(tapeSync1TStates) * scale
	wantSync2 := float64(tapeSync2TStates) * scale
	if !withinTolerance(float64(pulses[pilotEnd]), wantSync1) ||
		!withinTolerance(float64(pulses[pilotEnd+1]), wantSync2) {
		return nil, fmt.Errorf("tape: sync pulses do not match scaled pilot")
	}

	dataPulses := pulses[pilotEnd+2:]
	if len(dataPulses)%2 != 0 {
		dataPulses = dataPulses[:len(dataPulses)-1]
	}

	bit0 := float64(tapeBit0TStates) * scale
	bit1 := float64(tapeBit1TStates) * scale

	var data []byte
	var curByte byte
	var bitCount int
	for i := 0; i+1 < len(dataPulses); i += 2 {
		sum := float64(dataPulses[i]) + float64(dataPulses[i+1])
		bit, ok := classifyBitPair(float64(dataPulses[i]), float64(dataPulses[i+1]), sum, bit0, bit1)
		if !ok {
			return nil, fmt.Errorf("tape: pulse pair %d matches neither bit0 nor bit1 reference", i/2)
		}
		curByte = curByte<<1 | bit
		bitCount++
		if bitCount == 8 {
			data = append(data, curByte)
			curByte = 0
			bitCount = 0
		}
	}
	usedBits := 8
	if bitCount > 0 {
		data = append(data, curByte<<(8-bitCount))
		usedBits = bitCount
	}

	return &TapeBlock{
		Kind:             TapeBlockStandard,
		UsedBitsLastByte: usedBits,
		PauseMS:          1000,
		Data:             data,
	}, nil
}

func findPilotRun(pulses []uint32) (end int, avg float64, err error) {
	lowTol, highTol := toleranceBand(float64(tapePilotTStates), tapeDecodePilotTolerance, tapeDecodePilotFloorT)
	run := 0
	var sum float64
	for i, p := range pulses {
		if float64(p) >= lowTol && float64(p) <= highTol {
			run++
			sum += float64(p)
			continue
		}
		if run >= tapDecodePilotMinCount {
			return i, sum / float64(run), nil
		}
		run = 0
		sum = 0
	}
	if run >= tapDecodePilotMinCount {
		return len(pulses), sum / float64(run), nil
	}
	return 0, 0, fmt.Errorf("tape: no pilot run of at least %d pulses found", tapDecodePilotMinCount)
}

func toleranceBand(center, fraction float64, floor float64) (low, high float64) {
	delta := center * fraction
	if delta < floor {
		delta = floor
	}
	return center - delta, center + delta
}

func withinTolerance(got, want float64) bool {
	low, high := toleranceBand(want, tapeDecodePilotTolerance, tapeDecodePilotFloorT)
	return got >= low && got <= high
}

func classifyBitPair(a, b, sum, bit0, bit1 float64) (byte, bool) {
	lowA0, highA0 := toleranceBand(bit0, tapeDecodePilotTolerance, tapeDecodePilotFloorT)
	lowA1, highA1 := toleranceBand(bit1, tapeDecodePilotTolerance, tapeDecodePilotFloorT)
	matches0 := a >= lowA0 && a <= highA0 && b >= lowA0 && b <= highA0
	matches1 := a >= lowA1 && a <= highA1 && b >= lowA1 && b <= highA1

	sumLow0, sumHigh0 := toleranceBand(2*bit0, tapeDecodePilotTolerance, 2*tapeDecodePilotFloorT)
	sumLow1, sumHigh1 := toleranceBand(2*bit1, tapeDecodePilotTolerance, 2*tapeDecodePilotFloorT)
	sumMatches0 := sum >= sumLow0 && sum <= sumHigh0
	sumMatches1 := sum >= sumLow1 && sum <= sumHigh1

	switch {
	case matches0 && sumMatches0:
		return 0, true
	case matches1 && sumMatches1:
		return 1, true
	default:
		return 0, false
	}
}
