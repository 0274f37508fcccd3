// cli_tape.go - convert-tape subcommand support: format conversions between
// .tap, .tzx, and .wav tape images.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// convertTape reads inPath, converts it to outPath's format (by extension),
// and writes the result.
func convertTape(inPath, outPath string) error {
	inExt := strings.ToLower(filepath.Ext(inPath))
	outExt := strings.ToLower(filepath.Ext(outPath))

	switch {
	case (inExt == ".tap" || inExt == ".tzx") && outExt == ".tap":
		blocks, err := loadTapeBlocks(inPath, inExt)
		if err != nil {
			return err
		}
		return os.WriteFile(outPath, EncodeTAP(blocks), 0o644)

	case (inExt == ".tap" || inExt == ".tzx") && outExt == ".wav":
		blocks, err := loadTapeBlocks(inPath, inExt)
		if err != nil {
			return err
		}
		samples, sampleRate := renderBlocksToSamples(blocks)
		return os.WriteFile(outPath, EncodeWAV(samples, sampleRate), 0o644)

	case inExt == ".wav" && outExt == ".wav":
		data, err := os.ReadFile(inPath)
		if err != nil {
			return fmt.Errorf("convert-tape: read %s: %w", inPath, err)
		}
		return os.WriteFile(outPath, data, 0o644)

	default:
		return fmt.Errorf("convert-tape: unsupported conversion %s -> %s", inExt, outExt)
	}
}

func loadTapeBlocks(path, ext string) ([]TapeBlock, error) {
	if ext == ".tzx" {
		return LoadTZX(path)
	}
	return LoadTAP(path)
}

// renderBlocksToSamples plays blocks through the same Tape state machine
// the Machine uses, sampling EarLevel at the given output rate. Blocks
// carrying only raw pulses or bit samples (TZX pulse-sequence or direct
// recording) still play back correctly: Tape's playback state machine
// handles every TapeBlockKind, this just samples its EAR output.
func renderBlocksToSamples(blocks []TapeBlock) ([]int16, int) {
	const sampleRate = 44100
	if len(blocks) == 0 {
		return nil, sampleRate
	}
	tape := NewTape()
	tape.LoadBlocks(blocks)
	tape.Play(0)

	var samples []int16
	const tStatesPerSample = tapeTStatesPerSec / sampleRate
	var tstate uint64
	for tape.State().Playing {
		level := tape.EarLevel(tstate)
		if level {
			samples = append(samples, 16384)
		} else {
			samples = append(samples, -16384)
		}
		tstate += tStatesPerSample
	}
	return samples, sampleRate
}
