// tape_wav.go - WAV file parsing for tape playback input, and WAV
// writing/appending for the tape recorder's WAV output path.

package main

import (
	"encoding/binary"
	"fmt"
	"os"
)

const tapeWAVSampleRate = 44100 // fallback if the fmt chunk gives a sample rate of 0

// LoadWAV parses a mono 8 or 16-bit PCM WAV file into a TapeWaveform of
// level-transition durations, suitable for Tape.LoadWaveform.
func LoadWAV(path string) (*TapeWaveform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tape: read %s: %w", path, err)
	}
	return ParseWAVData(data)
}

func ParseWAVData(data []byte) (*TapeWaveform, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("tape: not a RIFF/WAVE file")
	}

	var sampleRate uint32
	var bitsPerSample uint16
	var channels uint16
	var samples []int

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			return nil, fmt.Errorf("tape: truncated %q chunk", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("tape: fmt chunk too short")
			}
			channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			bitsPerSample = binary.LittleEndian.Uint16(data[body+14 : body+16])
		case "data":
			samples = decodePCMSamples(data[body:body+size], bitsPerSample)
		}

		pos = body + size
		if size%2 == 1 {
			pos++ // odd-length chunks are padded
		}
	}

	if bitsPerSample != 8 && bitsPerSample != 16 {
		return nil, fmt.Errorf("tape: unsupported WAV sample width %d bits", bitsPerSample)
	}
	if channels > 1 {
		samples = downmixToMono(samples, int(channels))
	}
	if sampleRate == 0 {
		sampleRate = tapeWAVSampleRate
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("tape: WAV file has no data chunk")
	}

	return samplesToWaveform(samples, sampleRate), nil
}

func decodePCMSamples(data []byte, bitsPerSample uint16) []int {
	var out []int
	switch bitsPerSample {
	case 8:
		for _, b := range data {
			out = append(out, int(b)-128) // 8-bit PCM is unsigned, centred at 128
		}
	case 16:
		for i := 0; i+1 < len(data); i += 2 {
			out = append(out, int(int16(binary.LittleEndian.Uint16(data[i:i+2]))))
		}
	}
	return out
}

func downmixToMono(samples []int, channels int) []int {
	var out []int
	for i := 0; i+channels <= len(samples); i += channels {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += samples[i+c]
		}
		out = append(out, sum/channels)
	}
	return out
}

// samplesToWaveform turns a PCM sample stream into level-transition
// durations by thresholding at zero and measuring run lengths in T-states.
func samplesToWaveform(samples []int, sampleRate uint32) *TapeWaveform {
	tStatesPerSample := float64(tapeTStatesPerSec) / float64(sampleRate)
	initialLevel := samples[0] >= 0

	var durations []uint32
	level := initialLevel
	var accum float64
	for _, s := range samples {
		cur := s >= 0
		if cur != level {
			durations = append(durations, uint32(accum))
			accum = 0
			level = cur
		}
		accum += tStatesPerSample
	}
	if accum > 0 {
		durations = append(durations, uint32(accum))
	}

	return &TapeWaveform{InitialLevel: initialLevel, Durations: durations}
}

// EncodeWAV wraps 16-bit PCM samples (such as TapeRecorder's WAV capture)
// into mono WAV bytes at the given sample rate.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataSize := len(samples) * 2
	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2) // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:46+i*2], uint16(s))
	}
	return buf
}

// AppendWAV appends samples to an existing WAV file's data chunk, rewriting
// the RIFF and data chunk sizes. If startOffset is less than the existing
// sample count, head samples up to startOffset are preserved and the tail
// is overwritten rather than simply appended (spec.md §4.7).
func AppendWAV(existing []byte, samples []int16, startOffsetSamples int) ([]byte, error) {
	if len(existing) < 44 || string(existing[0:4]) != "RIFF" || string(existing[8:12]) != "WAVE" {
		return nil, fmt.Errorf("tape: not a RIFF/WAVE file")
	}

	dataPos := -1
	dataSize := 0
	pos := 12
	for pos+8 <= len(existing) {
		id := string(existing[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(existing[pos+4 : pos+8]))
		if id == "data" {
			dataPos = pos + 8
			dataSize = size
			break
		}
		pos += 8 + size
		if size%2 == 1 {
			pos++
		}
	}
	if dataPos < 0 {
		return nil, fmt.Errorf("tape: WAV file has no data chunk to append to")
	}

	existingSamples := dataSize / 2
	keep := startOffsetSamples
	if keep > existingSamples {
		keep = existingSamples
	}
	if keep < 0 {
		keep = 0
	}

	head := existing[dataPos : dataPos+keep*2]
	var tail []byte
	for _, s := range samples {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(s))
		tail = append(tail, b[:]...)
	}

	newData := append(append([]byte{}, head...), tail...)
	newDataSize := len(newData)

	out := make([]byte, dataPos+newDataSize)
	copy(out, existing[:dataPos])
	copy(out[dataPos:], newData)

	binary.LittleEndian.PutUint32(out[4:8], uint32(len(out)-8))
	binary.LittleEndian.PutUint32(out[dataPos-4:dataPos], uint32(newDataSize))

	return out, nil
}
