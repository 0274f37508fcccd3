// audio_frontend_oto.go - oto v3 audio output for the "run" subcommand,
// pulling mixed beeper+AY samples from Machine.AudioPull. Grounded on the
// teacher's audio_backend_oto.go OtoPlayer, generalised from its
// SoundChip-ring-buffer Read() implementation (io.Reader driven by oto's
// player goroutine) to calling AudioPull directly instead of draining a
// separate ring buffer.

package main

import (
	"github.com/ebitengine/oto/v3"
)

const otoChannels = 2

// otoAudioSource implements io.Reader for oto.NewPlayer, converting
// int16 samples pulled from a Machine into the little-endian byte stream
// oto expects.
type otoAudioSource struct {
	machine *Machine
	scratch []int16
}

func (s *otoAudioSource) Read(p []byte) (int, error) {
	frames := len(p) / (2 * otoChannels)
	if frames == 0 {
		return 0, nil
	}
	need := frames * otoChannels
	if cap(s.scratch) < need {
		s.scratch = make([]int16, need)
	}
	samples := s.scratch[:need]
	s.machine.AudioPull(samples, otoChannels)

	for i, v := range samples {
		p[2*i] = byte(uint16(v))
		p[2*i+1] = byte(uint16(v) >> 8)
	}
	return need * 2, nil
}

// startOtoPlayback opens an oto context at m's configured sample rate and
// starts a player pulling from m.AudioPull continuously. The returned
// stop func closes the context.
func startOtoPlayback(m *Machine, sampleRate int) (stop func(), err error) {
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: otoChannels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, err
	}
	<-ready

	player := ctx.NewPlayer(&otoAudioSource{machine: m})
	player.Play()
	return func() { player.Close() }, nil
}
