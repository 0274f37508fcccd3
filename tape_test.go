package main

import "testing"

func TestTapePilotEdgeCount(t *testing.T) {
	tp := NewTape()
	tp.LoadBlocks([]TapeBlock{{
		Kind:             TapeBlockStandard,
		UsedBitsLastByte: 8,
		Data:             []byte{0x00, 0xAA}, // first byte 0x00 -> header pilot count
	}})
	tp.Play(0)

	edges := 0
	level := tp.EarLevel(0)
	for tstate := uint64(0); tstate < uint64(tapePilotHeader)*uint64(tapePilotTStates)+1000; tstate += 50 {
		got := tp.EarLevel(tstate)
		if got != level {
			edges++
			level = got
		}
	}
	if edges < tapePilotHeader-2 {
		t.Fatalf("expected roughly %d pilot edges, got %d", tapePilotHeader, edges)
	}
}

func TestTapeWaveformTogglesOnSchedule(t *testing.T) {
	tp := NewTape()
	tp.LoadWaveform(&TapeWaveform{InitialLevel: true, Durations: []uint32{100, 200, 300}})
	tp.Play(0)

	if got := tp.EarLevel(50); got != true {
		t.Fatalf("EarLevel(50) = %v, want true (before first transition)", got)
	}
	if got := tp.EarLevel(150); got != false {
		t.Fatalf("EarLevel(150) = %v, want false (after first transition at 100)", got)
	}
	if got := tp.EarLevel(350); got != true {
		t.Fatalf("EarLevel(350) = %v, want true (after second transition at 300)", got)
	}
}

func TestTapeDonePhaseStopsPlayback(t *testing.T) {
	tp := NewTape()
	tp.LoadWaveform(&TapeWaveform{InitialLevel: true, Durations: []uint32{10}})
	tp.Play(0)
	tp.EarLevel(20)
	if st := tp.State(); st.Playing {
		t.Fatalf("expected playback to stop after the last transition")
	}
}

func TestTapStandardRoundTrip(t *testing.T) {
	blocks := []TapeBlock{{Data: []byte{0x00, 0x01, 0x02}}}
	encoded := EncodeTAP(blocks)
	decoded, err := ParseTAPData(encoded)
	if err != nil {
		t.Fatalf("ParseTAPData: %v", err)
	}
	if len(decoded) != 1 || string(decoded[0].Data) != string(blocks[0].Data) {
		t.Fatalf("round trip mismatch: got %+v", decoded)
	}
	if decoded[0].PauseMS != 1000 {
		t.Fatalf("PauseMS = %d, want 1000", decoded[0].PauseMS)
	}
}

func TestParseTAPDataRejectsTruncation(t *testing.T) {
	if _, err := ParseTAPData([]byte{0x05, 0x00, 0x01, 0x02}); err == nil {
		t.Fatalf("expected error for truncated TAP block")
	}
}
