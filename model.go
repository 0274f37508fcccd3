// model.go - ZX Spectrum hardware model identifiers shared across memory,
// contention, ULA and AY wiring.

package main

import (
	"fmt"
	"strings"
)

// MachineModel identifies which Spectrum variant a Machine is configured as.
// It governs paging hardware presence, contention tables, and AY fitment.
type MachineModel byte

const (
	Model48K MachineModel = iota
	Model128K
	ModelPlus2A
	ModelPlus3
)

func (m MachineModel) String() string {
	switch m {
	case Model48K:
		return "48K"
	case Model128K:
		return "128K"
	case ModelPlus2A:
		return "+2A"
	case ModelPlus3:
		return "+3"
	default:
		return "unknown"
	}
}

// ParseMachineModel parses the model names a config file or CLI flag would
// use ("48k", "128k", "+2a", "+3"), case-insensitively.
func ParseMachineModel(name string) (MachineModel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "48k":
		return Model48K, nil
	case "128k":
		return Model128K, nil
	case "+2a", "plus2a":
		return ModelPlus2A, nil
	case "+3", "plus3":
		return ModelPlus3, nil
	default:
		return 0, fmt.Errorf("model: unrecognised model %q", name)
	}
}

// HasPaging reports whether this model has 128-family paging hardware wired
// to ports 0x7FFD/0x1FFD at all (48K machines have neither latch).
func (m MachineModel) HasPaging() bool {
	return m != Model48K
}

// HasSpecialPaging reports whether 0x1FFD exists on this model (+2A/+3 only;
// plain 128K only has 0x7FFD).
func (m MachineModel) HasSpecialPaging() bool {
	return m == ModelPlus2A || m == ModelPlus3
}

// HasAY reports whether this model has an AY-3-8912 fitted. All 128-family
// machines do; the 48K did not (ignoring third-party AY add-ons, which are
// out of scope).
func (m MachineModel) HasAY() bool {
	return m != Model48K
}

// ROMBanksExpected reports how many 16KB ROM banks load_rom should expect
// for this model: one (48K BASIC only), two (128K editor + 48K BASIC), or
// four (+2A/+3, which add the editor's 64 KiB split across four banks).
func (m MachineModel) ROMBanksExpected() int {
	switch m {
	case Model48K:
		return 1
	case Model128K:
		return 2
	default:
		return 4
	}
}
