// config.go - optional zxcore.toml startup configuration: default model,
// ROM search paths, and audio sample rate. A host that never calls
// LoadConfig gets DefaultConfig's values.

package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config holds the handful of settings a host can fix at startup instead of
// wiring them through flags every run.
type Config struct {
	Model           string   `toml:"model"`
	ROMPaths        []string `toml:"rom_paths"`
	AudioSampleRate int      `toml:"audio_sample_rate"`
}

// DefaultConfig matches a freshly powered-on 48K machine with the
// package's standard audio rate and no extra ROM search paths.
func DefaultConfig() Config {
	return Config{
		Model:           "48k",
		AudioSampleRate: 44100,
	}
}

// LoadConfig reads a TOML file at path and overlays it onto DefaultConfig;
// a field the file omits keeps its default rather than being zeroed out.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve validates the configured fields and returns the MachineModel they
// name, so a caller building a Machine does not have to re-parse the model
// string itself.
func (c Config) Resolve() (MachineModel, error) {
	if c.AudioSampleRate <= 0 {
		return 0, fmt.Errorf("config: audio_sample_rate must be positive, got %d", c.AudioSampleRate)
	}
	return ParseMachineModel(c.Model)
}
