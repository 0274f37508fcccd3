// main.go - zxcore command line entry point: run, debug, convert-tape, and
// dump-snapshot subcommands, built with cobra the way oisee-z80-optimizer's
// cmd/z80opt assembles its subcommand tree inline in main().

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "zxcore",
		Short: "ZX Spectrum system emulator core",
	}

	rootCmd.AddCommand(newRunCmd(), newDebugCmd(), newConvertTapeCmd(), newDumpSnapshotCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		model      string
		romPath    string
		tapePath   string
		width      int
		height     int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a Spectrum machine in an ebiten window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := DefaultConfig()
			if configPath != "" {
				loaded, err := LoadConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if model != "" {
				cfg.Model = model
			}

			m := NewMachine(cfg.AudioSampleRate)
			resolved, err := cfg.Resolve()
			if err != nil {
				return err
			}
			m.ConfigureModel(resolved)

			if romPath == "" {
				for _, candidate := range cfg.ROMPaths {
					if _, err := os.Stat(candidate); err == nil {
						romPath = candidate
						break
					}
				}
			}
			if romPath != "" {
				if err := m.LoadROM(romPath); err != nil {
					return err
				}
			}
			if tapePath != "" {
				if err := m.LoadTape(tapePath); err != nil {
					return err
				}
			}

			w, h, override := validateResolutionOverride(width, height)
			if !override {
				w, h = ULA_FRAME_WIDTH*2, ULA_FRAME_HEIGHT*2
			}

			stopAudio, err := startOtoPlayback(m, cfg.AudioSampleRate)
			if err != nil {
				fmt.Fprintf(os.Stderr, "zxcore: audio disabled: %v\n", err)
			} else {
				defer stopAudio()
			}

			return runEbitenFrontend(m, w, h)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to zxcore.toml")
	cmd.Flags().StringVar(&model, "model", "", "machine model: 48k, 128k, +2a, +3 (overrides config)")
	cmd.Flags().StringVar(&romPath, "rom", "", "ROM image path (overrides config rom_paths)")
	cmd.Flags().StringVar(&tapePath, "tape", "", "tape image to load (.tap, .tzx, .wav)")
	cmd.Flags().IntVar(&width, "width", 0, "window width override (requires --height)")
	cmd.Flags().IntVar(&height, "height", 0, "window height override (requires --width)")
	return cmd
}

func newDebugCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "debug [snapshot]",
		Short: "Load a snapshot and drop into the interactive debugger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := ParseMachineModel(firstNonEmpty(model, "48k"))
			if err != nil {
				return err
			}
			m := NewMachine(44100)
			m.ConfigureModel(resolved)

			if len(args) == 1 {
				if err := m.LoadSnapshot(args[0]); err != nil {
					return err
				}
			}

			return RunDebuggerSession(m)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "machine model to debug as when no snapshot is given")
	return cmd
}

func newConvertTapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert-tape <input> <output>",
		Short: "Convert between tape image formats (.tap, .tzx, .wav)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convertTape(args[0], args[1])
		},
	}
	return cmd
}

func newDumpSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump-snapshot <path>",
		Short: "Print the CPU register state recorded in an SNA or Z80 snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dumpSnapshot(args[0])
		},
	}
	return cmd
}

// validateResolutionOverride accepts a window size override only when both
// dimensions are given; a lone --width or --height is rejected rather than
// silently filled in with a guessed aspect ratio.
func validateResolutionOverride(width, height int) (w, h int, ok bool) {
	if width > 0 && height > 0 {
		return width, height, true
	}
	return 0, 0, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
