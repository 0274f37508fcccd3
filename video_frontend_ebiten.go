// video_frontend_ebiten.go - thin ebiten reference harness for the "run"
// subcommand: opens a window, blits Machine.PollFrameOutput(), and reads
// the host keyboard into KeyMatrixSet. Grounded on the teacher's
// video_backend_ebiten.go (EbitenOutput's Draw/Update/Layout shape and its
// held-key polling loop), generalised from a byte-stream MMIO emitter to
// the Spectrum's row/mask keyboard matrix. This stays a demo harness, not
// a dependency of the core: nothing outside this file and main.go imports
// ebiten.

package main

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
)

// zxKeyRow maps one of the Spectrum's 8 keyboard matrix rows onto up to 5
// ebiten keys, in bit order (bit 0 = first entry).
type zxKeyRow [5]ebiten.Key

var zxKeyMatrix = [8]zxKeyRow{
	{ebiten.KeyShiftLeft, ebiten.KeyZ, ebiten.KeyX, ebiten.KeyC, ebiten.KeyV},
	{ebiten.KeyA, ebiten.KeyS, ebiten.KeyD, ebiten.KeyF, ebiten.KeyG},
	{ebiten.KeyQ, ebiten.KeyW, ebiten.KeyE, ebiten.KeyR, ebiten.KeyT},
	{ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3, ebiten.KeyDigit4, ebiten.KeyDigit5},
	{ebiten.KeyDigit0, ebiten.KeyDigit9, ebiten.KeyDigit8, ebiten.KeyDigit7, ebiten.KeyDigit6},
	{ebiten.KeyP, ebiten.KeyO, ebiten.KeyI, ebiten.KeyU, ebiten.KeyY},
	{ebiten.KeyEnter, ebiten.KeyL, ebiten.KeyK, ebiten.KeyJ, ebiten.KeyH},
	{ebiten.KeySpace, ebiten.KeyControlLeft, ebiten.KeyM, ebiten.KeyN, ebiten.KeyB},
}

type ebitenFrontend struct {
	machine *Machine
	image   *ebiten.Image
	frame   []byte
}

func (f *ebitenFrontend) Update() error {
	for row, keys := range zxKeyMatrix {
		var mask byte
		for bit, key := range keys {
			if ebiten.IsKeyPressed(key) {
				mask |= 1 << uint(bit)
			}
		}
		f.machine.KeyMatrixSet(row, mask)
	}
	f.frame = f.machine.PollFrameOutput()
	return nil
}

func (f *ebitenFrontend) Draw(screen *ebiten.Image) {
	if f.image == nil {
		f.image = ebiten.NewImage(ULA_FRAME_WIDTH, ULA_FRAME_HEIGHT)
	}
	if f.frame != nil {
		f.image.WritePixels(f.frame)
	}
	screen.DrawImage(f.image, nil)
}

func (f *ebitenFrontend) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ULA_FRAME_WIDTH, ULA_FRAME_HEIGHT
}

// runEbitenFrontend opens a window of the given size and runs m until the
// window is closed.
func runEbitenFrontend(m *Machine, width, height int) error {
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowTitle("zxcore")
	ebiten.SetWindowResizable(true)
	if err := ebiten.RunGame(&ebitenFrontend{machine: m}); err != nil {
		return fmt.Errorf("ebiten: %w", err)
	}
	return nil
}
