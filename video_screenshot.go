// video_screenshot.go - BMP screenshot support for the "screenshot"
// debugger command. stdlib image/png already covers PNG; BMP is the one
// raster codec only golang.org/x/image provides, so that's what this uses.

package main

import (
	"fmt"
	"image"
	"os"

	"golang.org/x/image/bmp"
)

// SaveScreenshot encodes m's current framebuffer (as last produced by
// RunFrame/PollFrameOutput) to a BMP file at path.
func SaveScreenshot(m *Machine, path string) error {
	frame := m.PollFrameOutput()
	img := &image.RGBA{
		Pix:    frame,
		Stride: ULA_FRAME_WIDTH * 4,
		Rect:   image.Rect(0, 0, ULA_FRAME_WIDTH, ULA_FRAME_HEIGHT),
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	defer f.Close()

	if err := bmp.Encode(f, img); err != nil {
		return fmt.Errorf("screenshot: encode %s: %w", path, err)
	}
	return nil
}
