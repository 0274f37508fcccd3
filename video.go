// video.go - per-frame composition of the 320x288 RGBA framebuffer from
// border events and screen RAM.

package main

// pixelOffset implements the classic Spectrum address scramble for the
// pixel bitmap within a screen bank: y's bit groups interleave so that
// scanlines within one character row are not contiguous in memory.
func pixelOffset(y, xchar int) int {
	return ((y & 0xC0) << 5) | ((y & 0x07) << 8) | ((y & 0x38) << 2) | xchar
}

// attrOffset locates the attribute byte for character cell (y/8, xchar);
// attributes are laid out linearly starting at ULA_ATTR_OFFSET.
func attrOffset(y, xchar int) int {
	return ULA_ATTR_OFFSET + (y>>3)*ULA_CELLS_X + xchar
}

// parseAttribute extracts INK, PAPER, BRIGHT, and FLASH from an attribute
// byte.
func parseAttribute(attr byte) (ink, paper byte, bright, flash bool) {
	ink = attr & 0x07
	paper = (attr >> 3) & 0x07
	bright = attr&0x40 != 0
	flash = attr&0x80 != 0
	return
}

// Raster geometry: a real frame is 312 lines of 224 T-states each
// (312*224 = 69,888). The visible pixel area starts at line 64
// (contentionStart/224) and the 288-line output window keeps 48 lines of
// border above and below it.
const (
	rasterScanlineTStates = 224
	rasterLinesPerFrame   = tStatesPerFrame / rasterScanlineTStates
	pixelAreaFirstLine    = contentionStart / rasterScanlineTStates
	outputFirstLine       = pixelAreaFirstLine - ULA_BORDER_TOP
)

// Video composes one frame's worth of border events plus the current
// screen bank into an RGBA framebuffer.
type Video struct {
	mem *Memory
}

func NewVideo(mem *Memory) *Video {
	return &Video{mem: mem}
}

// RenderFrame draws the border (from events, one colour per output
// scanline) and the 256x192 pixel area (from the current screen bank),
// applying the FLASH swap when flashOn is set. events must be sorted by
// ascending TState, as guaranteed by ULA.ConsumeBorderEvents.
func (v *Video) RenderFrame(events []BorderEvent, flashOn bool) []byte {
	frame := make([]byte, ULA_FRAME_WIDTH*ULA_FRAME_HEIGHT*4)

	bank := v.mem.Paging().ScreenBank
	vram := v.mem.RAMBank(int(bank))

	var lastColour byte
	ei := 0
	colourAt := func(t uint64) byte {
		for ei < len(events) && events[ei].TState <= t {
			lastColour = events[ei].Colour
			ei++
		}
		return lastColour
	}

	for outRow := 0; outRow < ULA_FRAME_HEIGHT; outRow++ {
		rasterLine := outputFirstLine + outRow
		rowPhase := uint64(rasterLine) * rasterScanlineTStates
		borderRGB := colorRGB(colourAt(rowPhase), false)
		rowBase := outRow * ULA_FRAME_WIDTH * 4

		if rasterLine < pixelAreaFirstLine || rasterLine >= pixelAreaFirstLine+ULA_DISPLAY_HEIGHT {
			fillRow(frame, rowBase, ULA_FRAME_WIDTH, borderRGB)
			continue
		}

		screenY := rasterLine - pixelAreaFirstLine
		fillRow(frame, rowBase, ULA_BORDER_LEFT, borderRGB)
		fillRow(frame, rowBase+(ULA_FRAME_WIDTH-ULA_BORDER_RIGHT)*4, ULA_BORDER_RIGHT, borderRGB)

		for xchar := 0; xchar < ULA_CELLS_X; xchar++ {
			bitmapByte := vram[pixelOffset(screenY, xchar)]
			attr := vram[attrOffset(screenY, xchar)]
			ink, paper, bright, flash := parseAttribute(attr)
			fg, bg := ink, paper
			if flash && flashOn {
				fg, bg = bg, fg
			}
			fgRGB := colorRGB(fg, bright)
			bgRGB := colorRGB(bg, bright)

			baseX := ULA_BORDER_LEFT + xchar*8
			for bit := 7; bit >= 0; bit-- {
				px := baseX + (7 - bit)
				rgb := bgRGB
				if bitmapByte>>uint(bit)&1 != 0 {
					rgb = fgRGB
				}
				writePixel(frame, rowBase+px*4, rgb)
			}
		}
	}

	return frame
}

func colorRGB(index byte, bright bool) [3]uint8 {
	index &= 0x07
	if bright {
		return ULAColorBright[index]
	}
	return ULAColorNormal[index]
}

func writePixel(frame []byte, offset int, rgb [3]uint8) {
	frame[offset] = rgb[0]
	frame[offset+1] = rgb[1]
	frame[offset+2] = rgb[2]
	frame[offset+3] = 0xFF
}

func fillRow(frame []byte, rowOffset, count int, rgb [3]uint8) {
	for i := 0; i < count; i++ {
		writePixel(frame, rowOffset+i*4, rgb)
	}
}
