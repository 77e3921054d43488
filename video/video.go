//go:build screen

package video

import (
	"encoding/binary"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/d21d3q/framebuffer"
	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

const fontPath = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"

// Channels is the number of dial panels drawn side by side.
const Channels = 3

// ScreenSupported returns whether screen support is compiled in.
func ScreenSupported() bool {
	return true
}

// Video draws one dial per encoder channel on a 16 bpp framebuffer.
type Video struct {
	mu              sync.Mutex
	pixBuffer       []byte
	backBuffer      []byte
	rgbaImage       *image.RGBA
	width           int
	height          int
	lineLengthBytes int
	initialized     bool
}

// New opens /dev/fb0.
func New() (*Video, error) {
	v := &Video{}
	if err := v.init(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Video) init() error {
	fb, err := framebuffer.OpenFrameBuffer("/dev/fb0", os.O_RDWR)
	if err != nil {
		return fmt.Errorf("open framebuffer: %w", err)
	}

	varInfo, err := fb.VarScreenInfo()
	if err != nil {
		return fmt.Errorf("get variable screen info: %w", err)
	}
	fixedInfo, err := fb.FixScreenInfo()
	if err != nil {
		return fmt.Errorf("get fixed screen info: %w", err)
	}

	v.pixBuffer, err = fb.Pixels()
	if err != nil {
		return fmt.Errorf("get pixel data: %w", err)
	}

	v.width = int(varInfo.XRes)
	v.height = int(varInfo.YRes)
	v.lineLengthBytes = int(fixedInfo.LineLength)
	v.backBuffer = make([]byte, v.height*v.lineLengthBytes)

	slog.Info("framebuffer opened", "width", v.width, "height", v.height,
		"bpp", varInfo.BitsPerPixel, "stride", v.lineLengthBytes)

	v.rgbaImage = image.NewRGBA(image.Rect(0, 0, v.width, v.height))
	v.initialized = true

	v.clear()
	return nil
}

func (v *Video) clear() {
	for i := range v.pixBuffer {
		v.pixBuffer[i] = 0
	}
}

// update converts the RGBA image to RGB565 and copies it to the framebuffer.
func (v *Video) update() {
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			off := v.rgbaImage.PixOffset(x, y)
			px := v.rgbaImage.Pix[off : off+3 : off+3]
			pixel16 := uint16(px[0]>>3)<<11 | uint16(px[1]>>2)<<5 | uint16(px[2]>>3)
			fbIdx := y*v.lineLengthBytes + x*2
			if fbIdx+1 < len(v.backBuffer) {
				binary.LittleEndian.PutUint16(v.backBuffer[fbIdx:], pixel16)
			}
		}
	}
	copy(v.pixBuffer, v.backBuffer)
}

func loadFont(dc *gg.Context, size float64) {
	if err := dc.LoadFontFace(fontPath, size); err != nil {
		slog.Warn("video: load font", "err", err)
	}
}

func (v *Video) banner(text string, r, g, b float64) {
	dc := gg.NewContextForRGBA(v.rgbaImage)
	dc.SetRGB(r, g, b)
	dc.DrawRectangle(0, 0, float64(v.width), float64(v.height))
	dc.Fill()
	loadFont(dc, 64)
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(text, float64(v.width/2), float64(v.height/2), 0.5, 0.5)
	v.update()
}

// Ready clears the screen to empty dials.
func (v *Video) Ready() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.initialized {
		return
	}
	for ch := 0; ch < Channels; ch++ {
		v.drawPanel(ch, 0, false, "")
	}
	v.update()
}

// ConnectionLost shows a full screen banner.
func (v *Video) ConnectionLost() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.initialized {
		return
	}
	v.banner("Connection Lost", 0.5, 0.3, 0)
}

// Shutdown blanks the screen.
func (v *Video) Shutdown() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.initialized {
		return
	}
	v.clear()
}

// Dial redraws the panel of channel ch.
func (v *Video) Dial(ch int, pos int32, pressed bool, label string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.initialized {
		return
	}
	v.drawPanel(ch, pos, pressed, label)
	v.update()
}

// drawPanel renders a dial into its own image and composites it into place.
func (v *Video) drawPanel(ch int, pos int32, pressed bool, label string) {
	rect := PanelRect(ch, Channels, v.width, v.height)
	if rect.Empty() {
		return
	}
	w, h := float64(rect.Dx()), float64(rect.Dy())
	dc := gg.NewContext(rect.Dx(), rect.Dy())

	dc.SetRGB(0, 0, 0.3)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	cx, cy := w/2, h/2
	radius := min(w, h)/2 - 12
	dc.SetLineWidth(6)
	if pressed {
		dc.SetRGB(1, 0.8, 0)
	} else {
		dc.SetRGB(0.6, 0.6, 0.6)
	}
	dc.DrawCircle(cx, cy, radius)
	dc.Stroke()

	a := DialAngle(pos)
	dc.SetRGB(1, 1, 1)
	dc.DrawArc(cx, cy, radius, -math.Pi/2, a)
	dc.Stroke()

	loadFont(dc, radius/2)
	dc.DrawStringAnchored(fmt.Sprintf("%d", pos), cx, cy, 0.5, 0.5)
	if label != "" {
		loadFont(dc, 24)
		dc.SetRGB(1, 1, 0)
		dc.DrawStringAnchored(label, cx, h-20, 0.5, 0.5)
	}

	draw.Draw(v.rgbaImage, rect, dc.Image(), image.Point{}, draw.Src)
}

// Release blanks the screen and stops drawing.
func (v *Video) Release() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clear()
	v.initialized = false
	return nil
}
