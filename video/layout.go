package video

import (
	"errors"
	"image"
	"math"
)

// ErrScreenNotCompiled is returned by New in builds without the screen tag.
var ErrScreenNotCompiled = errors.New("video: framebuffer display needs -tags=screen")

// StepsPerTurn is the number of quarter steps drawn as one full dial turn.
const StepsPerTurn = 96

// PanelRect returns the screen area of channel ch when n channels share a
// width x height display side by side.
func PanelRect(ch, n, width, height int) image.Rectangle {
	if n <= 0 || ch < 0 || ch >= n {
		return image.Rectangle{}
	}
	w := width / n
	return image.Rect(ch*w, 0, (ch+1)*w, height)
}

// DialAngle returns the pointer angle in radians for pos, zero pointing up
// and increasing clockwise.
func DialAngle(pos int32) float64 {
	step := int(pos) % StepsPerTurn
	if step < 0 {
		step += StepsPerTurn
	}
	return 2*math.Pi*float64(step)/StepsPerTurn - math.Pi/2
}
