package indicator

import (
	"rotaryd/rotary"
	"rotaryd/video"
)

// Display shows one dial per channel on the framebuffer.
type Display struct {
	v *video.Video
}

// Ready implements Indicator.Ready.
func (d *Display) Ready() { d.v.Ready() }

// Gesture implements Indicator.Gesture. Timed gestures only relabel the dial.
func (d *Display) Gesture(ev Event) {
	label := ""
	switch ev.Gesture {
	case rotary.Click, rotary.DblClick, rotary.LongPress:
		label = ev.Gesture.String()
	}
	d.v.Dial(ev.Channel, ev.Position, ev.Pressed, label)
}

// ConnectionLost implements Indicator.ConnectionLost.
func (d *Display) ConnectionLost() { d.v.ConnectionLost() }

// Shutdown implements Indicator.Shutdown.
func (d *Display) Shutdown() { d.v.Shutdown() }

// Release implements Indicator.Release.
func (d *Display) Release() error { return d.v.Release() }
