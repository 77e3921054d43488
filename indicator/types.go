package indicator

import "rotaryd/rotary"

// Event is one gesture as shown by an indicator.
type Event struct {
	Channel  int
	Gesture  rotary.Gesture
	Position int32
	Pressed  bool
}
