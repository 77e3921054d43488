package rotary

import "strings"

// Event is a packed encoder state: bit 31 is the press state, bits 0..30 hold
// the signed position in quarter steps.
type Event uint32

const (
	pressedBit   Event = 0x80000000
	positionMask Event = 0x7fffffff
)

// PackEvent builds an Event. Positions outside 31 bits wrap.
func PackEvent(pos int32, pressed bool) Event {
	e := Event(uint32(pos)) & positionMask
	if pressed {
		e |= pressedBit
	}
	return e
}

// Position returns the sign-extended position.
func (e Event) Position() int32 {
	return int32(uint32(e)<<1) >> 1
}

// Pressed reports whether the button was down.
func (e Event) Pressed() bool {
	return e&pressedBit != 0
}

// Gesture is a bitmask selecting callback slots.
type Gesture uint8

const (
	Press     Gesture = 1 << iota // button went down
	Release                       // button went up
	Turn                          // position changed
	LongPress                     // button held past LongPressDelay
	Click                         // release not followed by a press within ClickDelay
	DblClick                      // second release of a quick press/release/press/release

	All Gesture = Press | Release | Turn | LongPress | Click | DblClick
)

var gestureNames = [...]string{"press", "release", "turn", "longpress", "click", "dblclick"}

// String returns the lower-case gesture names joined by '|'.
func (g Gesture) String() string {
	if g == 0 {
		return "none"
	}
	var names []string
	for i, name := range gestureNames {
		if g&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

// slot returns the callback slot index of a single-bit gesture.
func (g Gesture) slot() int {
	for i := range gestureNames {
		if g == 1<<i {
			return i
		}
	}
	return -1
}
