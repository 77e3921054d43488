package indicator

import (
	"fmt"
	"io"
	"os"

	"rotaryd/rotary"
)

// Neopixel command strings for the external neopixel tool.
const (
	neoConnectionLost = "@2 !150000 001010"
	neoNormalIdle     = "@3 !150000 400000"
	neoTurnCW         = "@1 !20000 004000"
	neoTurnCCW        = "@1 !20000 000040"
	neoPressed        = "@0 404040"
	neoClick          = "@1 !50000 8000"
	neoDblClick       = "@2 !50000 8000"
	neoLongPress      = "@2 !10000 ff"
	neoTerminated     = "@0 010101"
)

// Neopixel implements Indicator using an external neopixel tool via named pipe.
type Neopixel struct {
	pipe       io.WriteCloser
	idleString string
	lastPos    map[int]int32
}

// NewNeopixel creates a new Neopixel indicator.
func NewNeopixel(pipePath string) (*Neopixel, error) {
	f, err := os.OpenFile(pipePath, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open neopixel pipe %s: %w", pipePath, err)
	}
	return newNeopixel(f), nil
}

func newNeopixel(w io.WriteCloser) *Neopixel {
	return &Neopixel{
		pipe:       w,
		idleString: neoConnectionLost, // until the first Ready
		lastPos:    map[int]int32{},
	}
}

// Ready implements Indicator.Ready.
func (n *Neopixel) Ready() {
	n.idleString = neoNormalIdle
	n.write(n.idleString)
}

// Gesture implements Indicator.Gesture.
func (n *Neopixel) Gesture(ev Event) {
	switch ev.Gesture {
	case rotary.Turn:
		if ev.Position >= n.lastPos[ev.Channel] {
			n.write(neoTurnCW)
		} else {
			n.write(neoTurnCCW)
		}
		n.lastPos[ev.Channel] = ev.Position
	case rotary.Press:
		n.write(neoPressed)
	case rotary.Release:
		n.write(n.idleString)
	case rotary.Click:
		n.write(neoClick)
	case rotary.DblClick:
		n.write(neoDblClick)
	case rotary.LongPress:
		n.write(neoLongPress)
	}
}

// ConnectionLost implements Indicator.ConnectionLost.
func (n *Neopixel) ConnectionLost() {
	n.idleString = neoConnectionLost
	n.write(neoConnectionLost)
}

// Shutdown implements Indicator.Shutdown.
func (n *Neopixel) Shutdown() {
	n.write(neoTerminated)
}

// Release implements Indicator.Release.
func (n *Neopixel) Release() error {
	if n.pipe == nil {
		return nil
	}
	return n.pipe.Close()
}

func (n *Neopixel) write(s string) {
	if n.pipe != nil {
		n.pipe.Write([]byte(s))
	}
}
