package rotary

// MissedStepOffset is added to the position when a transition skips a phase.
// The direction cannot be known, so the jump flags the desynchronisation
// instead of guessing.
const MissedStepOffset = 1000000

// microPosition maps the phase levels to the 2-bit gray-code position.
// The pins are pulled up, so high means released: both high is 0, both low is 2.
func microPosition(aHigh, bHigh bool) uint32 {
	var m uint32
	if !bHigh {
		m = 1
	}
	if !aHigh {
		m ^= 3
	}
	return m
}

// stepDelta returns the position change for a move from the micro position
// held in the low two bits of last to micro. missed is set when a phase was
// skipped.
func stepDelta(last Event, micro uint32) (delta int32, missed bool) {
	switch (micro - uint32(last)) & 3 {
	case 1:
		return 1, false
	case 2:
		return MissedStepOffset, true
	case 3:
		return -1, false
	}
	return 0, false
}
