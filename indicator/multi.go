package indicator

import "errors"

// Multi combines multiple Indicator implementations.
type Multi struct {
	indicators []Indicator
}

// NewMulti returns an Indicator that forwards to every one of indicators.
func NewMulti(indicators ...Indicator) *Multi {
	return &Multi{indicators: indicators}
}

// Ready implements Indicator.Ready.
func (m *Multi) Ready() {
	for _, ind := range m.indicators {
		ind.Ready()
	}
}

// Gesture implements Indicator.Gesture.
func (m *Multi) Gesture(ev Event) {
	for _, ind := range m.indicators {
		ind.Gesture(ev)
	}
}

// ConnectionLost implements Indicator.ConnectionLost.
func (m *Multi) ConnectionLost() {
	for _, ind := range m.indicators {
		ind.ConnectionLost()
	}
}

// Shutdown implements Indicator.Shutdown.
func (m *Multi) Shutdown() {
	for _, ind := range m.indicators {
		ind.Shutdown()
	}
}

// Release implements Indicator.Release.
func (m *Multi) Release() error {
	var errs []error
	for _, ind := range m.indicators {
		errs = append(errs, ind.Release())
	}
	return errors.Join(errs...)
}
