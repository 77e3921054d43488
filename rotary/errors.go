package rotary

// Error is a stable, comparable driver error code.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrInvalidChannel is returned for channel ids outside 0..ChannelCount-1.
	ErrInvalidChannel Error = "invalid_channel"
	// ErrAlreadyConfigured is returned by Setup when the open channel could not
	// be closed first. The caller should retry Close.
	ErrAlreadyConfigured Error = "already_configured"
	// ErrPinUnavailable is returned when a pin cannot be used as an interrupt input.
	ErrPinUnavailable Error = "pin_unavailable"
)
