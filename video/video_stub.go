//go:build !screen

package video

// ScreenSupported returns whether screen support is compiled in.
func ScreenSupported() bool {
	return false
}

// Video is a stub when screen support is not compiled in.
type Video struct{}

// New returns an error when screen support is not compiled in.
func New() (*Video, error) {
	return nil, ErrScreenNotCompiled
}

func (v *Video) Ready()                                             {}
func (v *Video) ConnectionLost()                                    {}
func (v *Video) Shutdown()                                          {}
func (v *Video) Dial(ch int, pos int32, pressed bool, label string) {}
func (v *Video) Release() error                                     { return nil }
