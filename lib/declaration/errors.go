package declaration

import "errors"

var (
	ErrMissingTitle      = errors.New("declaration has no title")
	ErrInvalidIconSize   = errors.New("icon size must be positive")
	ErrInvalidWindowSize = errors.New("window size must be positive")
	ErrInvalidKind       = errors.New("unknown content kind")
	ErrMissingPath       = errors.New("content item has no path")
	ErrUnresolvableName  = errors.New("cannot resolve display name")
)
