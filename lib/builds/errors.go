package builds

import "errors"

var (
	ErrNotFound        = errors.New("build not found")
	ErrNotReady        = errors.New("build image not ready")
	ErrInvalidFilename = errors.New("invalid artifact filename")
)
