package builder

import "errors"

// Fatal pipeline errors. Anything not wrapped in one of these is absorbed
// into the build's diagnostics instead of failing it.
var (
	ErrStageContent  = errors.New("stage content")
	ErrCreateImage   = errors.New("create disk image")
	ErrAttachImage   = errors.New("attach disk image")
	ErrWriteMetadata = errors.New("write layout metadata")
	ErrDetachImage   = errors.New("detach disk image")
	ErrConvertImage  = errors.New("convert disk image")
)
