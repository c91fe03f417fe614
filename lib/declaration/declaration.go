package declaration

import (
	"fmt"
	"path/filepath"
)

// Content item kinds.
const (
	KindFile = "file"
	KindLink = "link"
)

// ContentItem places one piece of content on the volume at Finder
// coordinates (X, Y). Name overrides the display name; when empty the final
// path component of Path is used.
type ContentItem struct {
	X    uint32 `json:"x"`
	Y    uint32 `json:"y"`
	Kind string `json:"type"`
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
}

// DisplayName resolves the name the item carries on the volume.
func (c ContentItem) DisplayName() (string, error) {
	name := c.Name
	if name == "" {
		name = filepath.Base(c.Path)
	}
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrUnresolvableName, c.Path)
	}
	return name, nil
}

// WindowSize is the Finder window geometry in pixels.
type WindowSize struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Window holds the Finder window settings for the mounted volume.
type Window struct {
	Size WindowSize `json:"size"`
}

// Declaration describes the package to assemble. It is immutable for the
// duration of a build.
type Declaration struct {
	Title      string        `json:"title"`
	Icon       string        `json:"icon"`
	Background string        `json:"background"`
	IconSize   float64       `json:"icon-size"`
	Window     Window        `json:"window"`
	Contents   []ContentItem `json:"contents"`
}

// Validate checks the declaration before a build starts. Source paths are not
// stat'd here; staging surfaces those failures with the failing path attached.
func (d *Declaration) Validate() error {
	if d.Title == "" {
		return ErrMissingTitle
	}
	if d.IconSize <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidIconSize, d.IconSize)
	}
	if d.Window.Size.Width == 0 || d.Window.Size.Height == 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidWindowSize, d.Window.Size.Width, d.Window.Size.Height)
	}
	for i, item := range d.Contents {
		if item.Kind != KindFile && item.Kind != KindLink {
			return fmt.Errorf("%w: contents[%d] type %q", ErrInvalidKind, i, item.Kind)
		}
		if item.Path == "" {
			return fmt.Errorf("%w: contents[%d]", ErrMissingPath, i)
		}
		if _, err := item.DisplayName(); err != nil {
			return fmt.Errorf("contents[%d]: %w", i, err)
		}
	}
	return nil
}
