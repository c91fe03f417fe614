// Package staging owns the temporary directory a build bakes into the disk
// image: a fresh, uniquely named tree holding every declared content item
// under its display name.
package staging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/dmgforge/dmgforge/lib/declaration"
	"github.com/dmgforge/dmgforge/lib/logger"
	"github.com/dmgforge/dmgforge/lib/runner"
)

// ErrContentCopy is returned when a file-kind item cannot be copied in.
var ErrContentCopy = errors.New("copy content into staging area")

// Area is a prepared staging directory.
type Area struct {
	Root string
}

// Manager creates and removes staging areas. The directory name is derived
// from the process ID so concurrent builds on one host never collide.
type Manager struct {
	run      runner.Runner
	tempRoot string
}

// NewManager returns a Manager rooted at tempRoot, or the system temp
// directory when empty.
func NewManager(run runner.Runner, tempRoot string) *Manager {
	if tempRoot == "" {
		tempRoot = os.TempDir()
	}
	return &Manager{run: run, tempRoot: tempRoot}
}

// Root returns the directory staging areas are created under.
func (m *Manager) Root() string {
	return m.tempRoot
}

// Prepare creates a fresh staging directory and materializes every content
// item in it. File-kind copy failures are fatal and carry the failing source
// path; link-kind failures are tolerated and reported as notes. The returned
// Area is non-nil whenever the directory was created, so callers can tear it
// down even after a failure.
func (m *Manager) Prepare(ctx context.Context, decl *declaration.Declaration) (*Area, []error, error) {
	root := filepath.Join(m.tempRoot, fmt.Sprintf("dmgforge-%d", os.Getpid()))

	if err := os.RemoveAll(root); err != nil {
		return nil, nil, fmt.Errorf("clear stale staging area: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, nil, fmt.Errorf("create staging area: %w", err)
	}
	area := &Area{Root: root}

	var notes []error
	for _, item := range decl.Contents {
		name, err := item.DisplayName()
		if err != nil {
			return area, notes, err
		}
		dest, err := securejoin.SecureJoin(root, name)
		if err != nil {
			return area, notes, fmt.Errorf("resolve display name %q: %w", name, err)
		}

		switch item.Kind {
		case declaration.KindFile:
			if _, err := m.run.Run(ctx, "cp", "-R", item.Path, dest); err != nil {
				return area, notes, fmt.Errorf("%w: %s: %s", ErrContentCopy, item.Path, err)
			}
		case declaration.KindLink:
			if err := os.Symlink(item.Path, dest); err != nil {
				notes = append(notes, fmt.Errorf("skipped link %q: %w", name, err))
			}
		}
	}

	return area, notes, nil
}

// Teardown removes the staging area. Removal is best-effort: a half-removed
// temp directory must not change the build outcome.
func (m *Manager) Teardown(ctx context.Context, area *Area) {
	if area == nil {
		return
	}
	if err := os.RemoveAll(area.Root); err != nil {
		logger.FromContext(ctx).Warn("staging teardown incomplete",
			slog.String("root", area.Root), slog.Any("error", err))
	}
}
