// Package finder applies the cosmetic filesystem attributes a finished volume
// carries: hidden metadata-support directories and an optional custom volume
// icon. Every step here is independently fallible and none may abort a build.
package finder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmgforge/dmgforge/lib/runner"
)

// Volume-reserved names.
const (
	BackgroundDir  = ".background"
	eventLogDir    = ".fseventsd"
	volumeIconName = ".VolumeIcon.icns"
)

// Decorator drives the external attribute tools.
type Decorator struct {
	run runner.Runner
}

// New returns a Decorator that shells out through the given runner.
func New(run runner.Runner) *Decorator {
	return &Decorator{run: run}
}

// Decorate hides the metadata-support directories, installs the custom volume
// icon when iconPath names an existing file, and syncs the filesystem so all
// writes are durable before unmount. The returned errors are diagnostics;
// they never fail the build.
func (d *Decorator) Decorate(ctx context.Context, mountPath, iconPath string) []error {
	var notes []error
	note := func(what string, err error) {
		if err != nil {
			notes = append(notes, fmt.Errorf("%s: %w", what, err))
		}
	}

	note("hide background dir", d.hide(ctx, filepath.Join(mountPath, BackgroundDir)))
	note("hide event log dir", d.hide(ctx, filepath.Join(mountPath, eventLogDir)))

	if iconPath != "" {
		if _, err := os.Stat(iconPath); err == nil {
			dest := filepath.Join(mountPath, volumeIconName)
			if err := copyFile(iconPath, dest); err != nil {
				note("install volume icon", err)
			} else {
				note("hide volume icon", d.hide(ctx, dest))
				// Flag the volume root as carrying a custom icon.
				_, err := d.run.Run(ctx, "SetFile", "-a", "C", mountPath)
				note("flag custom icon", err)
			}
		} else {
			note("volume icon source", err)
		}
	}

	_, err := d.run.Run(ctx, "sync")
	note("sync", err)

	return notes
}

func (d *Decorator) hide(ctx context.Context, path string) error {
	_, err := d.run.Run(ctx, "chflags", "hidden", path)
	return err
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
