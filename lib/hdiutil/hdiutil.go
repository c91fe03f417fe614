// Package hdiutil drives the external disk-image tool through the lifecycle
// a package build needs: create a writable image from a staged folder, attach
// it, detach it, and convert it to the compressed read-only format.
package hdiutil

import (
	"context"
	"fmt"

	"github.com/dmgforge/dmgforge/lib/runner"
)

// DefaultMountPrefix is where the platform mounts removable volumes.
const DefaultMountPrefix = "/Volumes/"

// Tool wraps hdiutil invocations behind typed operations.
type Tool struct {
	run runner.Runner
	bin string
}

// New returns a Tool that shells out through the given runner.
func New(run runner.Runner) *Tool {
	return &Tool{run: run, bin: "hdiutil"}
}

// CreateOptions describes the writable image to build.
type CreateOptions struct {
	SrcFolder  string // staged content to bake in
	VolumeName string
	ImagePath  string
}

// Create builds a writable, journaled HFS+ image sized to fit the source
// folder.
func (t *Tool) Create(ctx context.Context, opts CreateOptions) error {
	_, err := t.run.Run(ctx, t.bin, "create",
		"-srcfolder", opts.SrcFolder,
		"-volname", opts.VolumeName,
		"-fs", "HFS+",
		"-format", "UDRW",
		"-ov",
		opts.ImagePath,
		"-quiet",
	)
	if err != nil {
		return fmt.Errorf("hdiutil create: %w", err)
	}
	return nil
}

// Attach mounts the image read-write without verification or the desktop
// auto-open behavior, and returns the discovered mount path.
func (t *Tool) Attach(ctx context.Context, imagePath, mountPrefix string) (string, error) {
	res, err := t.run.Run(ctx, t.bin, "attach",
		"-readwrite",
		"-noverify",
		"-noautoopen",
		imagePath,
	)
	if err != nil {
		return "", fmt.Errorf("hdiutil attach: %w", err)
	}
	mount, err := ParseAttachMount(res.Stdout, mountPrefix)
	if err != nil {
		return "", err
	}
	return mount, nil
}

// Detach force-unmounts the volume.
func (t *Tool) Detach(ctx context.Context, mountPath string) error {
	_, err := t.run.Run(ctx, t.bin, "detach", mountPath, "-force", "-quiet")
	if err != nil {
		return fmt.Errorf("hdiutil detach: %w", err)
	}
	return nil
}

// Convert compresses the writable image into the read-only distribution
// format at outputPath.
func (t *Tool) Convert(ctx context.Context, imagePath, outputPath string) error {
	_, err := t.run.Run(ctx, t.bin, "convert",
		imagePath,
		"-format", "UDZO",
		"-o", outputPath,
		"-quiet",
	)
	if err != nil {
		return fmt.Errorf("hdiutil convert: %w", err)
	}
	return nil
}
