// Package builder sequences a package build: stage content, create and attach
// a writable disk image, inject Finder layout metadata, decorate the volume,
// then detach and convert to the compressed read-only artifact. The staging
// directory and the temporary writable image are released on every exit path.
package builder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dmgforge/dmgforge/lib/alias"
	"github.com/dmgforge/dmgforge/lib/declaration"
	"github.com/dmgforge/dmgforge/lib/dsstore"
	"github.com/dmgforge/dmgforge/lib/finder"
	"github.com/dmgforge/dmgforge/lib/hdiutil"
	"github.com/dmgforge/dmgforge/lib/layout"
	"github.com/dmgforge/dmgforge/lib/logger"
	"github.com/dmgforge/dmgforge/lib/runner"
	"github.com/dmgforge/dmgforge/lib/staging"
)

// Pipeline stages, reported through Options.Progress in order.
const (
	StageStaging    = "staging"
	StageCreating   = "creating"
	StageAttaching  = "attaching"
	StageDecorating = "decorating"
	StageConverting = "converting"
)

// BackgroundImageName is the name the background is copied to on the volume.
const BackgroundImageName = "background.png"

// Options configures a Builder. The zero value is production-ready.
type Options struct {
	Runner      runner.Runner // defaults to the os/exec runner
	TempRoot    string        // defaults to os.TempDir()
	MountPrefix string        // defaults to hdiutil.DefaultMountPrefix
	Progress    func(stage string)
}

// Builder assembles distributable disk images. One Builder may run builds
// sequentially; concurrent builds need distinct TempRoots because the staging
// name is derived from the process identity.
type Builder struct {
	stage       *staging.Manager
	disk        *hdiutil.Tool
	deco        *finder.Decorator
	tempRoot    string
	mountPrefix string
	progress    func(stage string)
}

// New constructs a Builder from options.
func New(opts Options) *Builder {
	run := opts.Runner
	if run == nil {
		run = runner.New()
	}
	tempRoot := opts.TempRoot
	if tempRoot == "" {
		tempRoot = os.TempDir()
	}
	mountPrefix := opts.MountPrefix
	if mountPrefix == "" {
		mountPrefix = hdiutil.DefaultMountPrefix
	}
	progress := opts.Progress
	if progress == nil {
		progress = func(string) {}
	}
	return &Builder{
		stage:       staging.NewManager(run, tempRoot),
		disk:        hdiutil.New(run),
		deco:        finder.New(run),
		tempRoot:    tempRoot,
		mountPrefix: mountPrefix,
		progress:    progress,
	}
}

// Result describes a successful build.
type Result struct {
	ImagePath   string
	SizeBytes   int64
	Diagnostics []Diagnostic
}

// Build runs the full pipeline and writes the final image to outputPath.
// A pre-existing file there is replaced only after a successful conversion
// path is reached; fatal errors leave it untouched.
func (b *Builder) Build(ctx context.Context, decl *declaration.Declaration, outputPath string) (*Result, error) {
	log := logger.FromContext(ctx)

	if err := decl.Validate(); err != nil {
		return nil, err
	}

	var diags []Diagnostic

	b.progress(StageStaging)
	area, skipped, err := b.stage.Prepare(ctx, decl)
	if area != nil {
		defer b.stage.Teardown(context.WithoutCancel(ctx), area)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStageContent, err)
	}
	diags = collect(diags, StageStaging, skipped...)

	tempImage := filepath.Join(b.tempRoot, fmt.Sprintf("dmgforge-rw-%d.dmg", os.Getpid()))
	if err := os.Remove(tempImage); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: clear stale image: %s", ErrCreateImage, err)
	}
	defer os.Remove(tempImage)

	b.progress(StageCreating)
	err = b.disk.Create(ctx, hdiutil.CreateOptions{
		SrcFolder:  area.Root,
		VolumeName: decl.Title,
		ImagePath:  tempImage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCreateImage, err)
	}

	b.progress(StageAttaching)
	mount, err := b.disk.Attach(ctx, tempImage, b.mountPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAttachImage, err)
	}
	log.Debug("volume attached", slog.String("mount", mount))

	detached := false
	defer func() {
		if detached {
			return
		}
		// A stuck mount after a fatal error must not mask the original
		// failure; log it and move on.
		if derr := b.disk.Detach(context.WithoutCancel(ctx), mount); derr != nil {
			log.Warn("volume left attached", slog.String("mount", mount), slog.Any("error", derr))
		}
	}()

	b.progress(StageDecorating)
	aliasBlob, bgDiags := b.resolveBackground(decl, mount)
	diags = collect(diags, StageDecorating, bgDiags...)

	records, layoutNotes := layout.Entries(decl, aliasBlob)
	diags = collect(diags, StageDecorating, layoutNotes...)

	if err := dsstore.Write(filepath.Join(mount, ".DS_Store"), records); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWriteMetadata, err)
	}

	diags = collect(diags, StageDecorating, b.deco.Decorate(ctx, mount, decl.Icon)...)

	// Conversion must not run against an attached image, so this detach is
	// load-bearing: failure aborts the build.
	b.progress(StageConverting)
	if err := b.disk.Detach(ctx, mount); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDetachImage, err)
	}
	detached = true

	if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: clear output path: %s", ErrConvertImage, err)
	}
	if err := b.disk.Convert(ctx, tempImage, outputPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConvertImage, err)
	}

	result := &Result{ImagePath: outputPath, Diagnostics: diags}
	if fi, err := os.Stat(outputPath); err == nil {
		result.SizeBytes = fi.Size()
	}
	return result, nil
}

// resolveBackground copies the declared background image onto the volume and
// encodes an alias record pointing at the on-volume copy. Every failure here
// degrades to "no alias": a missing background is never fatal.
func (b *Builder) resolveBackground(decl *declaration.Declaration, mount string) ([]byte, []error) {
	bgDir := filepath.Join(mount, finder.BackgroundDir)
	if err := os.MkdirAll(bgDir, 0755); err != nil {
		return nil, []error{fmt.Errorf("create background dir: %w", err)}
	}

	if decl.Background == "" {
		return nil, nil
	}
	if _, err := os.Stat(decl.Background); err != nil {
		return nil, []error{fmt.Errorf("background image: %w", err)}
	}

	volBG := filepath.Join(bgDir, BackgroundImageName)
	if err := copyFile(decl.Background, volBG); err != nil {
		return nil, []error{fmt.Errorf("copy background image: %w", err)}
	}

	info, err := alias.New(mount, decl.Title, volBG)
	if err != nil {
		return nil, []error{fmt.Errorf("describe background alias: %w", err)}
	}
	blob, err := info.Encode()
	if err != nil {
		return nil, []error{fmt.Errorf("encode background alias: %w", err)}
	}
	return blob, nil
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
