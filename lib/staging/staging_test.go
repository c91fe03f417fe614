package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmgforge/dmgforge/lib/declaration"
	"github.com/dmgforge/dmgforge/lib/runner"
	"github.com/stretchr/testify/require"
)

// copyRunner emulates the external copy tool with plain file operations.
type copyRunner struct{}

func (copyRunner) Run(ctx context.Context, name string, args ...string) (runner.Result, error) {
	if name != "cp" {
		return runner.Result{}, fmt.Errorf("unexpected command %s", name)
	}
	src, dest := args[1], args[2]
	in, err := os.Open(src)
	if err != nil {
		return runner.Result{ExitCode: 1, Stderr: err.Error()},
			&runner.ExitError{Name: name, Args: args, Result: runner.Result{ExitCode: 1, Stderr: err.Error()}}
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return runner.Result{}, err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return runner.Result{}, err
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestPrepareMaterializesItems(t *testing.T) {
	srcDir := t.TempDir()
	app := writeFile(t, filepath.Join(srcDir, "MyApp.app"), "binary")
	readme := writeFile(t, filepath.Join(srcDir, "README.txt"), "docs")

	decl := &declaration.Declaration{
		Title:    "MyApp",
		IconSize: 96,
		Window:   declaration.Window{Size: declaration.WindowSize{Width: 400, Height: 300}},
		Contents: []declaration.ContentItem{
			{X: 100, Y: 100, Kind: declaration.KindFile, Path: app},
			{X: 200, Y: 100, Kind: declaration.KindFile, Path: readme, Name: "ReadMe.txt"},
			{X: 300, Y: 100, Kind: declaration.KindLink, Path: "/Applications"},
		},
	}

	m := NewManager(copyRunner{}, t.TempDir())
	area, notes, err := m.Prepare(context.Background(), decl)
	require.NoError(t, err)
	require.Empty(t, notes)
	t.Cleanup(func() { m.Teardown(context.Background(), area) })

	data, err := os.ReadFile(filepath.Join(area.Root, "MyApp.app"))
	require.NoError(t, err)
	require.Equal(t, "binary", string(data))

	// The override name wins over the source basename.
	_, err = os.Stat(filepath.Join(area.Root, "ReadMe.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(area.Root, "README.txt"))
	require.True(t, os.IsNotExist(err))

	target, err := os.Readlink(filepath.Join(area.Root, "Applications"))
	require.NoError(t, err)
	require.Equal(t, "/Applications", target)
}

func TestPrepareCopyFailureIsFatal(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist.app")
	decl := &declaration.Declaration{
		Contents: []declaration.ContentItem{
			{Kind: declaration.KindFile, Path: missing},
		},
	}

	m := NewManager(copyRunner{}, t.TempDir())
	area, _, err := m.Prepare(context.Background(), decl)
	require.ErrorIs(t, err, ErrContentCopy)
	require.Contains(t, err.Error(), missing)
	require.NotNil(t, area, "area returned for teardown even on failure")
	m.Teardown(context.Background(), area)
}

func TestPrepareLinkFailureIsTolerated(t *testing.T) {
	srcDir := t.TempDir()
	app := writeFile(t, filepath.Join(srcDir, "Clash"), "x")

	decl := &declaration.Declaration{
		Contents: []declaration.ContentItem{
			{Kind: declaration.KindFile, Path: app},
			{Kind: declaration.KindLink, Path: "/somewhere", Name: "Clash"},
		},
	}

	m := NewManager(copyRunner{}, t.TempDir())
	area, notes, err := m.Prepare(context.Background(), decl)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Contains(t, notes[0].Error(), "Clash")
	m.Teardown(context.Background(), area)
}

func TestPrepareReplacesStaleArea(t *testing.T) {
	tempRoot := t.TempDir()
	stale := filepath.Join(tempRoot, fmt.Sprintf("dmgforge-%d", os.Getpid()))
	require.NoError(t, os.MkdirAll(stale, 0755))
	writeFile(t, filepath.Join(stale, "leftover"), "junk")

	m := NewManager(copyRunner{}, tempRoot)
	area, _, err := m.Prepare(context.Background(), &declaration.Declaration{})
	require.NoError(t, err)
	require.Equal(t, stale, area.Root)

	_, err = os.Stat(filepath.Join(area.Root, "leftover"))
	require.True(t, os.IsNotExist(err))
}

func TestTeardownRemovesArea(t *testing.T) {
	m := NewManager(copyRunner{}, t.TempDir())
	area, _, err := m.Prepare(context.Background(), &declaration.Declaration{})
	require.NoError(t, err)

	m.Teardown(context.Background(), area)
	_, err = os.Stat(area.Root)
	require.True(t, os.IsNotExist(err))

	// Nil areas are a no-op.
	m.Teardown(context.Background(), nil)
}
