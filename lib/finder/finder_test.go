package finder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmgforge/dmgforge/lib/runner"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	calls [][]string
	fail  map[string]error // keyed by command name
}

func (r *recordingRunner) Run(ctx context.Context, name string, args ...string) (runner.Result, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	return runner.Result{}, r.fail[name]
}

func (r *recordingRunner) commands() []string {
	var out []string
	for _, c := range r.calls {
		out = append(out, c[0])
	}
	return out
}

func TestDecorateWithIcon(t *testing.T) {
	mount := t.TempDir()
	icon := filepath.Join(t.TempDir(), "app.icns")
	require.NoError(t, os.WriteFile(icon, []byte("icns"), 0644))

	rec := &recordingRunner{}
	notes := New(rec).Decorate(context.Background(), mount, icon)
	require.Empty(t, notes)

	// hide .background, hide .fseventsd, hide icon, SetFile, sync
	require.Equal(t, []string{"chflags", "chflags", "chflags", "SetFile", "sync"}, rec.commands())

	require.Equal(t, []string{"chflags", "hidden", filepath.Join(mount, BackgroundDir)}, rec.calls[0])
	require.Equal(t, []string{"SetFile", "-a", "C", mount}, rec.calls[3])

	data, err := os.ReadFile(filepath.Join(mount, volumeIconName))
	require.NoError(t, err)
	require.Equal(t, "icns", string(data))
}

func TestDecorateWithoutIcon(t *testing.T) {
	mount := t.TempDir()

	rec := &recordingRunner{}
	notes := New(rec).Decorate(context.Background(), mount, "")
	require.Empty(t, notes)
	require.Equal(t, []string{"chflags", "chflags", "sync"}, rec.commands())
}

func TestDecorateMissingIconTolerated(t *testing.T) {
	mount := t.TempDir()

	rec := &recordingRunner{}
	notes := New(rec).Decorate(context.Background(), mount, filepath.Join(mount, "nope.icns"))
	require.Len(t, notes, 1)
	require.Contains(t, notes[0].Error(), "volume icon source")

	// No icon install, but the rest of the chain still runs.
	require.Equal(t, []string{"chflags", "chflags", "sync"}, rec.commands())
	_, err := os.Stat(filepath.Join(mount, volumeIconName))
	require.True(t, os.IsNotExist(err))
}

func TestDecorateFailuresCollected(t *testing.T) {
	mount := t.TempDir()

	rec := &recordingRunner{fail: map[string]error{
		"chflags": errors.New("operation not permitted"),
		"sync":    errors.New("sync failed"),
	}}
	notes := New(rec).Decorate(context.Background(), mount, "")
	require.Len(t, notes, 3)

	// All steps still attempted despite failures.
	require.Equal(t, []string{"chflags", "chflags", "sync"}, rec.commands())
}
