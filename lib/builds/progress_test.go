package builds

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmgforge/dmgforge/lib/paths"
)

func seedBuild(t *testing.T, p *paths.Paths, id string) {
	t.Helper()
	require.NoError(t, writeMetadata(p, &Build{
		ID:        id,
		Title:     "MyApp",
		Filename:  "MyApp.dmg",
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}))
}

func TestTrackerDeliversCurrentStateFirst(t *testing.T) {
	p := paths.New(t.TempDir())
	seedBuild(t, p, "bld_1")

	tracker := newProgressTracker("bld_1", p)
	tracker.update(StatusCreating, 30, nil)

	ch, err := tracker.subscribe(context.Background())
	require.NoError(t, err)

	first := <-ch
	require.Equal(t, StatusCreating, first.Status)
	require.Equal(t, 30, first.Progress)
}

func TestTrackerFanOut(t *testing.T) {
	p := paths.New(t.TempDir())
	seedBuild(t, p, "bld_2")

	tracker := newProgressTracker("bld_2", p)

	ch1, err := tracker.subscribe(context.Background())
	require.NoError(t, err)
	ch2, err := tracker.subscribe(context.Background())
	require.NoError(t, err)
	<-ch1
	<-ch2

	tracker.update(StatusDecorating, 70, nil)

	for _, ch := range []chan ProgressUpdate{ch1, ch2} {
		select {
		case got := <-ch:
			require.Equal(t, StatusDecorating, got.Status)
			require.Equal(t, 70, got.Progress)
		case <-time.After(time.Second):
			t.Fatal("update not delivered")
		}
	}
}

func TestTrackerPersistsStatus(t *testing.T) {
	p := paths.New(t.TempDir())
	seedBuild(t, p, "bld_3")

	tracker := newProgressTracker("bld_3", p)
	tracker.update(StatusAttaching, 50, nil)

	meta, err := readMetadata(p, "bld_3")
	require.NoError(t, err)
	require.Equal(t, StatusAttaching, meta.Status)
	require.Equal(t, 50, meta.Progress)
}

func TestTrackerFailRecordsError(t *testing.T) {
	p := paths.New(t.TempDir())
	seedBuild(t, p, "bld_4")

	tracker := newProgressTracker("bld_4", p)
	tracker.fail(io.ErrUnexpectedEOF)

	meta, err := readMetadata(p, "bld_4")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, meta.Status)
	require.NotNil(t, meta.Error)
	require.Equal(t, io.ErrUnexpectedEOF.Error(), *meta.Error)
}

func TestTrackerUnsubscribeOnContextCancel(t *testing.T) {
	p := paths.New(t.TempDir())
	seedBuild(t, p, "bld_5")

	tracker := newProgressTracker("bld_5", p)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := tracker.subscribe(ctx)
	require.NoError(t, err)
	<-ch

	cancel()

	select {
	case _, open := <-ch:
		require.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestTrackerCloseEndsSubscribers(t *testing.T) {
	p := paths.New(t.TempDir())
	seedBuild(t, p, "bld_6")

	tracker := newProgressTracker("bld_6", p)
	ch, err := tracker.subscribe(context.Background())
	require.NoError(t, err)
	<-ch

	tracker.close()

	_, open := <-ch
	require.False(t, open)

	_, err = tracker.subscribe(context.Background())
	require.Error(t, err)
}

func TestSSEReaderFramesUpdates(t *testing.T) {
	ch := make(chan ProgressUpdate, 2)
	ch <- ProgressUpdate{Status: StatusConverting, Progress: 90}
	close(ch)

	data, err := io.ReadAll(ToSSEReader(ch))
	require.NoError(t, err)

	body := string(data)
	require.True(t, strings.HasPrefix(body, "data: "))
	require.True(t, strings.HasSuffix(body, "\n\n"))
	require.Contains(t, body, `"status":"converting"`)
	require.Contains(t, body, `"progress":90`)
}
