package builds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/nrednav/cuid2"
	"github.com/samber/lo"

	"github.com/dmgforge/dmgforge/lib/builder"
	"github.com/dmgforge/dmgforge/lib/declaration"
	"github.com/dmgforge/dmgforge/lib/logger"
	"github.com/dmgforge/dmgforge/lib/paths"
	"github.com/dmgforge/dmgforge/lib/runner"
)

// Manager handles packaging job lifecycle operations
type Manager interface {
	// CreateBuild accepts a declaration and queues a packaging job
	CreateBuild(ctx context.Context, req CreateBuildRequest) (*Build, error)

	// GetBuild returns a build by ID
	GetBuild(ctx context.Context, id string) (*Build, error)

	// ListBuilds returns all builds, newest first
	ListBuilds(ctx context.Context) ([]*Build, error)

	// DeleteBuild removes a build and its artifacts
	DeleteBuild(ctx context.Context, id string) error

	// ImagePath returns the final image location for a ready build
	ImagePath(ctx context.Context, id string) (string, error)

	// SubscribeProgress streams status updates for a build
	SubscribeProgress(ctx context.Context, id string) (chan ProgressUpdate, error)

	// QueueStats reports how many builds are running and waiting
	QueueStats() (active, pending int)
}

// Options configures the build manager. Paths is required; the rest have
// production defaults.
type Options struct {
	Paths         *paths.Paths
	Runner        runner.Runner
	MountPrefix   string
	MaxConcurrent int
	Metrics       *Metrics
}

type manager struct {
	paths       *paths.Paths
	runner      runner.Runner
	mountPrefix string
	queue       *buildQueue
	metrics     *Metrics

	trackersMu sync.Mutex
	trackers   map[string]*progressTracker
}

// NewManager creates a build manager backed by the given data directory.
func NewManager(opts Options) Manager {
	run := opts.Runner
	if run == nil {
		run = runner.New()
	}
	return &manager{
		paths:       opts.Paths,
		runner:      run,
		mountPrefix: opts.MountPrefix,
		queue:       newBuildQueue(opts.MaxConcurrent),
		metrics:     opts.Metrics,
		trackers:    make(map[string]*progressTracker),
	}
}

func (m *manager) CreateBuild(ctx context.Context, req CreateBuildRequest) (*Build, error) {
	if err := req.Declaration.Validate(); err != nil {
		return nil, err
	}

	id := "bld_" + cuid2.Generate()
	filename := req.Filename
	if filename == "" {
		filename = defaultFilename(req.Declaration.Title)
	} else if err := validateFilename(filename); err != nil {
		return nil, err
	}

	build := &Build{
		ID:        id,
		Title:     req.Declaration.Title,
		Filename:  filename,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	if err := writeMetadata(m.paths, build); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	tracker := newProgressTracker(id, m.paths)
	m.trackersMu.Lock()
	m.trackers[id] = tracker
	m.trackersMu.Unlock()

	decl := req.Declaration
	pos := m.queue.enqueue(id, func() {
		m.runBuild(context.WithoutCancel(ctx), id, &decl, tracker)
	})
	if pos > 0 {
		tracker.update(StatusPending, 0, &pos)
		build.QueuePosition = &pos
	}

	return build, nil
}

// runBuild executes the pipeline for one job and records the outcome.
func (m *manager) runBuild(ctx context.Context, id string, decl *declaration.Declaration, tracker *progressTracker) {
	log := logger.FromContext(ctx)
	start := time.Now()

	defer func() {
		m.queue.markComplete(id)
		m.trackersMu.Lock()
		delete(m.trackers, id)
		m.trackersMu.Unlock()
		tracker.close()
	}()

	meta, err := readMetadata(m.paths, id)
	if err != nil {
		m.finishFailed(ctx, tracker, err, start)
		return
	}

	// Each job gets its own scratch root so concurrent builds never collide
	// on staging or temp image names.
	scratch := m.paths.BuildScratch(id)
	if err := os.MkdirAll(scratch, 0755); err != nil {
		m.finishFailed(ctx, tracker, fmt.Errorf("create scratch dir: %w", err), start)
		return
	}
	defer os.RemoveAll(scratch)

	b := builder.New(builder.Options{
		Runner:      m.runner,
		TempRoot:    scratch,
		MountPrefix: m.mountPrefix,
		Progress: func(stage string) {
			status, progress := stageStatus(stage)
			tracker.update(status, progress, nil)
		},
	})

	result, err := b.Build(ctx, decl, m.paths.BuildImage(id, meta.Filename))
	if err != nil {
		log.Error("build failed", slog.String("build_id", id), slog.Any("error", err))
		m.finishFailed(ctx, tracker, err, start)
		return
	}

	meta, err = readMetadata(m.paths, id)
	if err != nil {
		m.finishFailed(ctx, tracker, err, start)
		return
	}
	now := time.Now()
	meta.Status = StatusReady
	meta.Progress = 100
	meta.QueuePosition = nil
	meta.CompletedAt = &now
	meta.SizeBytes = &result.SizeBytes
	meta.Size = datasize.ByteSize(result.SizeBytes).HumanReadable()
	meta.Diagnostics = lo.Map(result.Diagnostics, func(d builder.Diagnostic, _ int) string {
		return d.String()
	})
	if err := writeMetadata(m.paths, meta); err != nil {
		log.Error("persist build result", slog.String("build_id", id), slog.Any("error", err))
	}

	tracker.update(StatusReady, 100, nil)
	if m.metrics != nil {
		m.metrics.RecordBuild(ctx, StatusReady, time.Since(start), result.SizeBytes)
	}
	log.Info("build complete",
		slog.String("build_id", id),
		slog.String("image", result.ImagePath),
		slog.Int64("size_bytes", result.SizeBytes),
	)
}

func (m *manager) finishFailed(ctx context.Context, tracker *progressTracker, err error, start time.Time) {
	tracker.fail(err)
	if m.metrics != nil {
		m.metrics.RecordBuild(ctx, StatusFailed, time.Since(start), 0)
	}
}

func (m *manager) GetBuild(ctx context.Context, id string) (*Build, error) {
	build, err := readMetadata(m.paths, id)
	if err != nil {
		return nil, err
	}
	if build.Status == StatusPending {
		build.QueuePosition = m.queue.position(id)
	}
	return build, nil
}

func (m *manager) ListBuilds(ctx context.Context) ([]*Build, error) {
	builds, err := listMetadata(m.paths)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}

	for _, b := range builds {
		if b.Status == StatusPending {
			b.QueuePosition = m.queue.position(b.ID)
		}
	}

	sort.Slice(builds, func(i, j int) bool {
		return builds[i].CreatedAt.After(builds[j].CreatedAt)
	})
	return builds, nil
}

func (m *manager) QueueStats() (int, int) {
	return m.queue.activeCount(), m.queue.pendingCount()
}

func (m *manager) DeleteBuild(ctx context.Context, id string) error {
	return deleteBuild(m.paths, id)
}

// ImagePath returns the final image location for a ready build.
func (m *manager) ImagePath(ctx context.Context, id string) (string, error) {
	build, err := readMetadata(m.paths, id)
	if err != nil {
		return "", err
	}
	if build.Status != StatusReady {
		return "", ErrNotReady
	}
	return m.paths.BuildImage(id, build.Filename), nil
}

func (m *manager) SubscribeProgress(ctx context.Context, id string) (chan ProgressUpdate, error) {
	m.trackersMu.Lock()
	tracker, ok := m.trackers[id]
	m.trackersMu.Unlock()

	if ok {
		return tracker.subscribe(ctx)
	}

	// No live tracker means the build already finished. Replay the terminal
	// state once so late subscribers still see an event.
	build, err := readMetadata(m.paths, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	ch := make(chan ProgressUpdate, 1)
	ch <- ProgressUpdate{
		Status:   build.Status,
		Progress: build.Progress,
		Error:    build.Error,
	}
	close(ch)
	return ch, nil
}

// stageStatus maps a pipeline stage to a status and coarse percentage.
func stageStatus(stage string) (string, int) {
	switch stage {
	case builder.StageStaging:
		return StatusStaging, 10
	case builder.StageCreating:
		return StatusCreating, 30
	case builder.StageAttaching:
		return StatusAttaching, 50
	case builder.StageDecorating:
		return StatusDecorating, 70
	case builder.StageConverting:
		return StatusConverting, 90
	default:
		return stage, 0
	}
}

// validateFilename rejects names that would resolve outside the build's own
// directory. The artifact is always written under BuildDir(id); a separator
// or dot-name in the caller's filename would escape it.
func validateFilename(name string) error {
	if name != filepath.Base(name) || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return nil
}

var filenameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// defaultFilename derives an artifact name from the volume title.
// Example: "My App" -> My-App.dmg
func defaultFilename(title string) string {
	sanitized := filenameSanitizer.ReplaceAllString(title, "-")
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		sanitized = "untitled"
	}
	return sanitized + ".dmg"
}
