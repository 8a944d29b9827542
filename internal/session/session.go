// Package session ties one crawl to the views and navigation a renderer
// drives. It is the only entry point a frontend needs.
package session

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/entro314-labs/spacemap/internal/config"
	"github.com/entro314-labs/spacemap/internal/core"
	"github.com/entro314-labs/spacemap/internal/crawler"
	"github.com/entro314-labs/spacemap/internal/logging"
	"github.com/entro314-labs/spacemap/internal/meta"
	"github.com/entro314-labs/spacemap/internal/metrics"
	"github.com/entro314-labs/spacemap/internal/nav"
	"github.com/entro314-labs/spacemap/internal/tree"
	"github.com/entro314-labs/spacemap/internal/view"
)

// ErrNotDirectory is returned by Start when the root is not a directory.
var ErrNotDirectory = errors.New("scan root is not a directory")

// DefaultPreview is the number of entries Preview returns for n <= 0.
const DefaultPreview = 40

type options struct {
	logger   *zap.Logger
	registry prometheus.Registerer
}

type Option func(*options)

// WithLogger sets the logger. The default is the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry registers the crawl metrics on reg. By default each session
// uses a private registry.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// Session is one scan of one root. All methods are safe for concurrent use.
type Session struct {
	id      uuid.UUID
	root    string
	cfg     config.Config
	viewCfg view.Config

	tree    *tree.Tree
	store   *meta.Store
	crawler *crawler.Crawler
	log     *zap.Logger
	metrics *metrics.Scan

	start     time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
	elapsed   atomic.Int64
	cancelled atomic.Bool

	views singleflight.Group
}

// Start validates cfg and begins crawling root in the background. A
// positive workers overrides cfg.Workers. Configuration problems are
// returned here and nowhere else.
func Start(ctx context.Context, root string, workers int, cfg config.Config, opts ...Option) (*Session, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &core.EntryError{Path: abs, Op: "stat", Err: err}
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", abs, ErrNotDirectory)
	}

	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}
	id := uuid.New()
	s := &Session{
		id:      id,
		root:    abs,
		cfg:     cfg,
		viewCfg: cfg.View(),
		tree:    tree.New(abs),
		store:   meta.NewStore(),
		log:     logging.Or(o.logger).With(zap.String("session", id.String())),
		metrics: metrics.New(o.registry),
		start:   time.Now(),
		done:    make(chan struct{}),
	}
	s.crawler = crawler.New(s.tree, s.store, crawler.Options{
		Workers:       cfg.Workers,
		Allocated:     cfg.Scan.Allocated,
		Skip:          cfg.Scan.Skip,
		OneFileSystem: cfg.Scan.OneFileSystem,
		Logger:        s.log,
		Metrics:       s.metrics,
	})

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	stop := context.AfterFunc(ctx, s.Cancel)

	s.log.Info("scan started",
		logging.String("root", abs),
		logging.Int("workers", cfg.Workers),
		logging.String("layout", cfg.Layout.String()),
	)
	go func() {
		defer stop()
		s.run(runCtx)
	}()
	return s, nil
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.cancel()

	err := s.crawler.Run(ctx, s.root)
	elapsed := time.Since(s.start)
	s.elapsed.Store(int64(elapsed))
	s.metrics.RecordScanDone(elapsed)

	cancelled := errors.Is(err, context.Canceled)
	s.cancelled.Store(cancelled)
	if !cancelled {
		s.err = err
	}

	p := s.crawler.Counters()
	s.log.Info("scan finished",
		logging.Int64("entries", p.Entries),
		logging.Size("bytes", p.Bytes),
		logging.Int64("errors", p.Errors),
		logging.Duration("elapsed", elapsed),
		zap.Bool("cancelled", cancelled),
	)
}

// Cancel asks the workers to stop after their current directory. It does
// not wait; use Wait for that. Cancelling a finished scan does nothing.
func (s *Session) Cancel() {
	select {
	case <-s.done:
		return
	default:
	}
	s.cancel()
}

// Wait blocks until the crawl ends. Cancellation is not an error.
func (s *Session) Wait() error {
	<-s.done
	return s.err
}

// Done is closed when the crawl ends.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

type Progress struct {
	Entries   int64
	Bytes     int64
	Dirs      int64
	Files     int64
	Errors    int64
	Done      bool
	Cancelled bool
	Elapsed   time.Duration
}

// Progress returns live counters. Done is true only for a crawl that ran to
// completion; a cancelled crawl reports Cancelled instead.
func (s *Session) Progress() Progress {
	c := s.crawler.Counters()
	p := Progress{
		Entries: c.Entries,
		Bytes:   c.Bytes,
		Dirs:    c.Dirs,
		Files:   c.Files,
		Errors:  c.Errors,
	}
	// run stores cancelled before closing done, so it must be read after.
	finished := s.finished()
	p.Cancelled = s.cancelled.Load()
	if finished {
		p.Done = !p.Cancelled
		p.Elapsed = time.Duration(s.elapsed.Load())
	} else {
		p.Elapsed = time.Since(s.start)
	}
	return p
}

func (s *Session) ID() string            { return s.id.String() }
func (s *Session) Root() string          { return s.root }
func (s *Session) Config() config.Config { return s.cfg }

// Tree exposes the size tree for read access.
func (s *Session) Tree() *tree.Tree { return s.tree }

// Path returns the filesystem path of id.
func (s *Session) Path(id core.ID) (string, error) { return s.tree.Path(id) }

// Entry returns what the crawler recorded about id.
func (s *Session) Entry(id core.ID) (meta.Entry, bool) { return s.store.Get(id) }

// NewState returns the initial navigation state on canvas.
func (s *Session) NewState(canvas core.Rect) nav.State {
	return nav.New(canvas, s.cfg.Nav.MaxDepth)
}

// CurrentView returns the tiles for st. Identical concurrent requests share
// one computation. The returned slice is the caller's own.
func (s *Session) CurrentView(st nav.State) ([]core.Tile, error) {
	v, err, _ := s.views.Do(viewKey(st), func() (any, error) {
		return view.Build(s.tree, st, s.viewCfg)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]core.Tile)), nil
}

func viewKey(st nav.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%g,%g,%g,%g|%d|%d,%t|", st.ZoomRoot,
		st.Canvas.X, st.Canvas.Y, st.Canvas.W, st.Canvas.H,
		st.MaxDepth, st.Selected, st.HasSelection)
	for _, id := range slices.Sorted(maps.Keys(st.Expanded)) {
		b.WriteString(strconv.FormatUint(uint64(id), 10))
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(st.Expanded[id]))
		b.WriteByte(';')
	}
	return b.String()
}

// HandlePointer applies ev against the tiles it was aimed at.
func (s *Session) HandlePointer(st nav.State, ev nav.Event, last []core.Tile) nav.State {
	next := nav.HandlePointerEvent(st, ev, last)
	s.log.Debug("pointer event",
		logging.String("kind", ev.Kind.String()),
		zap.Uint32("zoom_root", uint32(next.ZoomRoot)),
		logging.Int("expanded", len(next.Expanded)),
	)
	return next
}

// ZoomOut moves the zoom root one level up.
func (s *Session) ZoomOut(st nav.State) nav.State {
	return nav.ZoomOut(st, s.tree)
}

// AutoZoom zooms into the scan root's only directory when it holds nearly
// everything, so the first view is not a single tile.
func (s *Session) AutoZoom(st nav.State) (nav.State, bool) {
	if st.ZoomRoot != core.RootID {
		return st, false
	}
	entries, err := s.tree.Subtree(core.RootID, 1)
	if err != nil || len(entries) == 0 {
		return st, false
	}
	children := make([]nav.ChildSize, 0, len(entries)-1)
	for _, e := range entries[1:] {
		children = append(children, nav.ChildSize{ID: e.ID, Size: e.Size, Dir: e.Kind == core.Dir})
	}
	id, ok := nav.ShouldAutoZoom(entries[0].Size, children)
	if !ok {
		return st, false
	}
	return nav.ZoomTo(st, id), true
}

// PreviewEntry is one top-level child in the live preview.
type PreviewEntry struct {
	ID   core.ID
	Name string
	Kind core.Kind
	Size int64
	Err  bool
}

// Preview returns the largest n children of the scan root, largest first.
func (s *Session) Preview(n int) []PreviewEntry {
	if n <= 0 {
		n = DefaultPreview
	}
	entries, err := s.tree.Subtree(core.RootID, 1)
	if err != nil {
		return nil
	}
	out := make([]PreviewEntry, 0, len(entries))
	for _, e := range entries[1:] {
		out = append(out, PreviewEntry{ID: e.ID, Name: e.Name, Kind: e.Kind, Size: e.Size, Err: e.Err})
	}
	slices.SortFunc(out, func(a, b PreviewEntry) int {
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Stats summarizes the scan. The values are final once the scan is done.
type Stats struct {
	ID        string
	Root      string
	Files     int64
	Dirs      int64
	Bytes     int64
	Errors    int64
	Duration  time.Duration
	Done      bool
	Cancelled bool
}

func (s *Session) Stats() Stats {
	p := s.Progress()
	var total int64
	if n, err := s.tree.Node(core.RootID); err == nil {
		total = n.Size
	}
	return Stats{
		ID:        s.ID(),
		Root:      s.root,
		Files:     p.Files,
		Dirs:      p.Dirs,
		Bytes:     total,
		Errors:    p.Errors,
		Duration:  p.Elapsed,
		Done:      p.Done,
		Cancelled: p.Cancelled,
	}
}
