// Package crawler walks a directory hierarchy with a pool of workers and
// feeds what it finds into a size tree and a metadata store.
package crawler

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/entro314-labs/spacemap/internal/core"
	"github.com/entro314-labs/spacemap/internal/logging"
	"github.com/entro314-labs/spacemap/internal/meta"
	"github.com/entro314-labs/spacemap/internal/metrics"
	"github.com/entro314-labs/spacemap/internal/tree"
)

// dockerVMSuffix is Docker Desktop's VM image directory. Its sparse disk
// images report apparent sizes far beyond what they occupy.
const dockerVMSuffix = "Library/Containers/com.docker.docker/Data/vms"

const (
	minWorkers = 6
	maxWorkers = 64
)

// DefaultWorkers is three workers per CPU, clamped to [6, 64]. Metadata
// calls block on I/O far more than they use CPU.
func DefaultWorkers() int {
	return min(max(runtime.NumCPU()*3, minWorkers), maxWorkers)
}

type Options struct {
	// Workers is the pool size. Zero or less selects DefaultWorkers.
	Workers int
	// Allocated sizes files by the blocks they occupy and counts hard
	// links once. Only supported on unix; elsewhere apparent sizes are used.
	Allocated bool
	// Skip lists directory names that are never entered.
	Skip []string
	// OneFileSystem skips directories on a different device than the root.
	OneFileSystem bool

	Logger  *zap.Logger
	Metrics *metrics.Scan
}

// Progress is a snapshot of the crawl counters. Dirs and Entries do not
// include the root.
type Progress struct {
	Entries int64
	Bytes   int64
	Dirs    int64
	Files   int64
	Errors  int64
}

// Crawler performs one crawl. It is not reusable.
type Crawler struct {
	tree    *tree.Tree
	store   *meta.Store
	opts    Options
	skip    map[string]struct{}
	log     *zap.Logger
	metrics *metrics.Scan

	entries atomic.Int64
	bytes   atomic.Int64
	dirs    atomic.Int64
	files   atomic.Int64
	errs    atomic.Int64

	q queue

	inodes  sync.Map
	rootDev uint64
	hasDev  bool
}

func New(t *tree.Tree, store *meta.Store, opts Options) *Crawler {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers()
	}
	skip := make(map[string]struct{}, len(opts.Skip))
	for _, name := range opts.Skip {
		if name != "" {
			skip[name] = struct{}{}
		}
	}
	c := &Crawler{
		tree:    t,
		store:   store,
		opts:    opts,
		skip:    skip,
		log:     logging.Or(opts.Logger).Named("crawler"),
		metrics: opts.Metrics,
	}
	c.q.init(opts.Metrics)
	return c
}

// Counters returns the current counters. Safe from any goroutine.
func (c *Crawler) Counters() Progress {
	return Progress{
		Entries: c.entries.Load(),
		Bytes:   c.bytes.Load(),
		Dirs:    c.dirs.Load(),
		Files:   c.files.Load(),
		Errors:  c.errs.Load(),
	}
}

// Run crawls root into the tree's root node and blocks until every
// directory has been enumerated or ctx is cancelled. Per-entry failures are
// recorded on the nodes and never returned. On cancellation Run returns
// ctx.Err() and directories that were not enumerated stay unfinalized.
func (c *Crawler) Run(ctx context.Context, root string) error {
	start := time.Now()
	info, err := os.Stat(root)
	if err != nil {
		c.fail(core.RootID, root, "stat", err)
		_ = c.tree.Finalize(core.RootID)
		return nil
	}
	c.store.Put(core.RootID, meta.Entry{
		Name:    root,
		Kind:    core.Dir,
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	})
	if c.opts.OneFileSystem {
		c.rootDev, c.hasDev = deviceOf(info)
	}

	c.log.Debug("crawl started",
		logging.String("root", root),
		logging.Int("workers", c.opts.Workers),
		zap.Bool("allocated", c.opts.Allocated),
	)

	c.q.push(job{id: core.RootID, path: root})
	stop := context.AfterFunc(ctx, c.q.close)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for range c.opts.Workers {
		g.Go(func() error {
			return c.work(gctx)
		})
	}
	err = g.Wait()

	p := c.Counters()
	c.log.Debug("crawl finished",
		logging.Int64("entries", p.Entries),
		logging.Size("bytes", p.Bytes),
		logging.Int64("errors", p.Errors),
		logging.Duration("elapsed", time.Since(start)),
		zap.Bool("cancelled", ctx.Err() != nil),
	)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Crawler) work(ctx context.Context) error {
	for {
		j, ok := c.q.pop()
		if !ok {
			return nil
		}
		if ctx.Err() != nil {
			c.q.close()
			return nil
		}
		c.readDir(j)
		c.q.done()
	}
}

func (c *Crawler) readDir(j job) {
	c.metrics.WorkerBusy(1)
	defer c.metrics.WorkerBusy(-1)
	start := time.Now()

	f, err := os.Open(j.path)
	if err != nil {
		c.fail(j.id, j.path, "open", err)
		_ = c.tree.Finalize(j.id)
		return
	}
	entries, err := f.ReadDir(-1)
	f.Close()
	if err != nil {
		// Entries read before the failure are kept.
		c.fail(j.id, j.path, "readdir", err)
	}

	var subdirs []job
	for _, e := range entries {
		if sub, ok := c.visit(j.id, filepath.Join(j.path, e.Name()), e); ok {
			subdirs = append(subdirs, sub)
		}
	}
	_ = c.tree.Finalize(j.id)
	c.metrics.RecordDirRead(time.Since(start))
	c.q.push(subdirs...)
}

// visit records one directory entry and returns a job when it is a
// directory still to be enumerated.
func (c *Crawler) visit(parent core.ID, path string, e fs.DirEntry) (job, bool) {
	name := e.Name()
	isDir := e.Type().IsDir()
	if isDir && c.skipped(name, path) {
		c.log.Debug("skipping directory", logging.String("path", path))
		return job{}, false
	}

	kind := core.File
	if isDir {
		kind = core.Dir
	}

	info, err := e.Info()
	if err != nil {
		id, cerr := c.tree.CreateNode(parent, name, kind, 0)
		if cerr != nil {
			c.log.Warn("create node", logging.String("path", path), logging.Err(cerr))
			return job{}, false
		}
		c.count(kind, 0)
		c.store.Put(id, meta.Entry{Name: name, Kind: kind})
		c.fail(id, path, "lstat", err)
		if isDir {
			_ = c.tree.Finalize(id)
		}
		return job{}, false
	}

	if isDir {
		if c.hasDev {
			if dev, ok := deviceOf(info); ok && dev != c.rootDev {
				c.log.Debug("skipping mount point", logging.String("path", path))
				return job{}, false
			}
		}
		id, err := c.tree.CreateNode(parent, name, core.Dir, 0)
		if err != nil {
			c.log.Warn("create node", logging.String("path", path), logging.Err(err))
			return job{}, false
		}
		c.count(core.Dir, 0)
		c.store.Put(id, meta.Entry{Name: name, Kind: core.Dir, Mode: info.Mode(), ModTime: info.ModTime()})
		return job{id: id, path: path}, true
	}

	size := c.sizeOf(info)
	id, err := c.tree.CreateNode(parent, name, core.File, size)
	if err != nil {
		c.log.Warn("create node", logging.String("path", path), logging.Err(err))
		return job{}, false
	}
	c.count(core.File, size)
	c.store.Put(id, meta.Entry{
		Name:    name,
		Kind:    core.File,
		Size:    size,
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
		Symlink: info.Mode()&fs.ModeSymlink != 0,
	})
	return job{}, false
}

func (c *Crawler) skipped(name, path string) bool {
	if _, ok := c.skip[name]; ok {
		return true
	}
	return strings.HasSuffix(filepath.ToSlash(path), dockerVMSuffix)
}

func (c *Crawler) sizeOf(info fs.FileInfo) int64 {
	if c.opts.Allocated {
		if size, ok := allocatedSize(info, &c.inodes); ok {
			return size
		}
	}
	return info.Size()
}

func (c *Crawler) count(kind core.Kind, size int64) {
	c.entries.Add(1)
	if kind == core.Dir {
		c.dirs.Add(1)
	} else {
		c.files.Add(1)
		c.bytes.Add(size)
	}
	c.metrics.RecordEntry(kind.String(), size)
}

func (c *Crawler) fail(id core.ID, path, op string, err error) {
	c.errs.Add(1)
	entryErr := &core.EntryError{Path: path, Op: op, Err: err}
	_ = c.tree.MarkError(id)
	c.store.SetError(id, entryErr)
	c.metrics.RecordError(op)
	c.log.Debug("entry error", logging.String("path", path), logging.String("op", op), logging.Err(err))
}
