package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/entro314-labs/spacemap/internal/config"
	"github.com/entro314-labs/spacemap/internal/core"
	"github.com/entro314-labs/spacemap/internal/layout"
	"github.com/entro314-labs/spacemap/internal/nav"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644); err != nil {
		t.Fatal(err)
	}
}

// fixture:
//
//	big/         6000
//	  one        4000
//	  two        2000
//	mid          3000
//	small/        1000
//	  leaf       1000
func fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "big", "one"), 4000)
	writeFile(t, filepath.Join(root, "big", "two"), 2000)
	writeFile(t, filepath.Join(root, "mid"), 3000)
	writeFile(t, filepath.Join(root, "small", "leaf"), 1000)
	return root
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Aggregate.Enabled = false
	return cfg
}

func start(t *testing.T, root string, cfg config.Config) *Session {
	t.Helper()
	s, err := Start(context.Background(), root, 4, cfg, WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		s.Cancel()
		_ = s.Wait()
	})
	return s
}

func findTile(tiles []core.Tile, name string) (core.Tile, bool) {
	for _, tile := range tiles {
		if tile.Name == name && tile.Aggregate == 0 {
			return tile, true
		}
	}
	return core.Tile{}, false
}

func TestSessionEndToEnd(t *testing.T) {
	s := start(t, fixture(t), testConfig())
	if err := s.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	p := s.Progress()
	if !p.Done || p.Cancelled {
		t.Errorf("Progress = %+v, want done", p)
	}
	if p.Bytes != 10000 || p.Files != 4 || p.Dirs != 2 || p.Entries != 6 {
		t.Errorf("Progress = %+v", p)
	}

	st := s.NewState(core.Rect{W: 400, H: 300})
	tiles, err := s.CurrentView(st)
	if err != nil {
		t.Fatalf("CurrentView: %v", err)
	}
	if len(tiles) != 3 {
		t.Fatalf("got %d top-level tiles, want 3", len(tiles))
	}
	if tiles[0].Name != "big" {
		t.Errorf("largest tile = %q, want big", tiles[0].Name)
	}
	again, err := s.CurrentView(st)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tiles, again) {
		t.Error("CurrentView is not idempotent")
	}

	top := tiles
	big := tiles[0]
	center := core.Point{X: big.X + big.W/2, Y: big.Y + big.H/2}
	st = s.HandlePointer(st, nav.Event{Kind: nav.Click, Pos: center}, tiles)
	if d, _ := st.Depth(big.ID); d != 1 {
		t.Fatalf("depth after click = %d, want 1", d)
	}
	tiles, err = s.CurrentView(st)
	if err != nil {
		t.Fatal(err)
	}
	one, ok := findTile(tiles, "one")
	if !ok {
		t.Fatal("children of big not shown after click")
	}
	if one.Level != 1 || one.Parent != big.ID {
		t.Errorf("one: level %d parent %d", one.Level, one.Parent)
	}

	st = s.HandlePointer(st, nav.Event{Kind: nav.RightClick, Pos: center}, top)
	if st.ZoomRoot != big.ID {
		t.Fatalf("ZoomRoot = %d, want %d", st.ZoomRoot, big.ID)
	}
	zoomed, err := s.CurrentView(st)
	if err != nil {
		t.Fatal(err)
	}
	if len(zoomed) != 2 || zoomed[0].Name != "one" {
		t.Errorf("zoomed view = %+v", zoomed)
	}
	if st = s.ZoomOut(st); st.ZoomRoot != core.RootID {
		t.Errorf("ZoomOut: root %d, want scan root", st.ZoomRoot)
	}
	if st = s.ZoomOut(st); st.ZoomRoot != core.RootID {
		t.Errorf("ZoomOut at the root moved to %d", st.ZoomRoot)
	}

	path, err := s.Path(one.ID)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "one" || !strings.HasPrefix(path, s.Root()) {
		t.Errorf("Path(one) = %q", path)
	}
	if e, ok := s.Entry(one.ID); !ok || e.Size != 4000 {
		t.Errorf("Entry(one) = %+v, %v", e, ok)
	}

	stats := s.Stats()
	if stats.Bytes != 10000 || stats.Files != 4 || !stats.Done || stats.ID != s.ID() {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestSessionPreview(t *testing.T) {
	s := start(t, fixture(t), testConfig())
	if err := s.Wait(); err != nil {
		t.Fatal(err)
	}
	got := s.Preview(2)
	if len(got) != 2 || got[0].Name != "big" || got[1].Name != "mid" {
		t.Fatalf("Preview(2) = %+v", got)
	}
	if got[0].Kind != core.Dir || got[0].Size != 6000 {
		t.Errorf("Preview(2)[0] = %+v", got[0])
	}
	if all := s.Preview(0); len(all) != 3 {
		t.Errorf("Preview(0) returned %d entries, want 3", len(all))
	}
}

func TestSessionAutoZoom(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "only", "a"), 9500)
	writeFile(t, filepath.Join(root, "tiny"), 100)
	s := start(t, root, testConfig())
	if err := s.Wait(); err != nil {
		t.Fatal(err)
	}
	st, ok := s.AutoZoom(s.NewState(core.Rect{W: 100, H: 100}))
	if !ok {
		t.Fatal("AutoZoom declined a dominant directory")
	}
	n, err := s.Tree().Node(st.ZoomRoot)
	if err != nil || n.Name != "only" {
		t.Errorf("zoomed into %+v (%v)", n, err)
	}

	s2 := start(t, fixture(t), testConfig())
	if err := s2.Wait(); err != nil {
		t.Fatal(err)
	}
	if _, ok := s2.AutoZoom(s2.NewState(core.Rect{W: 100, H: 100})); ok {
		t.Error("AutoZoom without a dominant directory")
	}
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Layout.AspectRatio = 1
	_, err := Start(context.Background(), t.TempDir(), 0, cfg)
	if !errors.Is(err, core.ErrInvalidConfiguration) {
		t.Fatalf("Start = %v, want ErrInvalidConfiguration", err)
	}

	cfg = testConfig()
	cfg.Layout.Mode = layout.ModeUnset
	if _, err := Start(context.Background(), t.TempDir(), 0, cfg); !errors.Is(err, core.ErrInvalidConfiguration) {
		t.Fatalf("Start with unset mode = %v", err)
	}
}

func TestStartRejectsBadRoot(t *testing.T) {
	dir := t.TempDir()
	if _, err := Start(context.Background(), filepath.Join(dir, "missing"), 0, testConfig()); !errors.Is(err, core.ErrIO) {
		t.Errorf("missing root: %v, want ErrIO", err)
	}
	file := filepath.Join(dir, "file")
	writeFile(t, file, 1)
	if _, err := Start(context.Background(), file, 0, testConfig()); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("file root: %v, want ErrNotDirectory", err)
	}
}

func TestSessionCancel(t *testing.T) {
	root := t.TempDir()
	for i := range 40 {
		for j := range 40 {
			writeFile(t, filepath.Join(root, fmt.Sprintf("d%03d", i), fmt.Sprintf("s%03d", j), "f"), 10)
		}
	}
	s, err := Start(context.Background(), root, 1, testConfig(), WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Wait() })

	// Progress must never report a finished scan while it is being cancelled.
	stop := make(chan struct{})
	var polled sync.WaitGroup
	polled.Go(func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			if p := s.Progress(); p.Done {
				t.Errorf("Progress reported Done during a cancelled scan: %+v", p)
				return
			}
			runtime.Gosched()
		}
	})

	for s.Progress().Dirs == 0 {
		runtime.Gosched()
	}
	s.Cancel()
	before := make(map[core.ID]int64)
	entries, err := s.Tree().Subtree(core.RootID, 64)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		before[e.ID] = e.Size
	}

	if err := s.Wait(); err != nil {
		t.Fatalf("Wait after Cancel = %v, want nil", err)
	}
	close(stop)
	polled.Wait()

	p := s.Progress()
	if p.Done || !p.Cancelled {
		t.Errorf("Progress = %+v, want Cancelled and not Done", p)
	}
	if err := s.Tree().Check(); err != nil {
		t.Errorf("Check after cancel: %v", err)
	}
	entries, err = s.Tree().Subtree(core.RootID, 64)
	if err != nil {
		t.Fatal(err)
	}
	open := 0
	for _, e := range entries {
		if prev, ok := before[e.ID]; ok && e.Size < prev {
			t.Errorf("node %d shrank from %d to %d after cancel", e.ID, prev, e.Size)
		}
		if e.Kind == core.Dir && !e.Finalized {
			open++
		}
	}
	if open == 0 {
		t.Error("every directory finalized although the scan was cancelled")
	}
	// Cancelling again is harmless.
	s.Cancel()
}

func TestParentContextCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, err := Start(ctx, fixture(t), 2, testConfig(), WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := s.Wait(); err != nil {
		t.Fatalf("Wait = %v", err)
	}
}

func TestCurrentViewConcurrent(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := Start(context.Background(), fixture(t), 2, testConfig(),
		WithLogger(zaptest.NewLogger(t)), WithRegistry(reg))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Wait()

	st := s.NewState(core.Rect{W: 200, H: 200})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				tiles, err := s.CurrentView(st)
				if err != nil {
					t.Error(err)
					return
				}
				for _, tile := range tiles {
					if !tile.Within(st.Canvas, 1e-6) {
						t.Errorf("tile %+v outside canvas", tile.Rect)
					}
				}
			}
		}()
	}
	wg.Wait()

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) == 0 {
		t.Error("no metrics registered on the injected registry")
	}
}

func TestViewKeyDistinguishesStates(t *testing.T) {
	a := nav.New(core.Rect{W: 10, H: 10}, 4)
	b := a
	b.Expanded = map[core.ID]int{3: 1}
	c := a
	c.Expanded = map[core.ID]int{3: 2}
	keys := map[string]bool{viewKey(a): true, viewKey(b): true, viewKey(c): true}
	if len(keys) != 3 {
		t.Errorf("viewKey collided: %v", keys)
	}
	d := nav.New(core.Rect{W: 10, H: 10}, 4)
	d.Expanded[5] = 1
	d.Expanded[2] = 3
	e := nav.New(core.Rect{W: 10, H: 10}, 4)
	e.Expanded[2] = 3
	e.Expanded[5] = 1
	if viewKey(d) != viewKey(e) {
		t.Error("viewKey depends on map order")
	}
}
