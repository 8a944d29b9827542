package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestScanRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(reg)

	s.RecordEntry("file", 100)
	s.RecordEntry("file", 50)
	s.RecordEntry("dir", 0)
	s.RecordError("readdir")
	s.RecordDirRead(2 * time.Millisecond)
	s.SetQueueDepth(4)

	if got := testutil.ToFloat64(s.entriesTotal.WithLabelValues("file")); got != 2 {
		t.Errorf("file entries = %v, want 2", got)
	}
	if got := testutil.ToFloat64(s.bytesTotal); got != 150 {
		t.Errorf("bytes = %v, want 150", got)
	}
	if got := testutil.ToFloat64(s.errorsTotal.WithLabelValues("readdir")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.queueDepth); got != 4 {
		t.Errorf("queue depth = %v, want 4", got)
	}
}

func TestNilScanIsSafe(t *testing.T) {
	var s *Scan
	s.RecordEntry("file", 1)
	s.RecordError("lstat")
	s.RecordDirRead(time.Second)
	s.WorkerBusy(1)
	s.SetQueueDepth(1)
	s.RecordScanDone(time.Second)
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).RecordEntry("file", 10)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "spacemap_bytes_scanned_total 10") {
		t.Errorf("metrics body missing counter:\n%s", rec.Body.String())
	}
}
