package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/scanctl/internal/infrastructure/config"
)

// fakeServer answers /ping and records line protocol posted to /api/v2/write.
type fakeServer struct {
	*httptest.Server
	mu    sync.Mutex
	lines []string
	query []string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body) //nolint:errcheck // Test server
			fs.mu.Lock()
			fs.query = append(fs.query, r.URL.RawQuery)
			for _, l := range strings.Split(strings.TrimSpace(string(body)), "\n") {
				if l != "" {
					fs.lines = append(fs.lines, l)
				}
			}
			fs.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) written() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.lines...)
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "bench",
		Bucket:        "scanctl",
		BatchSize:     100,
		FlushInterval: 60,
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(context.Background(), config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Connect(context.Background(), testConfig(url))
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteRunAndEntries(t *testing.T) {
	fs := newFakeServer(t)
	client, err := Connect(context.Background(), testConfig(fs.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	done := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	client.WriteRun(RunPoint{
		RunID:       "run-1",
		Source:      "api",
		Status:      "partial",
		Requests:    2,
		FramesTotal: 6,
		FramesSent:  5,
		Succeeded:   3,
		Failed:      1,
		Duration:    1500 * time.Millisecond,
		CompletedAt: done,
	})
	client.WriteEntries([]EntryPoint{
		{RunID: "run-1", Controller: "aa:bb:cc:dd:ee:01", Command: "X_FF_Reset", Status: "sent", FramesSent: 3, Repetitions: 3, CompletedAt: done},
	})
	client.Flush()

	lines := fs.written()
	if len(lines) != 2 {
		t.Fatalf("written lines = %d (%v), want 2", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "dispatch_runs,source=api,status=partial ") {
		t.Errorf("run line = %q", lines[0])
	}
	if !strings.Contains(lines[0], "frames_sent=5i") || !strings.Contains(lines[0], "duration_ms=1500i") {
		t.Errorf("run fields = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], `dispatch_entries,command=X_FF_Reset,controller=aa:bb:cc:dd:ee:01,status=sent `) {
		t.Errorf("entry line = %q", lines[1])
	}
	if !strings.Contains(fs.query[0], "bucket=scanctl") || !strings.Contains(fs.query[0], "org=bench") {
		t.Errorf("write query = %q", fs.query[0])
	}
}

func TestWriteAfterClose(t *testing.T) {
	fs := newFakeServer(t)
	client, err := Connect(context.Background(), testConfig(fs.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	client.WriteRun(RunPoint{RunID: "late"})
	client.Flush()

	if len(fs.written()) != 0 {
		t.Error("writes after Close should be dropped")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestPointTimeDefaultsToNow(t *testing.T) {
	before := time.Now()
	p := runPoint(RunPoint{RunID: "r"})
	if p.Time().Before(before) {
		t.Errorf("point time %v before %v", p.Time(), before)
	}
}

func TestCloseNil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
