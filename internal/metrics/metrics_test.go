package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hostwatch/collector/internal/monitor"
	"github.com/hostwatch/collector/internal/pipeline"
	"github.com/hostwatch/collector/internal/telemetry"
)

var (
	_ pipeline.Recorder = (*Metrics)(nil)
	_ monitor.Recorder  = (*Metrics)(nil)
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestMetricsExposition(t *testing.T) {
	m := New()

	m.EventQueued(telemetry.TypeProcessStart)
	m.EventQueued(telemetry.TypeProcessStart)
	m.EventDropped(telemetry.TypeFile)
	m.EventWritten(telemetry.TypeProcessStart)
	m.SinkFailure("serialize")
	m.CycleFailed("network")
	m.Tracked("process", 312)
	m.WatcherUp("usb", true)
	m.WatcherUp("file", false)

	body := scrape(t, m)
	for _, want := range []string{
		`hostwatch_events_queued_total{event_type="process_start"} 2`,
		`hostwatch_events_dropped_total{event_type="file_event"} 1`,
		`hostwatch_events_written_total{event_type="process_start"} 1`,
		`hostwatch_sink_failures_total{reason="serialize"} 1`,
		`hostwatch_watcher_cycle_failures_total{watcher="network"} 1`,
		`hostwatch_watcher_tracked{watcher="process"} 312`,
		`hostwatch_watcher_up{watcher="usb"} 1`,
		`hostwatch_watcher_up{watcher="file"} 0`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestMetricsSeriesExistBeforeFirstEvent(t *testing.T) {
	body := scrape(t, New())
	for _, typ := range telemetry.Types() {
		want := `hostwatch_events_dropped_total{event_type="` + string(typ) + `"} 0`
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestMetricsIndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.SinkFailure("write")

	if strings.Contains(scrape(t, b), `hostwatch_sink_failures_total{reason="write"}`) {
		t.Error("counter leaked between registries")
	}
}
