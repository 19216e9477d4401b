package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestJobStarted_RecordsOutcome(t *testing.T) {
	t.Parallel()

	m := New()
	done := m.JobStarted()
	if got := testutil.ToFloat64(m.InFlight); got != 1 {
		t.Fatalf("in flight = %v, want 1", got)
	}
	done(OutcomeOK)
	if got := testutil.ToFloat64(m.InFlight); got != 0 {
		t.Fatalf("in flight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.AudioJobs.WithLabelValues(OutcomeOK)); got != 1 {
		t.Fatalf("ok jobs = %v, want 1", got)
	}
}

func TestRecordTranscript_Tokens(t *testing.T) {
	t.Parallel()

	m := New()
	m.RecordTranscript(time.Second, 2*time.Second, 10*time.Second, 120, 30)
	if got := testutil.ToFloat64(m.ModelTokens.WithLabelValues("input")); got != 120 {
		t.Fatalf("input tokens = %v", got)
	}
	if got := testutil.ToFloat64(m.ModelTokens.WithLabelValues("output")); got != 30 {
		t.Fatalf("output tokens = %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.RecordUpdate()
	m.RecordPollError()
	m.RecordCommand("start")
	m.RecordDownload(10)
	m.RecordUnauthorized()
	m.RecordTranscript(0, 0, 0, 0, 0)
	m.JobStarted()(OutcomeOK)
}

func TestHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.RecordCommand("help")
	srv := httptest.NewServer(m.Handler("v1.2.3", time.Now()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var health map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if health["status"] != "ok" || health["version"] != "v1.2.3" {
		t.Fatalf("unexpected health body: %#v", health)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `transcribebot_telegram_commands_total{command="help"} 1`) {
		t.Fatalf("metrics output missing command counter:\n%s", body)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/health", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health status = %d", resp.StatusCode)
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), nil) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Serve did not stop")
	}
}
