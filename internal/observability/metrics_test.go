package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/testcentre/internal/testutil/testlog"
	"github.com/rs/zerolog"
)

type fakeStatus struct{}

func (fakeStatus) Enabled() bool   { return true }
func (fakeStatus) Connected() bool { return false }
func (fakeStatus) State() string   { return "closed" }

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordFrame("in", 42)
	RecordFrame("out", 8)
	RecordClosure("bad_magic")
	RecordConnectAttempt(false)
	RecordState(2)
	RecordDispatch("quit", "handled")
	RecordEvent(true)
}

func TestRouterServesStateAndMetrics(t *testing.T) {
	testlog.Start(t)
	RecordFrame("in", 16)
	r := NewRouter(zerolog.Nop(), fakeStatus{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("state status=%d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if body["enabled"] != true || body["connected"] != false || body["state"] != "closed" {
		t.Fatalf("unexpected state body: %v", body)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "testcentre_transport_frames_total") {
		t.Fatalf("metrics missing transport counters")
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rec.Code)
	}
}
