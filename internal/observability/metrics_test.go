package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/econctl/internal/logging"
	"github.com/danmuck/econctl/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordRead(42, 2)
	RecordCommandSent()
	RecordFault("disconnected")
	RecordAuth("authenticated", 12*time.Millisecond)
	SessionStarted()
	SessionEnded()

	logging.Debugf("observability/metrics: registration idempotent and recording paths executed")
}

func TestHandlerExposesEngineMetrics(t *testing.T) {
	testlog.Start(t)
	RecordCommandSent()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(body), "econctl_engine_commands_sent_total") {
		t.Fatalf("metrics body missing engine counter")
	}
}
