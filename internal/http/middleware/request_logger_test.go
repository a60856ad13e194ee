package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

func TestRequestLoggerLevelsByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusConflict, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		mw := RequestLogger(logging.NewWithWriter("debug", &buf))
		h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/appointments", nil))

		var line map[string]any
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("decode log line: %v (%s)", err, buf.String())
		}
		if line["level"] != tt.level {
			t.Fatalf("status %d: expected level %s, got %v", tt.status, tt.level, line["level"])
		}
		if line["path"] != "/api/appointments" || line["method"] != http.MethodPost {
			t.Fatalf("unexpected request fields: %v", line)
		}
		if _, ok := line["trace_id"]; ok {
			t.Fatalf("no span in context, trace_id should be absent")
		}
	}
}

func TestRequestLoggerIncludesTraceID(t *testing.T) {
	var buf bytes.Buffer
	mw := RequestLogger(logging.NewWithWriter("info", &buf))
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	traceID := trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36}
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: trace.SpanID{1}})
	req := httptest.NewRequest(http.MethodGet, "/api/doctors", nil)
	req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), `"trace_id":"4bf92f3577b34da6a3ce929d0e0e4736"`) {
		t.Fatalf("expected trace id in log line: %s", buf.String())
	}
}
