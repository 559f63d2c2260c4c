package inspect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordingTracer struct {
	embedded.Tracer
	spans []*recordingSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	s := &recordingSpan{name: name, attrs: map[attribute.Key]attribute.Value{}}
	s.SetAttributes(cfg.Attributes()...)
	t.spans = append(t.spans, s)
	return trace.ContextWithSpan(ctx, s), s
}

type recordingSpan struct {
	noop.Span
	name   string
	attrs  map[attribute.Key]attribute.Value
	status codes.Code
	ended  bool
}

func (s *recordingSpan) SetName(name string) { s.name = name }

func (s *recordingSpan) SetAttributes(kv ...attribute.KeyValue) {
	for _, a := range kv {
		s.attrs[a.Key] = a.Value
	}
}

func (s *recordingSpan) SetStatus(code codes.Code, _ string) { s.status = code }

func (s *recordingSpan) End(...trace.SpanEndOption) { s.ended = true }

func TestTracingNamesSpanAfterRoute(t *testing.T) {
	tracer := &recordingTracer{}
	r := chi.NewRouter()
	r.Use(tracing(tracer))
	r.Get("/debug/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := trace.SpanFromContext(r.Context()).(*recordingSpan); !ok {
			t.Error("expected request context to carry the span")
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/items/7", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
	if len(tracer.spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(tracer.spans))
	}
	span := tracer.spans[0]
	if span.name != "inspect GET /debug/items/{id}" {
		t.Errorf("expected span name %q, got %q", "inspect GET /debug/items/{id}", span.name)
	}
	if got := span.attrs["http.status_code"].AsInt64(); got != 503 {
		t.Errorf("expected status attribute 503, got %d", got)
	}
	if got := span.attrs["http.target"].AsString(); got != "/debug/items/7" {
		t.Errorf("expected target %q, got %q", "/debug/items/7", got)
	}
	if span.status != codes.Error {
		t.Errorf("expected error status, got %v", span.status)
	}
	if !span.ended {
		t.Error("expected span to be ended")
	}
}

func TestTracingDefaultsStatusToOK(t *testing.T) {
	tracer := &recordingTracer{}
	r := chi.NewRouter()
	r.Use(tracing(tracer))
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))

	span := tracer.spans[0]
	if got := span.attrs["http.status_code"].AsInt64(); got != 200 {
		t.Errorf("expected status attribute 200, got %d", got)
	}
	if span.status != codes.Unset {
		t.Errorf("expected unset status, got %v", span.status)
	}
}
