package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var errExporterClosed = errors.New("trace exporter is shut down")

// FileExporter appends spans to a file, one JSON object per line.
type FileExporter struct {
	mu  sync.Mutex
	f   *os.File
	buf *bufio.Writer
	enc *json.Encoder
}

var _ sdktrace.SpanExporter = (*FileExporter)(nil)

// NewFileExporter opens path for appending, creating parent directories.
func NewFileExporter(path string) (*FileExporter, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 -- path is cleaned above
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	buf := bufio.NewWriter(f)
	return &FileExporter{f: f, buf: buf, enc: json.NewEncoder(buf)}, nil
}

// ExportSpans writes the batch and flushes it to the file.
func (e *FileExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	if len(spans) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return errExporterClosed
	}

	for _, s := range spans {
		if err := e.enc.Encode(newSpanRecord(s)); err != nil {
			return fmt.Errorf("encode span %s: %w", s.Name(), err)
		}
	}
	return e.buf.Flush()
}

// Shutdown closes the file. Later exports fail.
func (e *FileExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return nil
	}

	flushErr := e.buf.Flush()
	closeErr := e.f.Close()
	e.f, e.buf, e.enc = nil, nil, nil
	return errors.Join(flushErr, closeErr)
}

// SpanRecord is one line of the trace file.
type SpanRecord struct {
	TraceID      string         `json:"trace_id"`
	SpanID       string         `json:"span_id"`
	ParentSpanID string         `json:"parent_span_id,omitempty"`
	Name         string         `json:"name"`
	Kind         string         `json:"kind"`
	StartTime    string         `json:"start_time"`
	EndTime      string         `json:"end_time"`
	DurationMs   float64        `json:"duration_ms"`
	Status       string         `json:"status"`
	StatusMsg    string         `json:"status_message,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	Events       []EventRecord  `json:"events,omitempty"`
}

// EventRecord is a span event inside a SpanRecord.
type EventRecord struct {
	Name       string         `json:"name"`
	Timestamp  string         `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func newSpanRecord(s sdktrace.ReadOnlySpan) SpanRecord {
	sc := s.SpanContext()
	elapsed := s.EndTime().Sub(s.StartTime())

	rec := SpanRecord{
		TraceID:    sc.TraceID().String(),
		SpanID:     sc.SpanID().String(),
		Name:       s.Name(),
		Kind:       strings.ToUpper(s.SpanKind().String()),
		StartTime:  s.StartTime().Format(time.RFC3339Nano),
		EndTime:    s.EndTime().Format(time.RFC3339Nano),
		DurationMs: float64(elapsed.Microseconds()) / 1000,
		Status:     statusName(s.Status().Code),
		StatusMsg:  s.Status().Description,
		Attributes: attributeMap(s.Attributes()),
	}
	if parent := s.Parent(); parent.IsValid() {
		rec.ParentSpanID = parent.SpanID().String()
	}
	for _, ev := range s.Events() {
		rec.Events = append(rec.Events, EventRecord{
			Name:       ev.Name,
			Timestamp:  ev.Time.Format(time.RFC3339Nano),
			Attributes: attributeMap(ev.Attributes),
		})
	}
	return rec
}

func attributeMap(kvs []attribute.KeyValue) map[string]any {
	if len(kvs) == 0 {
		return nil
	}
	m := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

func statusName(c codes.Code) string {
	switch c {
	case codes.Ok:
		return "OK"
	case codes.Error:
		return "ERROR"
	default:
		return "UNSET"
	}
}
