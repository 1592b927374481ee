package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type blockingSink struct {
	release chan struct{}
	got     chan Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.got <- e
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{}), got: make(chan Event, 8)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// one event held by the sink, one in the buffer, the rest dropped
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "e"})
	}
	deadline := time.Now().Add(2 * time.Second)
	for d.Dropped() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if d.Dropped() < 3 {
		t.Fatalf("expected at least 3 drops, got %d", d.Dropped())
	}

	close(sink.release)
	d.Close()
}

func TestDispatcherBlockingModeHonorsContext(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{}), got: make(chan Event, 8)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: false}, sink)

	d.Emit(context.Background(), Event{EventType: "held"})
	deadline := time.Now().Add(2 * time.Second)
	for len(d.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Emit(context.Background(), Event{EventType: "buffered"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{EventType: "late"})
	if d.Dropped() != 1 {
		t.Fatalf("expected 1 drop after ctx expiry, got %d", d.Dropped())
	}

	close(sink.release)
	d.Close()
	if len(sink.got) != 2 {
		t.Fatalf("expected 2 delivered events, got %d", len(sink.got))
	}
}

func TestDispatcherCloseDrains(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "e"})
	}
	d.Close()
	d.Close()

	if got := len(sink.Events()); got != 10 {
		t.Fatalf("expected 10 events after close, got %d", got)
	}
	d.Emit(context.Background(), Event{EventType: "after-close"})
	if got := len(sink.Events()); got != 10 {
		t.Fatal("event accepted after close")
	}
}

type panicSink struct{}

func (panicSink) Emit(context.Context, Event) { panic("sink down") }

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, DropIfFull: true}, panicSink{})
	d.Emit(context.Background(), Event{EventType: "a"})
	d.Emit(context.Background(), Event{EventType: "b"})
	d.Close()

	if got := d.Dropped(); got != 2 {
		t.Fatalf("expected 2 drops from panicking sink, got %d", got)
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{
		EventType: "recovery_otp_issue",
		SessionID: "s1",
		Success:   true,
		Metadata:  map[string]string{"phone": "****3210"},
	})

	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("invalid json line %q: %v", line, err)
	}
	if decoded["event_type"] != "recovery_otp_issue" || decoded["session_id"] != "s1" {
		t.Fatalf("unexpected record %v", decoded)
	}
	if _, ok := decoded["subject"]; ok {
		t.Fatal("empty subject should be omitted")
	}
}

func TestLoggerSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLoggerSink(zap.New(core))

	sink.Emit(context.Background(), Event{
		EventType: "recovery_cancel",
		SessionID: "s1",
		Channel:   "email",
		Success:   true,
		Metadata:  map[string]string{"reason": "user"},
	})

	entries := logs.FilterMessage("recovery_cancel").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["session_id"] != "s1" || fields["meta.reason"] != "user" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if entries[0].LoggerName != "audit" {
		t.Fatalf("unexpected logger name %q", entries[0].LoggerName)
	}
}
