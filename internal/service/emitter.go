package service

import (
	"context"
	"log"
	"sync"

	"copyflat/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter — decouples services from their front end
// ─────────────────────────────────────────────────────────────

// EventEmitter receives progress events from services.
// The CLI prints them through LogEmitter; tests record them with MockEmitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// Event names emitted by ConvertService.
const (
	EventCompileTable = "compile:table"
	EventCompileDone  = "compile:done"
	EventConvertFile  = "convert:file"
	EventConvertDone  = "convert:done"
)

// LogEmitter writes events to the standard logger.
type LogEmitter struct{}

func (LogEmitter) Emit(_ context.Context, event string, data any) {
	switch v := data.(type) {
	case domain.FileResult:
		switch {
		case v.Skip != domain.SkipNone:
			log.Printf("%s: %s skipped (%s)", event, v.Table, v.Skip)
		case v.Error != "":
			log.Printf("%s: %s error: %s", event, v.Table, v.Error)
		default:
			log.Printf("%s: %s -> %s (%d rows, %d loaded)", event, v.Table, v.Output, v.Rows, v.Loaded)
		}
	case *domain.RunLog:
		log.Printf("%s: %s, %d files, %d skipped, %d rows", event, v.Status, v.Files, v.Skipped, v.Rows)
	default:
		log.Printf("%s: %v", event, data)
	}
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Named returns the recorded events with the given name.
func (m *MockEmitter) Named(event string) []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EmittedEvent
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
