package inkwell

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventType enumerates the ordered event stream a caller can observe.
type EventType string

const (
	EventStepStart    EventType = "step_start"
	EventStepComplete EventType = "step_complete"
	EventInterrupt    EventType = "interrupt"
	EventError        EventType = "error"
	EventEnd          EventType = "end"
)

// Event is one entry in a thread's progress stream. Events for a thread are
// emitted in execution order; Output carries the step's product (outline,
// research counts, draft ids) and Payload carries interrupt data such as the
// pending outline.
type Event struct {
	ThreadID string    `json:"thread_id"`
	Type     EventType `json:"type"`
	Step     Step      `json:"step,omitempty"`
	Stage    Stage     `json:"stage,omitempty"`
	Output   any       `json:"output,omitempty"`
	Payload  any       `json:"payload,omitempty"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`
}

// EventHandler receives workflow progress events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *Event)
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event *Event)

func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *Event) {
	f(ctx, event)
}

// NullEventHandler discards all events.
type NullEventHandler struct{}

func (NullEventHandler) HandleEvent(ctx context.Context, event *Event) {}

// EventChain fans each event out to multiple handlers in order.
type EventChain struct {
	handlers []EventHandler
}

func NewEventChain(handlers ...EventHandler) *EventChain {
	return &EventChain{handlers: handlers}
}

// Add appends a handler to the chain.
func (c *EventChain) Add(handler EventHandler) {
	c.handlers = append(c.handlers, handler)
}

func (c *EventChain) HandleEvent(ctx context.Context, event *Event) {
	for _, handler := range c.handlers {
		handler.HandleEvent(ctx, event)
	}
}

// EventRecorder retains every event it sees, in order. Useful for tests and
// for callers that render progress after the fact.
type EventRecorder struct {
	mutex  sync.Mutex
	events []*Event
}

func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

func (r *EventRecorder) HandleEvent(ctx context.Context, event *Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	copied := *event
	r.events = append(r.events, &copied)
}

// Events returns the recorded events in emission order.
func (r *EventRecorder) Events() []*Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	out := make([]*Event, len(r.events))
	copy(out, r.events)
	return out
}

// LogEventHandler writes events to a structured logger.
type LogEventHandler struct {
	logger *slog.Logger
}

func NewLogEventHandler(logger *slog.Logger) *LogEventHandler {
	return &LogEventHandler{logger: logger}
}

func (h *LogEventHandler) HandleEvent(ctx context.Context, event *Event) {
	attrs := []any{
		"thread_id", event.ThreadID,
		"step", string(event.Step),
		"stage", string(event.Stage),
	}
	switch event.Type {
	case EventError:
		h.logger.Error("workflow error", append(attrs, "message", event.Message)...)
	case EventInterrupt:
		h.logger.Info("workflow paused", attrs...)
	default:
		h.logger.Info(string(event.Type), attrs...)
	}
}
