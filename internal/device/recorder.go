package device

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// EventKind names a recorded input event.
type EventKind string

const (
	EventWarp       EventKind = "warp"
	EventPress      EventKind = "press"
	EventRelease    EventKind = "release"
	EventKeyPress   EventKind = "key_press"
	EventKeyRelease EventKind = "key_release"
)

// Event is one synthesized input event.
type Event struct {
	Kind      EventKind
	Point     models.Point
	Button    Button
	Key       string
	Modifiers []Modifier
}

// Recorder is an InputSynthesizer that records events instead of emitting
// them. It backs dry-run mode.
type Recorder struct {
	logger *zap.Logger

	mu     sync.Mutex
	events []Event
}

// NewRecorder creates a Recorder. A nil logger discards output.
func NewRecorder(logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{logger: logger}
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	if r.logger == nil {
		return
	}
	r.logger.Info("dry-run input",
		zap.String("kind", string(e.Kind)),
		zap.Int("x", e.Point.X),
		zap.Int("y", e.Point.Y),
		zap.String("key", e.Key))
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) WarpPointer(_ context.Context, p models.Point) error {
	r.record(Event{Kind: EventWarp, Point: p})
	return nil
}

func (r *Recorder) Press(_ context.Context, p models.Point, button Button) error {
	r.record(Event{Kind: EventPress, Point: p, Button: button})
	return nil
}

func (r *Recorder) Release(_ context.Context, p models.Point, button Button) error {
	r.record(Event{Kind: EventRelease, Point: p, Button: button})
	return nil
}

func (r *Recorder) KeyPress(_ context.Context, key string, mods []Modifier) error {
	r.record(Event{Kind: EventKeyPress, Key: key, Modifiers: mods})
	return nil
}

func (r *Recorder) KeyRelease(_ context.Context, key string, mods []Modifier) error {
	r.record(Event{Kind: EventKeyRelease, Key: key, Modifiers: mods})
	return nil
}
