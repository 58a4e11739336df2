package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	inats "github.com/studypath/studypath/internal/nats"
)

// EventPublisher publishes recommendation events.
type EventPublisher interface {
	PublishRecommendation(ctx context.Context, event inats.RecommendationEvent) error
}

// Recorder logs issued content. Events go to NATS when a publisher is
// configured; otherwise they are written straight to the store. Failures
// are logged and never reach the caller.
type Recorder struct {
	publisher EventPublisher
	store     Inserter
	now       func() time.Time
}

func NewRecorder(publisher EventPublisher, store Inserter) *Recorder {
	return &Recorder{publisher: publisher, store: store, now: time.Now}
}

// Record logs one issued item. details is marshaled to JSON.
func (r *Recorder) Record(ctx context.Context, studentID, typ, relatedCourse string, details any) {
	if r == nil || studentID == "" {
		return
	}

	var raw json.RawMessage
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			slog.Warn("activity: encoding details", "error", err, "type", typ)
		} else {
			raw = data
		}
	}

	event := inats.RecommendationEvent{
		ID:            uuid.New(),
		StudentID:     studentID,
		Type:          typ,
		RelatedCourse: relatedCourse,
		Details:       raw,
		Timestamp:     r.now().UTC(),
	}

	if r.publisher != nil {
		if err := r.publisher.PublishRecommendation(ctx, event); err != nil {
			slog.Warn("activity: publishing event", "error", err, "type", typ)
		}
		return
	}
	if r.store != nil {
		if err := r.store.Insert(ctx, logFromEvent(event)); err != nil {
			slog.Warn("activity: persisting log", "error", err, "type", typ)
		}
	}
}
