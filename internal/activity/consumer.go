package activity

import (
	"context"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go/jetstream"

	inats "github.com/studypath/studypath/internal/nats"
)

const consumerName = "recommendation-log-persister"

// Inserter persists log entries.
type Inserter interface {
	Insert(ctx context.Context, l *Log) error
}

// Consumer listens on the recommendation subject and persists entries.
type Consumer struct {
	store       Inserter
	consumerMgr *inats.ConsumerManager
}

func NewConsumer(store Inserter, consumerMgr *inats.ConsumerManager) *Consumer {
	return &Consumer{
		store:       store,
		consumerMgr: consumerMgr,
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, inats.StreamEvents, consumerName, inats.SubjectRecommendation)
	if err != nil {
		return err
	}

	slog.Info("activity consumer started", "consumer", consumerName)

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("activity consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleEvent(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) handleEvent(ctx context.Context, msg jetstream.Msg) {
	var event inats.RecommendationEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		slog.Error("activity consumer: unmarshaling event", "error", err)
		// Redelivery cannot fix a malformed payload.
		_ = msg.Term()
		return
	}

	l := logFromEvent(event)
	if err := c.store.Insert(ctx, l); err != nil {
		slog.Error("activity consumer: persisting log", "error", err, "type", event.Type)
		_ = msg.NakWithDelay(inats.RedeliveryDelay)
		return
	}

	_ = msg.Ack()

	slog.Debug("activity consumer: persisted event",
		"type", event.Type,
		"student_id", event.StudentID,
		"related_course", event.RelatedCourse,
	)
}

func logFromEvent(event inats.RecommendationEvent) *Log {
	return &Log{
		ID:            event.ID,
		StudentID:     event.StudentID,
		LogDate:       event.Timestamp,
		Type:          event.Type,
		RelatedCourse: event.RelatedCourse,
		Details:       event.Details,
	}
}
