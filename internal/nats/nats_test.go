package nats

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypath/studypath/internal/config"
)

func runServer(t *testing.T) *Client {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
	})
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)

	client, err := NewClient(context.Background(), config.NATSConfig{URL: ns.ClientURL()})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestNewClient_EnsuresEventsStream(t *testing.T) {
	client := runServer(t)
	ctx := context.Background()

	stream, err := client.JetStream().Stream(ctx, StreamEvents)
	require.NoError(t, err)
	info, err := stream.Info(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{SubjectEventsWildcard}, info.Config.Subjects)
	assert.Equal(t, duplicateWindow, info.Config.Duplicates)
	assert.True(t, client.Healthy())
}

func TestPublishRecommendation_DeduplicatesByEventID(t *testing.T) {
	client := runServer(t)
	ctx := context.Background()
	pub := NewPublisher(client.JetStream())

	event := RecommendationEvent{
		ID:            uuid.New(),
		StudentID:     "2251061234",
		Type:          TypeRoadmap,
		RelatedCourse: "Databases",
		Details:       json.RawMessage(`{"progress":45}`),
		Timestamp:     time.Now().UTC(),
	}
	require.NoError(t, pub.PublishRecommendation(ctx, event))
	require.NoError(t, pub.PublishRecommendation(ctx, event))

	stream, err := client.JetStream().Stream(ctx, StreamEvents)
	require.NoError(t, err)
	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.State.Msgs)

	consumer, err := NewConsumerManager(client.JetStream()).EnsureConsumer(ctx, StreamEvents, "dedupe-test", SubjectRecommendation)
	require.NoError(t, err)
	batch, err := consumer.Fetch(1, jetstream.FetchMaxWait(2*time.Second))
	require.NoError(t, err)

	var got RecommendationEvent
	for msg := range batch.Messages() {
		require.NoError(t, json.Unmarshal(msg.Data(), &got))
		require.NoError(t, msg.Ack())
	}
	assert.Equal(t, event.ID, got.ID)
	assert.JSONEq(t, `{"progress":45}`, string(got.Details))
}

func TestEnsureConsumer_BoundsRedelivery(t *testing.T) {
	client := runServer(t)
	ctx := context.Background()

	consumer, err := NewConsumerManager(client.JetStream()).EnsureConsumer(ctx, StreamEvents, "bounded", SubjectRecommendation)
	require.NoError(t, err)

	info, err := consumer.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, MaxDeliver, info.Config.MaxDeliver)
	assert.Equal(t, jetstream.AckExplicitPolicy, info.Config.AckPolicy)
}
