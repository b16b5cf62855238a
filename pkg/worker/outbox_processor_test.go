package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medelle/practice-api/internal/model"
	"github.com/medelle/practice-api/internal/repository/memory"
	"github.com/medelle/practice-api/pkg/messaging"
	"github.com/medelle/practice-api/pkg/metrics"
)

type failingBroker struct {
	messaging.Broker
	calls int
}

func (b *failingBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.calls++
	return errors.New("redis unavailable")
}

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		RetryDelay:    0,
		Channel:       "medelle.events",
	}
}

func seedEvent(t *testing.T, store *memory.Store) *model.OutboxEvent {
	t.Helper()
	event, err := model.NewOutboxEvent(model.EventPatientCreated, uuid.New(), uuid.New(), map[string]string{"name": "P"})
	require.NoError(t, err)
	require.NoError(t, store.Outbox().Create(context.Background(), event))
	return event
}

func TestNewOutboxProcessor_RejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 0
	_, err := NewOutboxProcessor(memory.NewStore().Outbox(), messaging.NewLocalBroker(), cfg, zerolog.Nop(), metrics.New("test", nil))
	assert.Error(t, err)
}

func TestProcessBatch_PublishesAndMarksProcessed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewStore()
	broker := messaging.NewLocalBroker()
	defer broker.Close()
	m := metrics.New("test", prometheus.NewRegistry())

	event := seedEvent(t, store)
	ch, err := broker.Subscribe(ctx, "medelle.events")
	require.NoError(t, err)

	p, err := NewOutboxProcessor(store.Outbox(), broker, testConfig(), zerolog.Nop(), m)
	require.NoError(t, err)

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case raw := <-ch:
		var msg struct {
			ID      string            `json:"id"`
			Type    string            `json:"type"`
			Payload map[string]string `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, event.ID.String(), msg.ID)
		assert.Equal(t, model.EventPatientCreated, msg.Type)
		assert.Equal(t, "P", msg.Payload["name"])
	case <-time.After(time.Second):
		t.Fatal("event not published")
	}

	pending, err := store.Outbox().GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsProcessed))
}

func TestProcessBatch_FailureMarksEventFailedAfterRetries(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	broker := &failingBroker{}
	m := metrics.New("test", prometheus.NewRegistry())
	seedEvent(t, store)

	p, err := NewOutboxProcessor(store.Outbox(), broker, testConfig(), zerolog.Nop(), m)
	require.NoError(t, err)

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, broker.calls)

	// still pending after the first failed delivery
	pending, err := store.Outbox().GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)

	_, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	pending, err = store.Outbox().GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OutboxEventsFailed))
}

func TestOutboxCleanupWorker_RunOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	event := seedEvent(t, store)
	require.NoError(t, store.Outbox().MarkProcessed(ctx, event.ID))

	w := NewOutboxCleanupWorker(store.Outbox(), -time.Minute, time.Hour, zerolog.Nop())
	w.RunOnce(ctx)

	n, err := store.Outbox().DeleteProcessedBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}
