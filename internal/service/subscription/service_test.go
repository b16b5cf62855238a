package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medelle/practice-api/internal/model"
	"github.com/medelle/practice-api/internal/paypal"
	"github.com/medelle/practice-api/internal/repository/memory"
	apperrors "github.com/medelle/practice-api/pkg/errors"
	"github.com/medelle/practice-api/pkg/metrics"
)

type fakeProvider struct {
	created    []paypal.Subscriber
	fetched    []string
	simulated  []string
	status     string
	webhookID  string
	createErr  error
	verifyErr  error
	verifyCall int
}

func (f *fakeProvider) CreateSubscription(_ context.Context, sub paypal.Subscriber) (*paypal.Subscription, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, sub)
	return &paypal.Subscription{ID: "I-NEW", Status: "APPROVAL_PENDING"}, nil
}

func (f *fakeProvider) GetSubscription(_ context.Context, id string) (*paypal.Subscription, error) {
	f.fetched = append(f.fetched, id)
	return &paypal.Subscription{ID: id, Status: "APPROVAL_PENDING"}, nil
}

func (f *fakeProvider) VerifyWebhookSignature(context.Context, paypal.WebhookHeaders, json.RawMessage) (string, error) {
	f.verifyCall++
	return f.status, f.verifyErr
}

func (f *fakeProvider) SimulateEvent(_ context.Context, _ string, eventType string) error {
	f.simulated = append(f.simulated, eventType)
	return nil
}

func (f *fakeProvider) WebhookID() string { return f.webhookID }

type fixture struct {
	ctx      context.Context
	svc      *Service
	store    *memory.Store
	provider *fakeProvider
	metrics  *metrics.Metrics
	now      time.Time
}

func setup(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store := memory.NewStore()
	provider := &fakeProvider{status: paypal.VerificationSuccess, webhookID: "WH-1"}
	m := metrics.New("test", prometheus.NewRegistry())
	svc := NewService(store, provider, cfg, m)
	now := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return &fixture{ctx: context.Background(), svc: svc, store: store, provider: provider, metrics: m, now: now}
}

func (f *fixture) user(t *testing.T, email string, sub model.Subscription) *model.User {
	t.Helper()
	u := &model.User{Email: email, Name: "Doc", Subscription: sub}
	require.NoError(t, f.store.Users().Create(f.ctx, u))
	return u
}

func subID(id string) *string { return &id }

func TestGenerate(t *testing.T) {
	f := setup(t, Config{})

	fresh := f.user(t, "fresh@example.com", model.Subscription{})
	sub, err := f.svc.Generate(f.ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, "I-NEW", sub.ID)
	require.Len(t, f.provider.created, 1)
	assert.Equal(t, "fresh@example.com", f.provider.created[0].Email)

	stored, err := f.store.Users().Get(f.ctx, fresh.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Subscription.SubscriptionID)
	assert.Equal(t, "I-NEW", *stored.Subscription.SubscriptionID)
	assert.Equal(t, model.SubscriptionInactive, stored.Subscription.Type)

	// a second call re-checks the existing subscription
	sub, err = f.svc.GenerateForUser(f.ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, "I-NEW", sub.ID)
	assert.Len(t, f.provider.created, 1)
	assert.Equal(t, []string{"I-NEW"}, f.provider.fetched)
}

func TestGenerate_AlreadySubscribed(t *testing.T) {
	f := setup(t, Config{})

	for _, typ := range []model.SubscriptionType{model.SubscriptionActive, model.SubscriptionSinglePurchase} {
		u := f.user(t, string(typ)+"@example.com", model.Subscription{Type: typ})
		_, err := f.svc.Generate(f.ctx, u)
		assert.True(t, apperrors.IsKind(err, apperrors.KindConflict), typ)
	}
	assert.Empty(t, f.provider.created)
}

func TestGenerate_ProviderFailure(t *testing.T) {
	f := setup(t, Config{})
	f.provider.createErr = errors.New("boom")

	u := f.user(t, "doc@example.com", model.Subscription{})
	_, err := f.svc.Generate(f.ctx, u)
	assert.True(t, apperrors.IsKind(err, apperrors.KindUpstream))
}

func TestApplyEvent_Transitions(t *testing.T) {
	f := setup(t, Config{})
	u := f.user(t, "doc@example.com", model.Subscription{SubscriptionID: subID("I-1")})

	event := WebhookEvent{EventType: EventActivated}
	event.Resource.ID = "I-1"
	require.NoError(t, f.svc.ApplyEvent(f.ctx, event))

	stored, err := f.store.Users().Get(f.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionActive, stored.Subscription.Type)
	require.NotNil(t, stored.Subscription.DueDate)
	assert.Equal(t, time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), stored.Subscription.DueDate.UTC())

	event.EventType = EventSuspended
	require.NoError(t, f.svc.ApplyEvent(f.ctx, event))

	stored, err = f.store.Users().Get(f.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionInactive, stored.Subscription.Type)
	assert.Nil(t, stored.Subscription.DueDate)
	require.NotNil(t, stored.Subscription.SubscriptionID)
	assert.Equal(t, "I-1", *stored.Subscription.SubscriptionID)

	events, err := f.store.Outbox().GetPendingEvents(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventSubscriptionChanged, events[0].EventType)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WebhookEvents.WithLabelValues(EventActivated, OutcomeApplied)))
}

func TestApplyEvent_NoOps(t *testing.T) {
	f := setup(t, Config{})
	single := f.user(t, "single@example.com", model.Subscription{Type: model.SubscriptionSinglePurchase, SubscriptionID: subID("I-S")})

	cancelled := WebhookEvent{EventType: EventCancelled}
	cancelled.Resource.ID = "I-UNKNOWN"
	require.NoError(t, f.svc.ApplyEvent(f.ctx, cancelled))

	cancelled.Resource.ID = "I-S"
	require.NoError(t, f.svc.ApplyEvent(f.ctx, cancelled))

	failed := WebhookEvent{EventType: EventPaymentFailed}
	failed.Resource.ID = "I-S"
	require.NoError(t, f.svc.ApplyEvent(f.ctx, failed))

	stored, err := f.store.Users().Get(f.ctx, single.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionSinglePurchase, stored.Subscription.Type)

	events, err := f.store.Outbox().GetPendingEvents(f.ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WebhookEvents.WithLabelValues(EventCancelled, OutcomeUnmatched)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WebhookEvents.WithLabelValues(EventCancelled, OutcomeSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WebhookEvents.WithLabelValues(EventPaymentFailed, OutcomeIgnored)))
}

func TestApplyEvent_UnknownTypesShareOneLabel(t *testing.T) {
	f := setup(t, Config{})

	for _, eventType := range []string{"X.ONE", "X.TWO", "X.THREE"} {
		var event WebhookEvent
		event.EventType = eventType
		event.Resource.ID = "I-ANY"
		require.NoError(t, f.svc.ApplyEvent(f.ctx, event))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.WebhookEvents.WithLabelValues(eventTypeOther, OutcomeIgnored)))
	assert.Equal(t, 1, testutil.CollectAndCount(f.metrics.WebhookEvents))
}

func completeHeaders() paypal.WebhookHeaders {
	return paypal.WebhookHeaders{
		TransmissionID:   "t-1",
		TransmissionTime: "2026-01-01T00:00:00Z",
		CertURL:          "https://example.com/cert",
		AuthAlgo:         "SHA256withRSA",
		TransmissionSig:  "sig",
	}
}

func TestHandleWebhook_Verification(t *testing.T) {
	body := []byte(`{"id":"WH-EVT","event_type":"BILLING.SUBSCRIPTION.ACTIVATED","resource":{"id":"I-1"}}`)

	t.Run("missing headers", func(t *testing.T) {
		f := setup(t, Config{VerifyWebhooks: true})
		err := f.svc.HandleWebhook(f.ctx, paypal.WebhookHeaders{TransmissionID: "t-1"}, body)
		require.Error(t, err)
		assert.Equal(t, msgMissingHeaders, err.Error())
		assert.Zero(t, f.provider.verifyCall)
	})

	t.Run("rejected signature", func(t *testing.T) {
		f := setup(t, Config{VerifyWebhooks: true})
		f.provider.status = "FAILURE"
		u := f.user(t, "doc@example.com", model.Subscription{SubscriptionID: subID("I-1")})

		err := f.svc.HandleWebhook(f.ctx, completeHeaders(), body)
		require.Error(t, err)
		assert.Equal(t, msgVerificationFailed, err.Error())

		stored, err := f.store.Users().Get(f.ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SubscriptionInactive, stored.Subscription.Type)
	})

	t.Run("verified", func(t *testing.T) {
		f := setup(t, Config{VerifyWebhooks: true})
		u := f.user(t, "doc@example.com", model.Subscription{SubscriptionID: subID("I-1")})

		require.NoError(t, f.svc.HandleWebhook(f.ctx, completeHeaders(), body))
		stored, err := f.store.Users().Get(f.ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SubscriptionActive, stored.Subscription.Type)
	})

	t.Run("verification disabled", func(t *testing.T) {
		f := setup(t, Config{})
		require.NoError(t, f.svc.HandleWebhook(f.ctx, paypal.WebhookHeaders{}, body))
		assert.Zero(t, f.provider.verifyCall)

		err := f.svc.HandleWebhook(f.ctx, paypal.WebhookHeaders{}, []byte("not json"))
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	})
}

func TestSimulate(t *testing.T) {
	f := setup(t, Config{})
	err := f.svc.Simulate(f.ctx, "", "")
	require.Error(t, err)
	assert.Equal(t, msgSimulationDisabled, err.Error())

	f = setup(t, Config{AllowSimulation: true})
	require.NoError(t, f.svc.Simulate(f.ctx, "", ""))
	assert.Equal(t, []string{DefaultSimulatedEvent}, f.provider.simulated)
}
