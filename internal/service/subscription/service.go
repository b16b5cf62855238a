// Package subscription keeps a user's billing state in step with the
// payment provider. Users move between inactive and active on provider
// webhook events; single-purchase users are never moved.
package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medelle/practice-api/internal/model"
	"github.com/medelle/practice-api/internal/paypal"
	"github.com/medelle/practice-api/internal/repository"
	apperrors "github.com/medelle/practice-api/pkg/errors"
	"github.com/medelle/practice-api/pkg/metrics"
)

// Provider event types
const (
	EventActivated     = "BILLING.SUBSCRIPTION.ACTIVATED"
	EventRenewed       = "BILLING.SUBSCRIPTION.RENEWED"
	EventCancelled     = "BILLING.SUBSCRIPTION.CANCELLED"
	EventSuspended     = "BILLING.SUBSCRIPTION.SUSPENDED"
	EventExpired       = "BILLING.SUBSCRIPTION.EXPIRED"
	EventPaymentFailed = "BILLING.SUBSCRIPTION.PAYMENT.FAILED"

	DefaultSimulatedEvent = "PAYMENT.AUTHORIZATION.CREATED"
)

const (
	msgAlreadySubscribed  = "User already has an active subscription"
	msgUserNotFound       = "User not found"
	msgProviderError      = "Payment provider error"
	msgMissingHeaders     = "Missing required PayPal webhook headers"
	msgVerificationFailed = "Webhook verification failed"
	msgInvalidPayload     = "Invalid webhook payload"
	msgSimulationDisabled = "Webhook simulation is only available in development mode"
)

// Webhook outcomes, used as the metric label
const (
	OutcomeApplied   = "applied"
	OutcomeIgnored   = "ignored"
	OutcomeUnmatched = "unmatched"
	OutcomeSkipped   = "skipped"
)

// Provider is the part of the payment provider client the state machine
// needs.
type Provider interface {
	CreateSubscription(ctx context.Context, sub paypal.Subscriber) (*paypal.Subscription, error)
	GetSubscription(ctx context.Context, id string) (*paypal.Subscription, error)
	VerifyWebhookSignature(ctx context.Context, h paypal.WebhookHeaders, event json.RawMessage) (string, error)
	SimulateEvent(ctx context.Context, url, eventType string) error
	WebhookID() string
}

// WebhookEvent is the subset of a provider notification that drives the
// state machine.
type WebhookEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID string `json:"id"`
	} `json:"resource"`
}

type Config struct {
	// VerifyWebhooks enables signature verification. Only production
	// deployments turn it on.
	VerifyWebhooks bool
	// AllowSimulation enables the provider's mock event delivery
	AllowSimulation bool
}

type Service struct {
	store    repository.Store
	provider Provider
	cfg      Config
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewService creates the subscription service. m may be nil.
func NewService(store repository.Store, provider Provider, cfg Config, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		provider: provider,
		cfg:      cfg,
		metrics:  m,
		now:      time.Now,
	}
}

// Generate returns a subscription the user can approve. A user that
// already holds a subscription id gets its current remote state back
// instead of a new subscription.
func (s *Service) Generate(ctx context.Context, user *model.User) (*paypal.Subscription, error) {
	if user.HasActiveSubscription() {
		return nil, apperrors.Conflict(msgAlreadySubscribed)
	}

	if id := user.Subscription.SubscriptionID; id != nil && *id != "" {
		sub, err := s.provider.GetSubscription(ctx, *id)
		if err != nil {
			return nil, apperrors.Upstream(msgProviderError, err)
		}
		return sub, nil
	}

	sub, err := s.provider.CreateSubscription(ctx, paypal.Subscriber{Email: user.Email, GivenName: user.Name})
	if err != nil {
		return nil, apperrors.Upstream(msgProviderError, err)
	}

	id := sub.ID
	next := model.Subscription{Type: user.Subscription.Type, SubscriptionID: &id}
	if err := s.store.Users().UpdateSubscription(ctx, user.ID, next); err != nil {
		return nil, fmt.Errorf("failed to store subscription id: %w", err)
	}
	user.Subscription = next

	zerolog.Ctx(ctx).Info().
		Str("user_id", user.ID.String()).
		Str("subscription_id", id).
		Msg("Subscription generated")
	return sub, nil
}

func (s *Service) GenerateForUser(ctx context.Context, userID uuid.UUID) (*paypal.Subscription, error) {
	user, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(msgUserNotFound)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return s.Generate(ctx, user)
}

// HandleWebhook authenticates a raw provider notification, when
// verification is enabled, and applies it.
func (s *Service) HandleWebhook(ctx context.Context, headers paypal.WebhookHeaders, body []byte) error {
	if s.cfg.VerifyWebhooks {
		if err := s.verify(ctx, headers, body); err != nil {
			return err
		}
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperrors.Validation(msgInvalidPayload)
	}
	return s.ApplyEvent(ctx, event)
}

func (s *Service) verify(ctx context.Context, headers paypal.WebhookHeaders, body []byte) error {
	if !headers.Complete() || s.provider.WebhookID() == "" {
		return apperrors.Validation(msgMissingHeaders)
	}

	status, err := s.provider.VerifyWebhookSignature(ctx, headers, json.RawMessage(body))
	if err != nil {
		return apperrors.Upstream(msgProviderError, err)
	}
	if status != paypal.VerificationSuccess {
		zerolog.Ctx(ctx).Warn().
			Str("transmission_id", headers.TransmissionID).
			Str("verification_status", status).
			Msg("Webhook verification failed")
		return apperrors.Validation(msgVerificationFailed)
	}
	return nil
}

// transition returns the subscription a user moves to on eventType, and
// false for events that do not affect billing state.
func (s *Service) transition(eventType string, current model.Subscription) (model.Subscription, bool) {
	next := model.Subscription{SubscriptionID: current.SubscriptionID}
	switch eventType {
	case EventActivated, EventRenewed:
		due := s.now().UTC().AddDate(0, 1, 0)
		next.Type = model.SubscriptionActive
		next.DueDate = &due
	case EventCancelled, EventSuspended, EventExpired:
		next.Type = model.SubscriptionInactive
	default:
		return current, false
	}
	return next, true
}

type changedPayload struct {
	EventType      string                 `json:"event_type"`
	Type           model.SubscriptionType `json:"type"`
	SubscriptionID *string                `json:"subscription_id"`
	DueDate        *time.Time             `json:"due_date"`
}

// ApplyEvent moves the user owning event.Resource.ID through the state
// machine. Unknown events and unknown subscriptions are accepted and
// ignored.
func (s *Service) ApplyEvent(ctx context.Context, event WebhookEvent) error {
	logger := zerolog.Ctx(ctx).With().
		Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Str("subscription_id", event.Resource.ID).
		Logger()

	if _, ok := s.transition(event.EventType, model.Subscription{}); !ok {
		logger.Info().Msg("Unhandled webhook event")
		s.observe(event.EventType, OutcomeIgnored)
		return nil
	}
	if event.Resource.ID == "" {
		logger.Warn().Msg("Webhook event without resource id")
		s.observe(event.EventType, OutcomeUnmatched)
		return nil
	}

	outcome := OutcomeApplied
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		user, err := tx.Users().GetBySubscriptionID(ctx, event.Resource.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				outcome = OutcomeUnmatched
				return nil
			}
			return fmt.Errorf("failed to find subscriber: %w", err)
		}
		if user.Subscription.Type == model.SubscriptionSinglePurchase {
			outcome = OutcomeSkipped
			return nil
		}

		next, _ := s.transition(event.EventType, user.Subscription)
		if err := tx.Users().UpdateSubscription(ctx, user.ID, next); err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}

		payload := changedPayload{
			EventType:      event.EventType,
			Type:           next.Type,
			SubscriptionID: next.SubscriptionID,
			DueDate:        next.DueDate,
		}
		outboxEvent, err := model.NewOutboxEvent(model.EventSubscriptionChanged, user.ID, user.ID, payload)
		if err != nil {
			return fmt.Errorf("failed to build subscription event: %w", err)
		}
		return tx.Outbox().Create(ctx, outboxEvent)
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to apply webhook event")
		return err
	}

	switch outcome {
	case OutcomeUnmatched:
		logger.Warn().Msg("No user matches webhook subscription")
	case OutcomeSkipped:
		logger.Info().Msg("Single-purchase user left unchanged")
	default:
		logger.Info().Msg("Subscription updated")
	}
	s.observe(event.EventType, outcome)
	return nil
}

// Simulate asks the provider to deliver a mock event. It is refused
// outside development.
func (s *Service) Simulate(ctx context.Context, url, eventType string) error {
	if !s.cfg.AllowSimulation {
		return apperrors.Validation(msgSimulationDisabled)
	}
	if eventType == "" {
		eventType = DefaultSimulatedEvent
	}
	if err := s.provider.SimulateEvent(ctx, url, eventType); err != nil {
		return apperrors.Upstream(msgProviderError, err)
	}
	return nil
}

// eventTypeOther labels every event type outside the known set, so
// callers cannot grow the metric's label space
const eventTypeOther = "other"

func (s *Service) observe(eventType, outcome string) {
	if s.metrics != nil {
		s.metrics.WebhookEvents.WithLabelValues(metricEventType(eventType), outcome).Inc()
	}
}

func metricEventType(eventType string) string {
	switch eventType {
	case EventActivated, EventRenewed, EventCancelled, EventSuspended,
		EventExpired, EventPaymentFailed, DefaultSimulatedEvent:
		return eventType
	default:
		return eventTypeOther
	}
}
