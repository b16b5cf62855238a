package payment

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medelle/practice-api/internal/handler"
	"github.com/medelle/practice-api/internal/paypal"
	apperrors "github.com/medelle/practice-api/pkg/errors"
)

const msgUnreadableBody = "Invalid webhook payload"

// SubscriptionService is implemented by subscription.Service
type SubscriptionService interface {
	GenerateForUser(ctx context.Context, userID uuid.UUID) (*paypal.Subscription, error)
	HandleWebhook(ctx context.Context, headers paypal.WebhookHeaders, body []byte) error
	Simulate(ctx context.Context, url, eventType string) error
}

type SimulateRequest struct {
	URL       string `json:"url"`
	EventType string `json:"event_type"`
}

type Handler struct {
	service SubscriptionService
}

func NewHandler(service SubscriptionService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the payment routes. The webhook is authenticated
// by the provider signature, the rest by guard.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard gin.HandlerFunc) {
	payments := r.Group("/payment")
	{
		payments.POST("/webhook", h.Webhook)
		payments.POST("/simulate", h.Simulate)
		payments.POST("/subscription", guard, h.Subscription)
	}
}

// Webhook needs the body exactly as sent for signature verification
func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		handler.Fail(c, apperrors.Validation(msgUnreadableBody))
		return
	}

	if err := h.service.HandleWebhook(c.Request.Context(), paypal.HeadersFrom(c.Request.Header), body); err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "Webhook processed successfully", nil)
}

func (h *Handler) Subscription(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		return
	}

	sub, err := h.service.GenerateForUser(c.Request.Context(), userID)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "Subscription generated successfully", sub)
}

// Simulate defaults the target to this server's own webhook route
func (h *Handler) Simulate(c *gin.Context) {
	var req SimulateRequest
	if c.Request.ContentLength > 0 && !handler.BindJSON(c, &req) {
		return
	}
	if req.URL == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		req.URL = scheme + "://" + c.Request.Host + "/api/payment/webhook"
	}

	if err := h.service.Simulate(c.Request.Context(), req.URL, req.EventType); err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "Webhook simulation successful", nil)
}
