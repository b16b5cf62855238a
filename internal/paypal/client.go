// Package paypal is a small client for the PayPal REST endpoints used by
// subscription billing.
package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/medelle/practice-api/pkg/circuitbreaker"
	"github.com/medelle/practice-api/pkg/metrics"
)

const (
	tokenPath        = "/v1/oauth2/token"
	subscriptionPath = "/v1/billing/subscriptions"
	verifyPath       = "/v1/notifications/verify-webhook-signature"
	simulatePath     = "/v1/notifications/simulate-event"

	tokenCacheKey = "access_token"
	// refresh the access token this long before PayPal expires it
	tokenExpiryMargin = time.Minute

	VerificationSuccess = "SUCCESS"
)

var ErrMissingCredentials = errors.New("missing PayPal credentials")

// APIError is a non-2xx answer from PayPal
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal %s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

func (e *APIError) clientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	PlanID       string
	WebhookID    string
	Locale       string
	FrontendURL  string
	Timeout      time.Duration
}

type Client struct {
	http    *resty.Client
	cfg     Config
	tokens  *cache.Cache
	cb      *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewClient builds the client. m may be nil.
func NewClient(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json")

	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "paypal",
		MaxFailures: 5,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || (errors.As(err, &apiErr) && apiErr.clientError())
		},
		OnStateChange: func(name, from, to string) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from),
				zap.String("to", to),
			)
		},
	})

	return &Client{
		http:    httpClient,
		cfg:     cfg,
		tokens:  cache.New(cache.NoExpiration, 10*time.Minute),
		cb:      cb,
		logger:  logger,
		metrics: m,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AccessToken returns a cached client-credentials token, fetching a new one
// when the cached token is missing or about to expire.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if tok, ok := c.tokens.Get(tokenCacheKey); ok {
		return tok.(string), nil
	}
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return "", ErrMissingCredentials
	}

	var out tokenResponse
	err := c.do("access_token", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret).
			SetFormData(map[string]string{"grant_type": "client_credentials"}).
			SetResult(&out).
			Post(tokenPath)
	})
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("paypal returned an empty access token")
	}

	ttl := time.Duration(out.ExpiresIn)*time.Second - tokenExpiryMargin
	if ttl > 0 {
		c.tokens.Set(tokenCacheKey, out.AccessToken, ttl)
	}
	return out.AccessToken, nil
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// Subscription is a billing subscription as PayPal reports it. Raw keeps
// the full response body, which is what gets handed back to clients.
type Subscription struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	PlanID string          `json:"plan_id"`
	Links  []Link          `json:"links"`
	Raw    json.RawMessage `json:"-"`
}

func (s *Subscription) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	type plain Subscription
	return json.Marshal((*plain)(s))
}

// ApproveURL is the link the subscriber follows to approve the subscription
func (s *Subscription) ApproveURL() string {
	for _, l := range s.Links {
		if l.Rel == "approve" {
			return l.Href
		}
	}
	return ""
}

type Subscriber struct {
	Email     string
	GivenName string
}

type createSubscriptionBody struct {
	Quantity           string             `json:"quantity"`
	AutoRenewal        bool               `json:"auto_renewal"`
	PlanID             string             `json:"plan_id"`
	Subscriber         subscriberBody     `json:"subscriber"`
	ApplicationContext applicationContext `json:"application_context"`
}

type subscriberBody struct {
	EmailAddress string `json:"email_address"`
	Name         struct {
		GivenName string `json:"given_name"`
	} `json:"name"`
}

type applicationContext struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
	Locale    string `json:"locale"`
}

func (c *Client) CreateSubscription(ctx context.Context, sub Subscriber) (*Subscription, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	frontend := strings.TrimRight(c.cfg.FrontendURL, "/")
	body := createSubscriptionBody{
		Quantity:    "1",
		AutoRenewal: true,
		PlanID:      c.cfg.PlanID,
		ApplicationContext: applicationContext{
			ReturnURL: frontend + "/payment-success",
			CancelURL: frontend + "/payment-cancelled",
			Locale:    c.cfg.Locale,
		},
	}
	body.Subscriber.EmailAddress = sub.Email
	body.Subscriber.Name.GivenName = sub.GivenName

	// retries of this POST reuse one request id so PayPal creates at most
	// one subscription
	requestID := uuid.NewString()

	var resp *resty.Response
	err = c.do("create_subscription", func() (*resty.Response, error) {
		r, err := c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetHeader("Content-Type", "application/json").
			SetHeader("PayPal-Request-Id", requestID).
			SetHeader("Prefer", "return=representation").
			SetBody(body).
			Post(subscriptionPath)
		resp = r
		return r, err
	})
	if err != nil {
		return nil, err
	}

	out, err := decodeSubscription(resp.Body())
	if err != nil {
		return nil, err
	}
	c.logger.Info("subscription created",
		zap.String("subscription_id", out.ID),
		zap.String("status", out.Status),
	)
	return out, nil
}

func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var resp *resty.Response
	err = c.do("get_subscription", func() (*resty.Response, error) {
		r, err := c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetPathParam("id", id).
			Get(subscriptionPath + "/{id}")
		resp = r
		return r, err
	})
	if err != nil {
		return nil, err
	}
	return decodeSubscription(resp.Body())
}

func decodeSubscription(body []byte) (*Subscription, error) {
	var out Subscription
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode subscription: %w", err)
	}
	out.Raw = append(json.RawMessage(nil), body...)
	return &out, nil
}

// WebhookHeaders are the transmission headers PayPal sends with every
// webhook delivery.
type WebhookHeaders struct {
	TransmissionID   string
	TransmissionTime string
	CertURL          string
	AuthAlgo         string
	TransmissionSig  string
}

func (h WebhookHeaders) Complete() bool {
	return h.TransmissionID != "" && h.TransmissionTime != "" && h.CertURL != "" &&
		h.AuthAlgo != "" && h.TransmissionSig != ""
}

// HeadersFrom reads the paypal-* transmission headers
func HeadersFrom(h http.Header) WebhookHeaders {
	return WebhookHeaders{
		TransmissionID:   h.Get("Paypal-Transmission-Id"),
		TransmissionTime: h.Get("Paypal-Transmission-Time"),
		CertURL:          h.Get("Paypal-Cert-Url"),
		AuthAlgo:         h.Get("Paypal-Auth-Algo"),
		TransmissionSig:  h.Get("Paypal-Transmission-Sig"),
	}
}

type verifyBody struct {
	TransmissionID   string          `json:"transmission_id"`
	TransmissionTime string          `json:"transmission_time"`
	CertURL          string          `json:"cert_url"`
	AuthAlgo         string          `json:"auth_algo"`
	TransmissionSig  string          `json:"transmission_sig"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

// WebhookID is the configured webhook the signatures are checked against
func (c *Client) WebhookID() string {
	return c.cfg.WebhookID
}

// VerifyWebhookSignature asks PayPal to check a delivery's signature and
// returns the reported verification_status.
func (c *Client) VerifyWebhookSignature(ctx context.Context, h WebhookHeaders, event json.RawMessage) (string, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return "", err
	}

	body := verifyBody{
		TransmissionID:   h.TransmissionID,
		TransmissionTime: h.TransmissionTime,
		CertURL:          h.CertURL,
		AuthAlgo:         h.AuthAlgo,
		TransmissionSig:  h.TransmissionSig,
		WebhookID:        c.cfg.WebhookID,
		WebhookEvent:     event,
	}

	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	err = c.do("verify_webhook", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			SetResult(&out).
			Post(verifyPath)
	})
	if err != nil {
		return "", err
	}
	return out.VerificationStatus, nil
}

// SimulateEvent asks PayPal to deliver a mock event of eventType. An empty
// url targets the configured webhook.
func (c *Client) SimulateEvent(ctx context.Context, url, eventType string) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}

	body := map[string]string{
		"event_type":       eventType,
		"resource_version": "1.0",
	}
	if url != "" {
		body["url"] = url
	} else {
		body["webhook_id"] = c.cfg.WebhookID
	}

	return c.do("simulate_event", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			Post(simulatePath)
	})
}

// do runs one call through the breaker, turning non-2xx answers into
// *APIError and recording the outcome.
func (c *Client) do(op string, call func() (*resty.Response, error)) error {
	start := time.Now()
	status := "error"

	err := c.cb.Execute(func() error {
		resp, err := call()
		if err != nil {
			return fmt.Errorf("paypal %s request failed: %w", op, err)
		}
		status = strconv.Itoa(resp.StatusCode())
		if resp.IsError() {
			return &APIError{Operation: op, StatusCode: resp.StatusCode(), Body: string(resp.Body())}
		}
		return nil
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		status = "circuit_open"
	}

	if c.metrics != nil {
		c.metrics.PaymentRequests.WithLabelValues(op, status).Inc()
	}

	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("status", status),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		c.logger.Error("paypal call failed", append(fields, zap.Error(err))...)
		return err
	}
	c.logger.Debug("paypal call", fields...)
	return nil
}
