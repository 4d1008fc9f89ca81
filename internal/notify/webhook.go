package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lotwise/backend-lotwise/internal/events"
	"github.com/lotwise/backend-lotwise/internal/obs"
	"github.com/lotwise/backend-lotwise/internal/resilience"
)

// TaskWebhookDeliver is the asynq task type for webhook deliveries.
const TaskWebhookDeliver = "webhook:deliver"

// SignatureHeader carries the HMAC signature receivers verify.
const SignatureHeader = "X-Lotwise-Signature"

// TaskEnqueuer abstracts the asynq client for tests.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher fans domain events out to subscribed webhook endpoints. Schedule
// records one delivery row per endpoint and hands the work to asynq; the
// worker retries with asynq's backoff until the delivery lands or exhausts
// its attempts.
type Dispatcher struct {
	Store       Store
	Tasks       TaskEnqueuer
	HTTP        *resilience.HTTPClient
	MaxAttempts int
	Enabled     bool
	Replay      ReplayProtector
	ReplayTTL   time.Duration
}

type deliveryTaskPayload struct {
	DeliveryID uuid.UUID `json:"deliveryId"`
}

// Schedule implements events.DeliveryScheduler.
func (d *Dispatcher) Schedule(ctx context.Context, event events.Event) error {
	if d == nil || !d.Enabled || d.Store == nil {
		return nil
	}
	if strings.TrimSpace(event.Topic) == "" {
		return nil
	}
	endpoints, err := d.Store.ListActiveEndpointsForTopic(ctx, event.TenantID, event.Topic)
	if err != nil {
		return err
	}
	maxAttempts := d.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 6
	}
	var joined error
	for _, ep := range endpoints {
		delivery, err := d.Store.InsertDelivery(ctx, Delivery{
			TenantID:   event.TenantID,
			EndpointID: ep.ID,
			EventID:    event.ID,
			MaxAttempt: maxAttempts,
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Conflict on (endpoint_id, event_id): already scheduled.
				continue
			}
			joined = errors.Join(joined, fmt.Errorf("record delivery for %s: %w", ep.ID, err))
			continue
		}
		if d.Tasks == nil {
			continue
		}
		payload, err := json.Marshal(deliveryTaskPayload{DeliveryID: delivery.ID})
		if err != nil {
			joined = errors.Join(joined, err)
			continue
		}
		_, err = d.Tasks.EnqueueContext(ctx, asynq.NewTask(TaskWebhookDeliver, payload),
			asynq.MaxRetry(maxAttempts-1),
			asynq.TaskID(delivery.ID.String()),
			asynq.Queue("webhooks"),
		)
		if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			joined = errors.Join(joined, fmt.Errorf("enqueue delivery %s: %w", delivery.ID, err))
		}
	}
	return joined
}

// DeliverByID attempts one delivery. A non-nil error asks asynq to retry;
// exhausted or permanently broken deliveries are parked in the DLQ state and
// return nil so the task is not retried further.
func (d *Dispatcher) DeliverByID(ctx context.Context, deliveryID uuid.UUID) error {
	if d == nil || d.Store == nil {
		return errors.New("notify: dispatcher not configured")
	}
	delivery, err := d.Store.GetDelivery(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if delivery.Status == StatusDelivered || delivery.Status == StatusDLQ {
		return nil
	}

	attemptStart := time.Now()
	if err := d.Store.MarkDelivering(ctx, delivery.ID); err != nil {
		return err
	}
	endpoint, err := d.Store.GetEndpoint(ctx, delivery.TenantID, delivery.EndpointID)
	if err != nil {
		return d.fail(ctx, delivery, 0, fmt.Errorf("load endpoint: %w", err))
	}
	event, err := d.Store.GetDomainEvent(ctx, delivery.EventID)
	if err != nil {
		return d.fail(ctx, delivery, 0, fmt.Errorf("load event: %w", err))
	}

	status, _, deliverErr := d.deliver(ctx, endpoint, event, delivery)
	if deliverErr == nil && status >= 200 && status < 300 {
		if obs.WebhookDeliveriesTotal != nil {
			obs.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
		}
		if obs.WebhookAttemptLatency != nil {
			obs.WebhookAttemptLatency.WithLabelValues("delivered").Observe(obs.DurationMillis(time.Since(attemptStart)))
		}
		return d.Store.MarkDelivered(ctx, delivery.ID, status)
	}
	if obs.WebhookAttemptLatency != nil {
		obs.WebhookAttemptLatency.WithLabelValues("failed").Observe(obs.DurationMillis(time.Since(attemptStart)))
	}
	return d.fail(ctx, delivery, status, fmt.Errorf("status=%d err=%v", status, deliverErr))
}

func (d *Dispatcher) fail(ctx context.Context, delivery Delivery, status int, cause error) error {
	attempt := delivery.Attempt + 1
	if attempt >= delivery.MaxAttempt {
		if obs.WebhookDeliveriesTotal != nil {
			obs.WebhookDeliveriesTotal.WithLabelValues("dlq").Inc()
		}
		if err := d.Store.MarkFailed(ctx, delivery.ID, attempt, StatusDLQ, cause.Error()); err != nil {
			return err
		}
		return nil
	}
	if obs.WebhookDeliveriesTotal != nil {
		obs.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
	}
	if err := d.Store.MarkFailed(ctx, delivery.ID, attempt, StatusFailed, cause.Error()); err != nil {
		return err
	}
	return cause
}

func (d *Dispatcher) deliver(ctx context.Context, ep Endpoint, ev events.Event, del Delivery) (int, string, error) {
	if d.HTTP == nil {
		d.HTTP = HTTPClient(10 * time.Second)
	}
	ctx, span := otel.Tracer("notify.Dispatcher").Start(ctx, "Dispatcher.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.endpoint_id", ep.ID.String()),
		attribute.String("webhook.delivery_id", del.ID.String()),
		attribute.String("webhook.topic", ev.Topic),
	)
	if err := validateURL(ep.URL); err != nil {
		span.RecordError(err)
		return 0, "", err
	}
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	payload := struct {
		EventID    string          `json:"eventId"`
		Topic      string          `json:"topic"`
		Data       json.RawMessage `json:"data"`
		OccurredAt time.Time       `json:"occurredAt"`
	}{
		EventID:    ev.ID.String(),
		Topic:      ev.Topic,
		Data:       ev.Payload,
		OccurredAt: occurred,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return 0, "", err
	}
	ts := time.Now().Unix()
	if d.Replay != nil && d.ReplayTTL > 0 {
		key := replayKey(ep.ID, ev.ID)
		ok, err := d.Replay.Acquire(ctx, key, d.ReplayTTL)
		if err != nil {
			span.RecordError(err)
			return 0, "", err
		}
		if !ok {
			span.AddEvent("delivery replay prevented")
			return http.StatusOK, "replay-suppressed", nil
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "lotwise-webhooks/1.0")
	req.Header.Set("X-Event-ID", ev.ID.String())
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Idempotency-Key", del.ID.String())
	req.Header.Set(SignatureHeader, ComputeSignature(ep.Secret, ts, ev.ID.String(), body))
	resp, err := d.HTTP.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		return 0, "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return resp.StatusCode, "", err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp.StatusCode, string(responseBody), nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	return nil
}

// ComputeSignature calculates the webhook signature for the provided payload.
// The format is HMAC-SHA256 over "<ts>.<eventID>.<body>" using the endpoint
// secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTPClient returns a breaker-wrapped client configured for webhook delivery.
func HTTPClient(timeout time.Duration) *resilience.HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &resilience.HTTPClient{
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Breaker:     resilience.NewBreaker(10, 0.5, 30*time.Second),
		MaxAttempts: 1,
		Timeout:     timeout,
	}
}

// Deliver exposes the low-level delivery routine for manual replays and tests.
func (d *Dispatcher) Deliver(ctx context.Context, ep Endpoint, ev events.Event, del Delivery) (int, string, error) {
	return d.deliver(ctx, ep, ev, del)
}
