package notify_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/lotwise/backend-lotwise/internal/events"
	"github.com/lotwise/backend-lotwise/internal/notify"
	"github.com/lotwise/backend-lotwise/internal/resilience"
)

func testHTTP(client *http.Client) *resilience.HTTPClient {
	return &resilience.HTTPClient{
		Client:      client,
		Breaker:     resilience.NewBreaker(1, 1, time.Second),
		MaxAttempts: 1,
		Timeout:     time.Second,
	}
}

func TestSignatureAndHeaders(t *testing.T) {
	type recorded struct {
		req  *http.Request
		body []byte
	}
	received := make(chan recorded, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- recorded{req: r, body: body}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	dispatcher := &notify.Dispatcher{HTTP: testHTTP(srv.Client()), Enabled: true}
	endpoint := notify.Endpoint{ID: uuid.New(), URL: srv.URL, Secret: "secret"}
	event := events.Event{
		ID:         uuid.New(),
		Topic:      events.TopicSessionClosed,
		Payload:    []byte(`{"sessionId":"s1"}`),
		OccurredAt: time.Now(),
	}
	delivery := notify.Delivery{ID: uuid.New()}

	status, _, err := dispatcher.Deliver(context.Background(), endpoint, event, delivery)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	record := <-received
	req := record.req
	require.Equal(t, "application/json", req.Header.Get("Content-Type"))
	require.Equal(t, event.ID.String(), req.Header.Get("X-Event-ID"))
	require.Equal(t, delivery.ID.String(), req.Header.Get("X-Idempotency-Key"))
	timestamp := req.Header.Get("X-Timestamp")
	require.NotEmpty(t, timestamp)
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	require.NoError(t, err)
	require.Equal(t,
		notify.ComputeSignature(endpoint.Secret, ts, req.Header.Get("X-Event-ID"), record.body),
		req.Header.Get(notify.SignatureHeader))
}

type fakeStore struct {
	endpoints  map[uuid.UUID]notify.Endpoint
	deliveries map[uuid.UUID]notify.Delivery
	events     map[uuid.UUID]events.Event
	scheduled  []uuid.UUID
}

func newStore() *fakeStore {
	return &fakeStore{
		endpoints:  map[uuid.UUID]notify.Endpoint{},
		deliveries: map[uuid.UUID]notify.Delivery{},
		events:     map[uuid.UUID]events.Event{},
	}
}

func (f *fakeStore) CreateEndpoint(_ context.Context, ep notify.Endpoint) (notify.Endpoint, error) {
	if ep.ID == uuid.Nil {
		ep.ID = uuid.New()
	}
	f.endpoints[ep.ID] = ep
	return ep, nil
}

func (f *fakeStore) UpdateEndpoint(_ context.Context, ep notify.Endpoint) (notify.Endpoint, error) {
	f.endpoints[ep.ID] = ep
	return ep, nil
}

func (f *fakeStore) GetEndpoint(_ context.Context, _ string, id uuid.UUID) (notify.Endpoint, error) {
	ep, ok := f.endpoints[id]
	if !ok {
		return notify.Endpoint{}, notify.ErrNotFound
	}
	return ep, nil
}

func (f *fakeStore) ListEndpoints(context.Context, string) ([]notify.Endpoint, error) {
	var out []notify.Endpoint
	for _, ep := range f.endpoints {
		out = append(out, ep)
	}
	return out, nil
}

func (f *fakeStore) DeleteEndpoint(_ context.Context, _ string, id uuid.UUID) error {
	delete(f.endpoints, id)
	return nil
}

func (f *fakeStore) ListActiveEndpointsForTopic(_ context.Context, _ string, topic string) ([]notify.Endpoint, error) {
	var out []notify.Endpoint
	for _, ep := range f.endpoints {
		if !ep.Active {
			continue
		}
		for _, t := range ep.Topics {
			if t == topic {
				out = append(out, ep)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) InsertDelivery(_ context.Context, d notify.Delivery) (notify.Delivery, error) {
	for _, existing := range f.deliveries {
		if existing.EndpointID == d.EndpointID && existing.EventID == d.EventID {
			return notify.Delivery{}, notify.ErrNotFound
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = notify.StatusPending
	}
	f.deliveries[d.ID] = d
	f.scheduled = append(f.scheduled, d.ID)
	return d, nil
}

func (f *fakeStore) GetDelivery(_ context.Context, id uuid.UUID) (notify.Delivery, error) {
	d, ok := f.deliveries[id]
	if !ok {
		return notify.Delivery{}, notify.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) ListDeliveries(context.Context, string, int, int) ([]notify.Delivery, int64, error) {
	var out []notify.Delivery
	for _, d := range f.deliveries {
		out = append(out, d)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) MarkDelivering(_ context.Context, id uuid.UUID) error {
	d := f.deliveries[id]
	d.Status = notify.StatusDelivering
	f.deliveries[id] = d
	return nil
}

func (f *fakeStore) MarkDelivered(_ context.Context, id uuid.UUID, responseStatus int) error {
	d := f.deliveries[id]
	d.Status = notify.StatusDelivered
	d.ResponseStatus = responseStatus
	f.deliveries[id] = d
	return nil
}

func (f *fakeStore) MarkFailed(_ context.Context, id uuid.UUID, attempt int, status, lastError string) error {
	d := f.deliveries[id]
	d.Status = status
	d.Attempt = attempt
	d.LastError = lastError
	f.deliveries[id] = d
	return nil
}

func (f *fakeStore) ResetForReplay(_ context.Context, _ string, id uuid.UUID) (notify.Delivery, error) {
	d, ok := f.deliveries[id]
	if !ok {
		return notify.Delivery{}, notify.ErrNotFound
	}
	d.Status = notify.StatusPending
	d.Attempt = 0
	f.deliveries[id] = d
	return d, nil
}

func (f *fakeStore) GetDomainEvent(_ context.Context, id uuid.UUID) (events.Event, error) {
	ev, ok := f.events[id]
	if !ok {
		return events.Event{}, notify.ErrNotFound
	}
	return ev, nil
}

type captureEnqueuer struct {
	tasks []*asynq.Task
}

func (c *captureEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func TestScheduleCreatesOneDeliveryPerSubscriber(t *testing.T) {
	store := newStore()
	enqueuer := &captureEnqueuer{}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := store.CreateEndpoint(ctx, notify.Endpoint{
			URL: "https://example.com/hook", Secret: "s",
			Topics: []string{events.TopicSessionClosed}, Active: true,
		})
		require.NoError(t, err)
	}
	_, err := store.CreateEndpoint(ctx, notify.Endpoint{
		URL: "https://example.com/other", Secret: "s",
		Topics: []string{events.TopicSessionOpened}, Active: true,
	})
	require.NoError(t, err)

	dispatcher := &notify.Dispatcher{Store: store, Tasks: enqueuer, Enabled: true, MaxAttempts: 3}
	event := events.Event{ID: uuid.New(), TenantID: "acme", Topic: events.TopicSessionClosed, Payload: []byte(`{}`)}

	require.NoError(t, dispatcher.Schedule(ctx, event))
	require.Len(t, store.scheduled, 2)
	require.Len(t, enqueuer.tasks, 2)
	for _, task := range enqueuer.tasks {
		require.Equal(t, notify.TaskWebhookDeliver, task.Type())
	}

	// Scheduling the same event again is a no-op.
	require.NoError(t, dispatcher.Schedule(ctx, event))
	require.Len(t, store.scheduled, 2)
}

func TestDeliverByIDExhaustionParksInDLQ(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	store := newStore()
	ctx := context.Background()
	ep, err := store.CreateEndpoint(ctx, notify.Endpoint{
		URL: srv.URL, Secret: "s", Topics: []string{events.TopicSessionClosed}, Active: true,
	})
	require.NoError(t, err)

	event := events.Event{ID: uuid.New(), TenantID: "acme", Topic: events.TopicSessionClosed, Payload: []byte(`{}`), OccurredAt: time.Now()}
	store.events[event.ID] = event

	delivery, err := store.InsertDelivery(ctx, notify.Delivery{
		TenantID: "acme", EndpointID: ep.ID, EventID: event.ID, MaxAttempt: 2,
	})
	require.NoError(t, err)

	dispatcher := &notify.Dispatcher{Store: store, HTTP: testHTTP(srv.Client()), Enabled: true}

	// First attempt fails and asks for a retry.
	require.Error(t, dispatcher.DeliverByID(ctx, delivery.ID))
	got, _ := store.GetDelivery(ctx, delivery.ID)
	require.Equal(t, notify.StatusFailed, got.Status)
	require.Equal(t, 1, got.Attempt)

	// Second attempt exhausts the budget and parks the delivery.
	require.NoError(t, dispatcher.DeliverByID(ctx, delivery.ID))
	got, _ = store.GetDelivery(ctx, delivery.ID)
	require.Equal(t, notify.StatusDLQ, got.Status)
}

func TestDeliverByIDSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	store := newStore()
	ctx := context.Background()
	ep, err := store.CreateEndpoint(ctx, notify.Endpoint{
		URL: srv.URL, Secret: "s", Topics: []string{events.TopicFeeComputed}, Active: true,
	})
	require.NoError(t, err)

	event := events.Event{ID: uuid.New(), TenantID: "acme", Topic: events.TopicFeeComputed, Payload: []byte(`{"finalFee":575}`), OccurredAt: time.Now()}
	store.events[event.ID] = event

	delivery, err := store.InsertDelivery(ctx, notify.Delivery{
		TenantID: "acme", EndpointID: ep.ID, EventID: event.ID, MaxAttempt: 3,
	})
	require.NoError(t, err)

	dispatcher := &notify.Dispatcher{Store: store, HTTP: testHTTP(srv.Client()), Enabled: true}
	require.NoError(t, dispatcher.DeliverByID(ctx, delivery.ID))

	got, _ := store.GetDelivery(ctx, delivery.ID)
	require.Equal(t, notify.StatusDelivered, got.Status)
	require.Equal(t, http.StatusOK, got.ResponseStatus)
}
