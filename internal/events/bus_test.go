package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lotwise/backend-lotwise/internal/events"
)

type stubStore struct {
	last events.Event
}

func (s *stubStore) InsertDomainEvent(_ context.Context, ev events.Event) (events.Event, error) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	s.last = ev
	return ev, nil
}

type captureScheduler struct {
	events []events.Event
}

func (c *captureScheduler) Schedule(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	scheduler := &captureScheduler{}
	notifier := &captureNotifier{}
	bus := events.Bus{
		Store:     store,
		Scheduler: scheduler,
		Notifiers: []events.Notifier{notifier},
	}

	aggregate := uuid.New()
	payload := map[string]any{"sessionId": "123"}
	ctx := context.Background()
	event, err := bus.Emit(ctx, "acme", events.TopicSessionOpened, aggregate, payload)
	require.NoError(t, err)
	require.Equal(t, events.TopicSessionOpened, store.last.Topic)
	require.Equal(t, "acme", store.last.TenantID)
	require.JSONEq(t, `{"sessionId":"123"}`, string(store.last.Payload))
	require.Len(t, scheduler.events, 1)
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, scheduler.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, "123", decoded["sessionId"])
}

func TestEmitRequiresTopicAndAggregate(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	ctx := context.Background()

	_, err := bus.Emit(ctx, "acme", " ", uuid.New(), nil)
	require.Error(t, err)

	_, err = bus.Emit(ctx, "acme", events.TopicSessionClosed, uuid.Nil, nil)
	require.Error(t, err)
}

func TestEmitRejectsInvalidJSONPayload(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}

	_, err := bus.Emit(context.Background(), "acme", events.TopicFeeComputed, uuid.New(), []byte("{not json"))
	require.Error(t, err)
}
