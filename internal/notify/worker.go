package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/lotwise/backend-lotwise/internal/lock"
)

// DeliveryWorker processes webhook delivery tasks from asynq, holding a
// distributed lock per delivery so concurrent workers never double-send.
type DeliveryWorker struct {
	Dispatcher *Dispatcher
	Locker     lock.Locker
	LockTTL    time.Duration
}

// ProcessTask implements asynq.Handler for TaskWebhookDeliver.
func (w DeliveryWorker) ProcessTask(ctx context.Context, task *asynq.Task) error {
	if w.Dispatcher == nil {
		return errors.New("webhook worker: dispatcher not configured")
	}
	var payload deliveryTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// Malformed payloads never become deliverable; drop instead of retrying.
		return nil
	}
	if payload.DeliveryID == uuid.Nil {
		return nil
	}
	ttl := w.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	key := "lotwise:lock:delivery:" + payload.DeliveryID.String()
	return w.Locker.WithLock(ctx, key, ttl, func(ctx context.Context) error {
		return w.Dispatcher.DeliverByID(ctx, payload.DeliveryID)
	})
}

// Register wires the worker into an asynq mux.
func (w DeliveryWorker) Register(mux *asynq.ServeMux) {
	mux.Handle(TaskWebhookDeliver, w)
}
