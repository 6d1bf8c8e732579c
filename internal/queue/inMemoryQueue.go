package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/akolanti/RagAPI/internal/adapter/utils"
	"github.com/akolanti/RagAPI/internal/config"
	"github.com/akolanti/RagAPI/internal/domain/jobModel"
)

var ErrUnknownHandle = errors.New("unknown delivery handle")

type queuedMessage struct {
	msg       jobModel.Message
	handle    string
	visibleAt time.Time
}

// InMemoryQueue mimics the broker semantics for tests and single-node
// deployments: received messages go invisible for the visibility timeout and
// reappear when not deleted in time.
type InMemoryQueue struct {
	mu         *sync.Mutex
	messages   []*queuedMessage
	visibility time.Duration
	pollEvery  time.Duration
}

func InitInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		mu:         new(sync.Mutex),
		visibility: config.QueueVisibilityTimeout,
		pollEvery:  50 * time.Millisecond,
	}
}

// NewTestQueue shortens timing so redelivery is observable in tests.
func NewTestQueue(visibility time.Duration) *InMemoryQueue {
	return &InMemoryQueue{
		mu:         new(sync.Mutex),
		visibility: visibility,
		pollEvery:  5 * time.Millisecond,
	}
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, msg jobModel.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, &queuedMessage{msg: msg, handle: utils.GetNewUUID()})
	return nil
}

func (q *InMemoryQueue) Receive(ctx context.Context) (*Delivery, error) {
	deadline := time.Now().Add(config.QueueReceiveWait)
	for {
		if d := q.tryReceive(); d != nil {
			return d, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollEvery):
		}
	}
}

func (q *InMemoryQueue) tryReceive() *Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	for _, m := range q.messages {
		if m.visibleAt.After(now) {
			continue
		}
		m.visibleAt = now.Add(q.visibility)
		// a redelivery gets a fresh handle; the old one goes stale
		m.handle = utils.GetNewUUID()
		return &Delivery{Message: m.msg, Handle: m.handle}
	}
	return nil
}

func (q *InMemoryQueue) Extend(ctx context.Context, d *Delivery, timeout time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range q.messages {
		if m.handle == d.Handle {
			m.visibleAt = time.Now().Add(timeout)
			return nil
		}
	}
	return ErrUnknownHandle
}

func (q *InMemoryQueue) Delete(ctx context.Context, d *Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, m := range q.messages {
		if m.handle == d.Handle {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			return nil
		}
	}
	return ErrUnknownHandle
}
