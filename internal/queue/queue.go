package queue

import (
	"context"
	"time"

	"github.com/akolanti/RagAPI/internal/domain/jobModel"
)

// Delivery is one received message plus the handle needed to extend or
// settle it.
type Delivery struct {
	Message jobModel.Message
	Handle  string
}

// Queue is an at-least-once message queue. A received message stays invisible
// for the visibility timeout; if the consumer neither deletes it nor extends
// in time, it is redelivered. Consumers must treat redelivery of the same
// message as a no-op.
type Queue interface {
	Enqueue(ctx context.Context, msg jobModel.Message) error
	// Receive blocks up to the implementation's wait interval and returns
	// nil when nothing arrived.
	Receive(ctx context.Context) (*Delivery, error)
	// Extend pushes the in-flight message's visibility deadline out,
	// keeping a long-running job from being redelivered mid-work.
	Extend(ctx context.Context, d *Delivery, timeout time.Duration) error
	Delete(ctx context.Context, d *Delivery) error
}
