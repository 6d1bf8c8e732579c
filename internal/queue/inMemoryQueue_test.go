package queue

import (
	"context"
	"testing"
	"time"

	"github.com/akolanti/RagAPI/internal/domain/jobModel"
)

func TestInMemoryQueue_ReceiveAndDelete(t *testing.T) {
	ctx := context.Background()
	q := NewTestQueue(time.Minute)

	msg := jobModel.Message{JobId: "j1", JobType: jobModel.JobTypeIngestUpload, SourceId: "s1"}
	if err := q.Enqueue(ctx, msg); err != nil {
		t.Fatal(err)
	}

	d, err := q.Receive(ctx)
	if err != nil || d == nil {
		t.Fatalf("expected a delivery, got %v err=%v", d, err)
	}
	if d.Message != msg {
		t.Errorf("wrong message: %+v", d.Message)
	}

	// in-flight: a second receive must come up empty
	if second := q.tryReceive(); second != nil {
		t.Error("in-flight message must be invisible")
	}

	if err := q.Delete(ctx, d); err != nil {
		t.Fatal(err)
	}
	if d := q.tryReceive(); d != nil {
		t.Error("deleted message must not redeliver")
	}
}

func TestInMemoryQueue_RedeliveryAfterVisibilityTimeout(t *testing.T) {
	ctx := context.Background()
	q := NewTestQueue(20 * time.Millisecond)

	if err := q.Enqueue(ctx, jobModel.Message{JobId: "j1"}); err != nil {
		t.Fatal(err)
	}

	first, err := q.Receive(ctx)
	if err != nil || first == nil {
		t.Fatalf("expected a delivery, got err=%v", err)
	}

	// let the visibility window lapse without deleting
	time.Sleep(40 * time.Millisecond)

	second := q.tryReceive()
	if second == nil {
		t.Fatal("expected redelivery after visibility timeout")
	}
	if second.Message.JobId != "j1" {
		t.Errorf("redelivered wrong message: %+v", second.Message)
	}
	if second.Handle == first.Handle {
		t.Error("redelivery must issue a fresh handle")
	}

	// the stale handle must no longer settle the message
	if err := q.Delete(ctx, first); err != ErrUnknownHandle {
		t.Errorf("expected ErrUnknownHandle for stale handle, got %v", err)
	}
}

func TestInMemoryQueue_ExtendKeepsMessageInvisible(t *testing.T) {
	ctx := context.Background()
	q := NewTestQueue(20 * time.Millisecond)

	if err := q.Enqueue(ctx, jobModel.Message{JobId: "j1"}); err != nil {
		t.Fatal(err)
	}
	d, err := q.Receive(ctx)
	if err != nil || d == nil {
		t.Fatal("expected a delivery")
	}

	if err := q.Extend(ctx, d, 200*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(40 * time.Millisecond)

	if redelivered := q.tryReceive(); redelivered != nil {
		t.Error("extended message must stay invisible past the original timeout")
	}
}
