package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/RagAPI/internal/config"
	"github.com/akolanti/RagAPI/internal/metrics"
	"github.com/akolanti/RagAPI/internal/queue"
)

// executeDelivery runs one queued job under a visibility heartbeat. When the
// run errors on infrastructure (store/queue), the message is left in flight
// and redelivers after the visibility timeout; job-level failures are already
// terminal states recorded by the service, so those deliveries are settled.
func executeDelivery(delivery *queue.Delivery) {
	start := time.Now()
	ctx := context.Background()

	stopHeartbeat := make(chan struct{})
	go heartbeat(ctx, delivery, stopHeartbeat)

	err := _jobService.Run(ctx, delivery.Message)
	close(stopHeartbeat)

	metrics.CaptureJobMetrics(string(delivery.Message.JobType), time.Since(start))

	if err != nil {
		logger.Error("job run failed, leaving message for redelivery", "jobId", delivery.Message.JobId, "error", err)
		return
	}
	if err := _queue.Delete(ctx, delivery); err != nil {
		logger.Error("Failed to settle delivery", "jobId", delivery.Message.JobId, "error", err)
	}
}

// heartbeat extends the message's visibility while the job is still running,
// so slow syncs are not redelivered to a second worker mid-flight.
func heartbeat(ctx context.Context, delivery *queue.Delivery, stop <-chan struct{}) {
	ticker := time.NewTicker(config.QueueHeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := _queue.Extend(ctx, delivery, config.QueueVisibilityTimeout); err != nil {
				logger.Warn("visibility extend failed", "jobId", delivery.Message.JobId, "error", err)
			}
		}
	}
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker ", "reason", reason, "workerCount", currentWorkerCount)
	metrics.DecrementActiveWorkerCount()
}
