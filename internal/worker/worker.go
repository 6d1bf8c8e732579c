package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/RagAPI/internal/config"
	"github.com/akolanti/RagAPI/internal/metrics"
	"github.com/akolanti/RagAPI/internal/queue"
	"github.com/akolanti/RagAPI/internal/syncjob"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

var (
	_jobService        syncjob.Service
	_queue             queue.Queue
	deliveryChannel    chan *queue.Delivery
	dispatcherChannel  chan bool
	stopWorkerChannel  chan bool
	workerWaitGroup    *sync.WaitGroup
	currentWorkerCount int64
	logger             *logger_i.Logger
	minWorkerCount     = config.MinWorkerCount
)

func InitServices(jobService syncjob.Service, q queue.Queue) {
	_jobService = jobService
	_queue = q
	deliveryChannel = make(chan *queue.Delivery, 100)
	dispatcherChannel = make(chan bool, 100)
}

func InitWorkerPool(ctx context.Context, stopWorkerChan chan bool, waitGroup *sync.WaitGroup) {
	stopWorkerChannel = stopWorkerChan
	workerWaitGroup = waitGroup
	logger = logger_i.NewLogger("WorkerPool")
	logger.Info("Initializing worker pool")
	go dispatcher()
	go receiver(ctx)
}

// receiver long-polls the queue and feeds deliveries to the pool, signalling
// the dispatcher so it can scale up under backlog.
func receiver(ctx context.Context) {
	for {
		delivery, err := _queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("Receiver stopped")
				return
			}
			logger.Error("queue receive failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if delivery == nil {
			continue
		}

		select {
		case deliveryChannel <- delivery:
		case <-ctx.Done():
			logger.Info("Receiver stopped")
			return
		}

		select {
		case dispatcherChannel <- true:
			metrics.StartDispatcherSignalCount()
		default:
		}
	}
}

func dispatcher() {
	createWorker()
	logger.Info("Dispatcher started")
	for range dispatcherChannel {
		backlog := int64(len(deliveryChannel))
		if backlog >= config.RequestsPerNewWorkerCount && atomic.LoadInt64(&currentWorkerCount) < config.MaxWorkerCount {
			logger.Info("Creating new worker", "WorkerCount :", currentWorkerCount)
			createWorker()
		}
	}
}

func createWorker() {
	workerWaitGroup.Add(1)
	go worker()
	atomic.AddInt64(&currentWorkerCount, 1)
	metrics.IncrementActiveWorkerCount()
	logger.Info("Created new worker")
}

func worker() {
	for {
		select {
		case delivery := <-deliveryChannel:
			executeDelivery(delivery)
			metrics.DecrementJobsInQueue()

		case <-stopWorkerChannel:
			removeWorker("Stop worker signal received")
			return

		case <-time.After(config.IdleWorkerTimeout):
			// idle for too long, retire unless we are the floor
			if atomic.LoadInt64(&currentWorkerCount) > atomic.LoadInt64(&minWorkerCount) {
				removeWorker("Idle worker timeout - Removed worker")
				return
			}
		}
	}
}
