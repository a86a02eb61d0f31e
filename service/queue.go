package service

import (
	"log"
	"sync"

	"github.com/pkg/errors"
)

// SubmissionQueue serializes vote submissions through a single worker.
// Each caller still gets its receipt, including the sealing block hash,
// before its result channel closes, so the facade contract holds even
// when the request layer fans in concurrently.
type SubmissionQueue struct {
	service      *SubmissionService
	requests     chan *queuedSubmission
	processingWg sync.WaitGroup
	shutdownCh   chan struct{}
}

// SubmissionResult is delivered on the per-request result channel.
type SubmissionResult struct {
	Receipt *Receipt
	Err     error
}

type queuedSubmission struct {
	req      SubmissionRequest
	resultCh chan<- SubmissionResult
}

var (
	// ErrQueueFull is returned without blocking when the queue is saturated.
	ErrQueueFull = errors.New("submission queue is full")

	// ErrQueueStopped is delivered to requests the worker never reached
	// before shutdown, and to enqueues after Stop.
	ErrQueueStopped = errors.New("submission queue stopped")
)

func NewSubmissionQueue(service *SubmissionService, queueSize int) *SubmissionQueue {
	return &SubmissionQueue{
		service:    service,
		requests:   make(chan *queuedSubmission, queueSize),
		shutdownCh: make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (q *SubmissionQueue) Start() {
	q.processingWg.Add(1)
	go q.worker()
}

// Stop shuts the worker down, then fails every request still sitting in
// the queue so no caller is left blocked on its result channel.
func (q *SubmissionQueue) Stop() {
	close(q.shutdownCh)
	q.processingWg.Wait()

	for {
		select {
		case queued := <-q.requests:
			queued.resultCh <- SubmissionResult{Err: ErrQueueStopped}
			close(queued.resultCh)
		default:
			return
		}
	}
}

// Enqueue adds a submission to the queue and returns the channel its
// result will arrive on. A full queue fails fast instead of blocking.
func (q *SubmissionQueue) Enqueue(req SubmissionRequest) <-chan SubmissionResult {
	resultCh := make(chan SubmissionResult, 1)

	select {
	case <-q.shutdownCh:
		resultCh <- SubmissionResult{Err: ErrQueueStopped}
		close(resultCh)
		return resultCh
	default:
	}

	select {
	case q.requests <- &queuedSubmission{req: req, resultCh: resultCh}:
		return resultCh
	default:
		log.Printf("Warning: submission queue full, dropping vote for election %d", req.ElectionID)
		resultCh <- SubmissionResult{Err: ErrQueueFull}
		close(resultCh)
		return resultCh
	}
}

func (q *SubmissionQueue) worker() {
	defer q.processingWg.Done()

	for {
		select {
		case <-q.shutdownCh:
			return
		case queued := <-q.requests:
			receipt, err := q.service.Submit(queued.req)
			queued.resultCh <- SubmissionResult{Receipt: receipt, Err: err}
			close(queued.resultCh)
		}
	}
}
