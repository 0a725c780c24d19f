package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dataplatform/dataplatform/pkg/contract"
)

// ExecutionMessage asks for one pipeline run to be executed.
type ExecutionMessage struct {
	PipelineID  string `json:"pipeline_id"`
	RunID       string `json:"run_id"`
	TriggeredBy string `json:"triggered_by"`
}

// Publisher hands execution requests to the worker pool.
type Publisher interface {
	Publish(msg ExecutionMessage) *contract.Error
}

// Handler processes one execution message. It must not panic; failures are
// recorded on the run itself.
type Handler func(ctx context.Context, msg ExecutionMessage)

// Dispatcher is a bounded in-process queue feeding a fixed pool of workers.
// Messages accepted before Shutdown are drained before Shutdown returns.
type Dispatcher struct {
	messages chan ExecutionMessage
	handler  Handler
	workers  int
	logger   *logrus.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(handler Handler, workers, queueSize int, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		messages: make(chan ExecutionMessage, queueSize),
		handler:  handler,
		workers:  workers,
		logger:   logger,
	}
}

// Start launches the worker pool. Workers exit when the queue is closed and
// drained. Handlers run detached from ctx's cancellation: a message accepted
// before Shutdown must still complete during the drain.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func(worker int) {
			defer d.wg.Done()
			for msg := range d.messages {
				d.logger.WithFields(logrus.Fields{
					"worker": worker,
					"run_id": msg.RunID,
				}).Debug("Picked up execution message")
				d.handler(ctx, msg)
			}
		}(i)
	}
}

// Publish enqueues a message without blocking. A full queue is reported to
// the caller rather than stalling the trigger path.
func (d *Dispatcher) Publish(msg ExecutionMessage) *contract.Error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return contract.NewError(
			contract.ErrorCodeInternalError, "execution queue is shut down",
		)
	}

	select {
	case d.messages <- msg:
		return nil
	default:
		return contract.NewError(
			contract.ErrorCodeInternalError,
			fmt.Sprintf("execution queue is full, run %s not scheduled", msg.RunID),
		)
	}
}

// Shutdown stops accepting messages and waits for in-flight work, up to the
// context deadline.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.messages)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue drain interrupted: %w", ctx.Err())
	}
}
