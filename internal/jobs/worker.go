package jobs

import (
	"context"
	"log"
	"time"
)

// Processor is the unit of work a Worker drives on each tick.
type Processor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker runs the reconcile sweep on a fixed interval. Each tick drains
// chunks whose index state lags the record store; errors are logged and
// the next tick retries.
type Worker struct {
	processor    Processor
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

func NewWorker(processor Processor, pollInterval time.Duration) *Worker {
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled or Stop is
// called. It blocks; run it in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("reconcile sweep started (interval %v)", w.pollInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("reconcile sweep stopped: context cancelled")
			return
		case <-w.stopChan:
			log.Println("reconcile sweep stopped")
			return
		case <-ticker.C:
			if err := w.processor.ProcessJobs(ctx); err != nil {
				log.Printf("reconcile sweep failed: %v", err)
			}
		}
	}
}

// Stop signals the loop to exit and waits for the current sweep to finish.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
}
