package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultWorkers is how many cases a sweep checks at once.
const DefaultWorkers = 4

// checkPool bounds the goroutines a sweep uses to check cases. A panicking
// check is recovered and counted instead of taking the process down.
type checkPool struct {
	sem    chan struct{}
	wg     sync.WaitGroup
	panics atomic.Int64
	logger *slog.Logger
}

func newCheckPool(size int, logger *slog.Logger) *checkPool {
	if size <= 0 {
		size = 1
	}
	return &checkPool{sem: make(chan struct{}, size), logger: logger}
}

// Go runs fn once a slot is free. It blocks while the pool is full and gives
// up with ctx's error if ctx ends first.
func (p *checkPool) Go(ctx context.Context, fn func()) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.wg.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.panics.Add(1)
				p.logger.Error("case check panicked", slog.Any("panic", r))
			}
			<-p.sem
			p.wg.Done()
		}()
		fn()
	}()
	return nil
}

// Wait blocks until every started check returns and reports how many panicked.
func (p *checkPool) Wait() int {
	p.wg.Wait()
	return int(p.panics.Load())
}
