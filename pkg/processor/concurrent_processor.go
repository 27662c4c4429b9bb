package processor

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/niels/mini-http/pkg/stats"
)

// Outcome describes what a connection handler sent back to its peer
type Outcome struct {
	Method  string
	Target  string
	Version string
	Status  int
	Bytes   int64
}

// ConnProcessor handles a single accepted connection. The connection is
// closed by the processor after the handler returns. A handler that fails
// after starting a response returns the partial outcome with the error.
type ConnProcessor func(ctx context.Context, conn net.Conn) (*Outcome, error)

// Acceptor returns the next connection to process
type Acceptor func(ctx context.Context) (net.Conn, error)

// ConcurrentProcessor processes accepted connections with a configurable concurrency limit
type ConcurrentProcessor struct {
	maxTasks        int
	connProcessor   ConnProcessor
	progressTracker stats.Tracker
	resultCallback  func(peer string, outcome *Outcome)
	errorCallback   func(peer string, err error)
}

// NewConcurrentProcessor creates a new concurrent processor. A maxTasks of 1
// handles connections inline, one after another.
func NewConcurrentProcessor(maxTasks int, connProcessor ConnProcessor) *ConcurrentProcessor {
	if maxTasks < 1 {
		maxTasks = 1
	}
	return &ConcurrentProcessor{
		maxTasks:      maxTasks,
		connProcessor: connProcessor,
	}
}

// WithProgressTracker sets a custom progress tracker
func (p *ConcurrentProcessor) WithProgressTracker(tracker stats.Tracker) *ConcurrentProcessor {
	p.progressTracker = tracker
	return p
}

// WithCallbacks sets functions called for every finished or failed connection
func (p *ConcurrentProcessor) WithCallbacks(
	resultCallback func(peer string, outcome *Outcome),
	errorCallback func(peer string, err error),
) *ConcurrentProcessor {
	p.resultCallback = resultCallback
	p.errorCallback = errorCallback
	return p
}

// MaxTasks returns the concurrency limit
func (p *ConcurrentProcessor) MaxTasks() int {
	return p.maxTasks
}

// Serve accepts and processes connections until ctx is done or accept fails.
// A slot is reserved before each accept so no more than maxTasks connections
// are ever open at once. Serve waits for in-flight connections before returning.
// Accept errors after ctx is done are treated as a normal shutdown.
func (p *ConcurrentProcessor) Serve(ctx context.Context, accept Acceptor) error {
	if p.progressTracker != nil {
		p.progressTracker.Start()
	}

	semaphore := make(chan struct{}, p.maxTasks)
	var wg sync.WaitGroup

	defer func() {
		wg.Wait()
		if p.progressTracker != nil {
			p.progressTracker.Finish()
		}
	}()

	for {
		// Acquire a semaphore slot
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			return nil
		}

		conn, err := accept(ctx)
		if err != nil {
			<-semaphore
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		if p.maxTasks == 1 {
			p.process(ctx, conn)
			<-semaphore
			continue
		}

		wg.Add(1)
		go func(conn net.Conn) {
			defer wg.Done()
			defer func() { <-semaphore }() // Release the slot when done
			p.process(ctx, conn)
		}(conn)
	}
}

// process runs the handler for one connection and records its result
func (p *ConcurrentProcessor) process(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	peer := peerOf(conn)

	if p.progressTracker != nil {
		p.progressTracker.StartConn(peer)
	}

	outcome, err := p.connProcessor(ctx, conn)
	if err != nil {
		var status int
		var bytes int64
		if outcome != nil {
			status, bytes = outcome.Status, outcome.Bytes
		}
		if p.progressTracker != nil {
			p.progressTracker.ErrorConn(peer, status, bytes, err.Error())
		}
		if outcome != nil && p.resultCallback != nil {
			p.resultCallback(peer, outcome)
		}
		if p.errorCallback != nil {
			p.errorCallback(peer, err)
		}
		return
	}

	if outcome == nil {
		outcome = &Outcome{}
	}

	if p.progressTracker != nil {
		p.progressTracker.CompleteConn(peer, outcome.Status, outcome.Bytes)
	}
	if p.resultCallback != nil {
		p.resultCallback(peer, outcome)
	}
}

func peerOf(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}
