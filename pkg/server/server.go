package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/niels/mini-http/pkg/accesslog"
	"github.com/niels/mini-http/pkg/config"
	"github.com/niels/mini-http/pkg/logging"
	"github.com/niels/mini-http/pkg/processor"
	"github.com/niels/mini-http/pkg/retry"
	"github.com/niels/mini-http/pkg/stats"
)

// Server accepts connections and answers one request on each
type Server struct {
	config    *config.Config
	handler   *Handler
	listener  net.Listener
	tracker   stats.Tracker
	accessLog *accesslog.Logger
}

// New creates a server for the given configuration
func New(cfg *config.Config) *Server {
	return &Server{
		config:  cfg,
		handler: NewHandler(cfg),
	}
}

// WithTracker sets the connection statistics tracker
func (s *Server) WithTracker(tracker stats.Tracker) *Server {
	s.tracker = tracker
	return s
}

// WithAccessLog sets the access logger
func (s *Server) WithAccessLog(logger *accesslog.Logger) *Server {
	s.accessLog = logger
	return s
}

// WithListener makes the server accept on an existing listener
func (s *Server) WithListener(ln net.Listener) *Server {
	s.listener = ln
	return s
}

// Listen opens the TCP listener. Failures here are startup errors.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address(), err)
	}
	s.listener = ln
	return nil
}

// Addr returns the listener address, or nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled. In-flight connections
// are allowed to finish before Serve returns.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing the listener unblocks a pending Accept
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	log := logging.WithComponent("server")

	opts := retry.FromConfig(s.config)
	opts.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Warn().
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying accept")
	}

	proc := processor.NewConcurrentProcessor(s.config.Server.MaxConns, s.handler.Handle).
		WithCallbacks(s.recordOutcome, s.recordFailure)
	if s.tracker != nil {
		proc = proc.WithProgressTracker(s.tracker)
	}

	log.Info().
		Str("addr", s.listener.Addr().String()).
		Str("root", s.config.Server.Root).
		Int("max_conns", proc.MaxTasks()).
		Dur("timeout", s.config.Timeout()).
		Msg("Serving")

	err := proc.Serve(ctx, func(ctx context.Context) (net.Conn, error) {
		return s.accept(ctx, opts)
	})
	if err != nil {
		return fmt.Errorf("accept failed: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}

// accept returns the next connection. Accept errors never stop the server:
// once retries are used up the error is logged and accepting starts over
// after a pause. Only a closed listener or a cancelled ctx end the loop.
func (s *Server) accept(ctx context.Context, opts retry.Options) (net.Conn, error) {
	pause := opts.MaxDelay
	if pause <= 0 {
		pause = time.Second
	}

	for {
		conn, err := retry.Accept(ctx, s.listener, opts)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
			return nil, err
		}

		logging.ErrorWith("Accept failed", map[string]interface{}{
			"error": err,
			"pause": pause,
		})

		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// recordOutcome writes the access log entry for an answered request
func (s *Server) recordOutcome(peer string, outcome *processor.Outcome) {
	if s.accessLog == nil {
		return
	}

	err := s.accessLog.Log(accesslog.Entry{
		Time:    time.Now(),
		Peer:    peer,
		Method:  outcome.Method,
		Target:  outcome.Target,
		Version: outcome.Version,
		Status:  outcome.Status,
		Bytes:   outcome.Bytes,
	})
	if err != nil {
		logging.WarnWith("Failed to write access log", map[string]interface{}{
			"error": err,
		})
	}
}

// recordFailure logs a connection that was closed without a full response
func (s *Server) recordFailure(peer string, err error) {
	fields := map[string]interface{}{
		"peer":  peer,
		"error": err,
	}
	if errors.Is(err, ErrTimeout) {
		logging.WarnWith("Connection timed out", fields)
		return
	}
	logging.DebugWith("Connection closed without response", fields)
}
