package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/niels/mini-http/pkg/config"
	"github.com/niels/mini-http/pkg/fileprocessing"
	"github.com/niels/mini-http/pkg/logging"
	"github.com/niels/mini-http/pkg/mimetype"
	"github.com/niels/mini-http/pkg/processor"
	"github.com/niels/mini-http/pkg/request"
	"github.com/niels/mini-http/pkg/response"
	"github.com/niels/mini-http/pkg/urlpath"
)

// ErrTimeout is returned when a connection exceeds its deadline
var ErrTimeout = errors.New("connection deadline exceeded")

// State is a step in the handling of one connection
type State int

const (
	StateReceivingRequest State = iota
	StateParsed
	StatePathResolved
	StateFileChecked
	StateResponding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReceivingRequest:
		return "receiving_request"
	case StateParsed:
		return "parsed"
	case StatePathResolved:
		return "path_resolved"
	case StateFileChecked:
		return "file_checked"
	case StateResponding:
		return "responding"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Handler answers a single request on a connection
type Handler struct {
	resolver   *urlpath.Resolver
	limits     request.Limits
	chunkSize  int
	readBuffer int
	timeout    time.Duration
}

// NewHandler creates a handler serving files beneath cfg.Server.Root
func NewHandler(cfg *config.Config) *Handler {
	return &Handler{
		resolver: urlpath.NewResolver(cfg.Server.Root, cfg.Server.Index, cfg.Limits.MaxPath),
		limits: request.Limits{
			MaxMethod:  cfg.Limits.MaxMethod,
			MaxTarget:  cfg.Limits.MaxTarget,
			MaxVersion: cfg.Limits.MaxVersion,
		},
		chunkSize:  cfg.Server.ChunkSize,
		readBuffer: cfg.Server.ReadBuffer,
		timeout:    cfg.Timeout(),
	}
}

// Handle reads one request from conn and writes exactly one response, or
// none at all if the request never arrives. It does not close conn.
//
// Protocol, path and filesystem problems are answered with an error status
// and reported as a normal outcome. Transport failures and timeouts are
// returned as errors; if a response was already started, the outcome with
// the bytes sent so far is returned alongside.
func (h *Handler) Handle(ctx context.Context, conn net.Conn) (*processor.Outcome, error) {
	peer := peerOf(conn)
	connID := uuid.New().String()
	log := logging.WithPeer("handler", peer).With().Str("conn_id", connID).Logger()
	defer transition(log, StateClosed)

	if h.timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(h.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set deadline: %w", err)
		}
	}

	transition(log, StateReceivingRequest)
	buf := make([]byte, h.readBuffer)
	n, err := conn.Read(buf)
	if n <= 0 {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		fields := peerFields(peer, connID)
		fields["error"] = err
		logging.InfoWith("Connection closed before request", fields)
		return nil, transportError("read request", err)
	}

	req, err := request.Parse(buf[:n], h.limits)
	logRequest(req, peer, connID)
	if err != nil {
		log.Debug().Err(err).Msg("Rejecting request line")
		return h.respond(conn, &processor.Outcome{}, response.Error(400))
	}
	transition(log, StateParsed)

	outcome := &processor.Outcome{
		Method:  req.Method,
		Target:  req.Target,
		Version: req.Version,
	}

	if !req.IsRetrieval() {
		return h.respond(conn, outcome, response.Error(405))
	}

	path, err := h.resolver.Resolve(req.Target)
	if err != nil {
		log.Debug().Err(err).Str("target", req.Target).Msg("Rejecting target")
		return h.respond(conn, outcome, response.Error(400))
	}
	transition(log, StatePathResolved)

	file, meta, err := fileprocessing.OpenRegular(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("File lookup failed")
		if errors.Is(err, fileprocessing.ErrNotRegular) {
			return h.respond(conn, outcome, response.Error(403))
		}
		return h.respond(conn, outcome, response.Error(404))
	}
	defer file.Close()
	transition(log, StateFileChecked)

	transition(log, StateResponding)
	return h.respond(conn, outcome, response.File(mimetype.Resolve(path), meta.Size, file))
}

// respond writes resp and fills in the outcome
func (h *Handler) respond(conn net.Conn, outcome *processor.Outcome, resp *response.Response) (*processor.Outcome, error) {
	outcome.Status = resp.StatusCode

	sent, err := response.NewWriter(conn, h.chunkSize).Write(resp)
	outcome.Bytes = sent
	if err != nil {
		return outcome, transportError(fmt.Sprintf("write %d response", resp.StatusCode), err)
	}
	return outcome, nil
}

// transportError wraps err, marking deadline expiry as ErrTimeout
func transportError(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func transition(log zerolog.Logger, state State) {
	log.Debug().Str("state", state.String()).Msg("Connection state")
}

// logRequest writes the per-connection info line
func logRequest(req *request.Request, peer, connID string) {
	fields := peerFields(peer, connID)
	if req != nil {
		fields["method"] = req.Method
		fields["target"] = req.Target
		logging.InfoWith("Request", fields)
		return
	}
	logging.InfoWith("Malformed request", fields)
}

func peerFields(peer, connID string) map[string]interface{} {
	fields := map[string]interface{}{
		"peer":    peer,
		"conn_id": connID,
	}
	if host, port, err := net.SplitHostPort(peer); err == nil {
		fields["peer_addr"] = host
		fields["peer_port"] = port
	}
	return fields
}

func peerOf(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}
