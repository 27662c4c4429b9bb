package stats

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Tracker records the outcome of each connection the server handles
type Tracker interface {
	// Start marks the beginning of serving
	Start()
	// StartConn marks a connection as accepted
	StartConn(peer string)
	// CompleteConn marks a connection as answered with status and body bytes sent
	CompleteConn(peer string, status int, bytes int64)
	// ErrorConn marks a connection as closed without a complete response.
	// status is 0 when no response was started.
	ErrorConn(peer string, status int, bytes int64, message string)
	// Finish prints or records the final summary
	Finish()
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Accepted  int
	Active    int
	Completed int
	Errors    int
	BytesSent int64
	ByStatus  map[int]int
	Uptime    time.Duration
}

// ConsoleTracker implements Tracker and prints a coloured summary when serving stops
type ConsoleTracker struct {
	mu        sync.Mutex
	writer    io.Writer
	startTime time.Time
	accepted  int
	active    int
	completed int
	errors    int
	bytesSent int64
	byStatus  map[int]int
}

// NewConsoleTracker creates a new console tracker writing to stdout
func NewConsoleTracker() *ConsoleTracker {
	return &ConsoleTracker{
		writer:   os.Stdout,
		byStatus: make(map[int]int),
	}
}

// WithWriter sets the writer for the console tracker
func (t *ConsoleTracker) WithWriter(writer io.Writer) *ConsoleTracker {
	t.writer = writer
	return t
}

// Start resets the counters and records the start time
func (t *ConsoleTracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = time.Now()
	t.accepted = 0
	t.active = 0
	t.completed = 0
	t.errors = 0
	t.bytesSent = 0
	t.byStatus = make(map[int]int)
}

// StartConn marks a connection as accepted
func (t *ConsoleTracker) StartConn(peer string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.accepted++
	t.active++
}

// CompleteConn marks a connection as answered
func (t *ConsoleTracker) CompleteConn(peer string, status int, bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active--
	t.completed++
	t.bytesSent += bytes
	t.byStatus[status]++
}

// ErrorConn marks a connection as aborted
func (t *ConsoleTracker) ErrorConn(peer string, status int, bytes int64, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active--
	t.errors++
	t.bytesSent += bytes
	if status != 0 {
		t.byStatus[status]++
	}
}

// Snapshot returns a copy of the current counters
func (t *ConsoleTracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	byStatus := make(map[int]int, len(t.byStatus))
	for code, count := range t.byStatus {
		byStatus[code] = count
	}

	var uptime time.Duration
	if !t.startTime.IsZero() {
		uptime = time.Since(t.startTime)
	}

	return Snapshot{
		Accepted:  t.accepted,
		Active:    t.active,
		Completed: t.completed,
		Errors:    t.errors,
		BytesSent: t.bytesSent,
		ByStatus:  byStatus,
		Uptime:    uptime,
	}
}

// Finish prints the summary
func (t *ConsoleTracker) Finish() {
	snap := t.Snapshot()

	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.writer, "\nServed for %s\n", snap.Uptime.Round(time.Second))
	fmt.Fprintf(t.writer, "Handled %d connections: %d answered, %d aborted, %d bytes sent\n",
		snap.Accepted, snap.Completed, snap.Errors, snap.BytesSent)

	codes := make([]int, 0, len(snap.ByStatus))
	for code := range snap.ByStatus {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	for _, code := range codes {
		fmt.Fprintf(t.writer, "  %s %d\n", statusColor(code)(fmt.Sprintf("%d", code)), snap.ByStatus[code])
	}
}

// statusColor picks a colour by status class
func statusColor(code int) func(format string, a ...interface{}) string {
	switch {
	case code >= 500:
		return color.RedString
	case code >= 400:
		return color.YellowString
	default:
		return color.GreenString
	}
}
