// Package transport carries DevTools frames between the event loop and the
// browser. Implementations deliver every callback on the goroutine that
// calls Poll.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrClosed       = errors.New("transport: connection closed")
	ErrEmptyDisplay = errors.New("transport: display is empty")
)

// State is the connection state reported to Handler.OnStateChange.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler receives connection events. Chunks are only valid for the
// duration of the call.
type Handler interface {
	OnChunk(chunk []byte)
	OnWritable()
	OnStateChange(state State, err error)
}

// Transport is a connection serviced by the event loop.
type Transport interface {
	// RequestWritable asks for one OnWritable callback during a later Poll.
	RequestWritable()

	// Send writes one complete text frame.
	Send(payload []byte) error

	// Poll dispatches pending events to the handler, waiting at most
	// timeout for the first one. It returns early when ctx is done.
	Poll(ctx context.Context, timeout time.Duration) error

	Close() error
}

// Endpoint addresses a DevTools target.
type Endpoint struct {
	Host   string
	Port   int
	Path   string
	Origin string
}

// URL returns the websocket URL for the endpoint.
func (e Endpoint) URL() string {
	return fmt.Sprintf("ws://%s:%d%s", e.Host, e.Port, e.Path)
}

// TargetPathPrefix is where Chrome serves page targets.
const TargetPathPrefix = "/devtools/page/"

// ResolvePath turns a DISPLAY argument into a target path. Absolute paths
// are used as given; a bare target id is placed under TargetPathPrefix.
func ResolvePath(display string) (string, error) {
	display = strings.TrimSpace(display)
	switch {
	case display == "":
		return "", ErrEmptyDisplay
	case strings.HasPrefix(display, "/"):
		return display, nil
	case strings.ContainsAny(display, "/?# "):
		return "", fmt.Errorf("transport: invalid display %q", display)
	default:
		return TargetPathPrefix + display, nil
	}
}

// Leaf returns the last path element of a target path. It names output files.
func Leaf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
