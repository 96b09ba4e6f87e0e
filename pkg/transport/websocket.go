package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultChunkSize is the largest chunk handed to Handler.OnChunk.
const DefaultChunkSize = 4096

// Options configures Dial.
type Options struct {
	Endpoint Endpoint

	// ChunkSize splits incoming messages; zero means DefaultChunkSize.
	ChunkSize int

	HandshakeTimeout time.Duration
}

type eventKind int

const (
	eventConnected eventKind = iota
	eventChunk
	eventClosed
)

type event struct {
	kind eventKind
	data []byte
	err  error
}

// WebSocket is a Transport over a gorilla websocket connection. A reader
// goroutine splits each incoming message into chunks and queues them; Poll
// hands them to the handler on the caller's goroutine.
type WebSocket struct {
	conn      *websocket.Conn
	handler   Handler
	chunkSize int

	events chan event
	done   chan struct{}

	// Owned by the polling goroutine.
	connected bool
	closed    bool
	writable  bool

	closeOnce sync.Once
}

// Dial connects to opts.Endpoint. The handler sees StateConnected on the
// first Poll.
func Dial(ctx context.Context, opts Options, h Handler) (*WebSocket, error) {
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		NetDialContext:   (&net.Dialer{Timeout: timeout}).DialContext,
	}

	header := http.Header{}
	if opts.Endpoint.Origin != "" {
		header.Set("Origin", opts.Endpoint.Origin)
	}

	conn, resp, err := dialer.DialContext(ctx, opts.Endpoint.URL(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", opts.Endpoint.URL(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", opts.Endpoint.URL(), err)
	}

	return newWebSocket(conn, opts.ChunkSize, h), nil
}

func newWebSocket(conn *websocket.Conn, chunkSize int, h Handler) *WebSocket {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	w := &WebSocket{
		conn:      conn,
		handler:   h,
		chunkSize: chunkSize,
		events:    make(chan event, 64),
		done:      make(chan struct{}),
	}
	w.events <- event{kind: eventConnected}
	go w.readLoop()
	return w
}

func (w *WebSocket) readLoop() {
	for {
		_, r, err := w.conn.NextReader()
		if err != nil {
			w.push(event{kind: eventClosed, err: err})
			return
		}
		for {
			buf := make([]byte, w.chunkSize)
			n, err := io.ReadFull(r, buf)
			if n > 0 {
				if !w.push(event{kind: eventChunk, data: buf[:n]}) {
					return
				}
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			if err != nil {
				w.push(event{kind: eventClosed, err: err})
				return
			}
		}
	}
}

func (w *WebSocket) push(ev event) bool {
	select {
	case w.events <- ev:
		return true
	case <-w.done:
		return false
	}
}

// RequestWritable implements Transport.
func (w *WebSocket) RequestWritable() {
	w.writable = true
}

// Send implements Transport.
func (w *WebSocket) Send(payload []byte) error {
	if w.closed {
		return ErrClosed
	}
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

// Poll implements Transport.
func (w *WebSocket) Poll(ctx context.Context, timeout time.Duration) error {
	if w.closed {
		return ErrClosed
	}

	w.drain()
	if w.closed {
		return nil
	}

	if w.writable && w.connected {
		w.writable = false
		w.handler.OnWritable()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-w.events:
		w.dispatch(ev)
		w.drain()
	case <-timer.C:
	case <-ctx.Done():
	}
	return nil
}

// drain dispatches every event already queued without waiting.
func (w *WebSocket) drain() {
	for !w.closed {
		select {
		case ev := <-w.events:
			w.dispatch(ev)
		default:
			return
		}
	}
}

func (w *WebSocket) dispatch(ev event) {
	switch ev.kind {
	case eventConnected:
		w.connected = true
		w.handler.OnStateChange(StateConnected, nil)
	case eventChunk:
		w.handler.OnChunk(ev.data)
	case eventClosed:
		w.closed = true
		w.connected = false
		err := ev.err
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			err = nil
		}
		w.handler.OnStateChange(StateClosed, err)
	}
}

// Close sends a close frame and releases the connection.
func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = w.conn.Close()
		w.closed = true
	})
	return err
}
