// Package session runs one command against one DevTools connection.
//
// A Session owns everything the event loop touches: the frame buffer, the
// chunk scanner, the id sequence, and the pending-send and awaiting-reply
// queues. All of it is used from the goroutine calling Run; the transport
// calls back into the session only from inside Poll.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/devicelab-dev/cdt/pkg/command"
	"github.com/devicelab-dev/cdt/pkg/core"
	"github.com/devicelab-dev/cdt/pkg/logger"
	"github.com/devicelab-dev/cdt/pkg/msg"
	"github.com/devicelab-dev/cdt/pkg/transport"
)

// DefaultPollInterval bounds each transport poll.
const DefaultPollInterval = 250 * time.Millisecond

var (
	ErrShutdown       = errors.New("session: shut down")
	ErrNotInitialized = errors.New("session: command not initialized")
)

// Options tunes a Session.
type Options struct {
	// PollInterval bounds each wait for transport activity. Zero means
	// DefaultPollInterval.
	PollInterval time.Duration
}

// Stats counts what a session has seen.
type Stats struct {
	Sent      int
	Replies   int
	Events    int
	Anomalies int
	Malformed int
}

// Session drives a command over a transport.
type Session struct {
	machine *command.Machine
	opts    Options

	ids      msg.IDSequence
	pending  *msg.Queue
	awaiting *msg.Queue

	scanner msg.ChunkScanner
	frame   []byte

	tr        transport.Transport
	connected bool
	closed    bool
	err       error
	shutdown  bool

	stats Stats
}

// Routing keys. Both are top-level; the first one present decides.
var routeSpecs = []msg.Spec{
	{Key: "id", Depth: 1, Type: msg.TypeInteger},
	{Key: "method", Depth: 1, Type: msg.TypeString},
}

// New returns a session for cmd.
func New(cmd command.Command, opts Options) *Session {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Session{
		machine:  command.NewMachine(cmd),
		opts:     opts,
		pending:  msg.NewQueue("pending"),
		awaiting: msg.NewQueue("awaiting"),
	}
}

// Init initializes the command. Its opening requests wait in the pending
// queue until Run gets a writable connection.
func (s *Session) Init() error {
	if err := s.machine.Init(s); err != nil {
		if errors.Is(err, core.ErrBuildFailed) || errors.Is(err, core.ErrBadArguments) {
			return err
		}
		return core.ErrInitFailed.WithCause(err)
	}
	return nil
}

// Enqueue implements command.Sender. The id is only consumed when the
// request renders.
func (s *Session) Enqueue(req msg.Request) (int, error) {
	if s.shutdown {
		return 0, ErrShutdown
	}
	rec, err := msg.Build(req, s.ids.Peek())
	if err != nil {
		return 0, core.ErrBuildFailed.WithCause(err)
	}
	s.ids.Next()
	s.pending.Push(rec)
	logger.Debug("Queued %s with id %d", rec.Kind, rec.ID)
	return rec.ID, nil
}

// Run services tr until the command is done, the connection closes, or ctx
// is cancelled. The session is shut down on every return path.
//
// Losing the connection is a graceful shutdown, not a failure of Run: it is
// logged and kept for Err, and Run still returns nil. Only a session that
// was never initialized is an error.
func (s *Session) Run(ctx context.Context, tr transport.Transport) error {
	defer s.Shutdown()

	if s.machine.State() != command.StateActive {
		return ErrNotInitialized
	}
	s.tr = tr

	for ctx.Err() == nil && !s.closed {
		tick := false
		if s.pending.Len() == 0 {
			tick = s.machine.Tick()
		}
		if !tick && s.pending.Len() == 0 && s.awaiting.Len() == 0 {
			logger.Debug("Command complete")
			break
		}

		tr.RequestWritable()
		if err := tr.Poll(ctx, s.opts.PollInterval); err != nil {
			if ctx.Err() == nil && s.err == nil {
				s.err = core.ErrDisconnected.WithCause(err)
			}
			break
		}
	}

	if ctx.Err() != nil {
		logger.Notice("Interrupted")
		return nil
	}
	if s.err != nil {
		logger.Error("Session ended: %v", s.err)
	}
	return nil
}

// Err returns why the connection was lost, wrapped in core.ErrDisconnected,
// or nil if the session ended normally.
func (s *Session) Err() error {
	return s.err
}

// Shutdown finalizes the command, drops every outstanding request and
// releases the frame buffer. It is safe to call more than once.
func (s *Session) Shutdown() {
	if s.shutdown {
		return
	}
	s.machine.Finalize()
	s.shutdown = true

	drop := func(rec *msg.Record) {
		logger.Debug("Dropping %s with id %d", rec.Kind, rec.ID)
	}
	if n := s.pending.Drain(drop) + s.awaiting.Drain(drop); n > 0 {
		logger.Info("Dropped %d outstanding requests", n)
	}

	s.frame = nil
	s.scanner.Reset()
	s.tr = nil
}

// Stats returns the session's counters.
func (s *Session) Stats() Stats {
	return s.stats
}

// Pending returns how many requests wait to be sent.
func (s *Session) Pending() int { return s.pending.Len() }

// Awaiting returns how many sent requests have no reply yet.
func (s *Session) Awaiting() int { return s.awaiting.Len() }

// OnChunk implements transport.Handler.
func (s *Session) OnChunk(chunk []byte) {
	s.frame = append(s.frame, chunk...)

	switch s.scanner.Scan(chunk) {
	case msg.ScanContinue:
		return
	case msg.ScanMalformed:
		s.stats.Malformed++
		logger.Error("%v: %q", core.ErrMalformedFrame, s.frame)
	case msg.ScanComplete:
		s.route(s.frame)
	}
	s.frame = s.frame[:0]
}

// route hands a complete frame to the command as a reply or an event.
func (s *Session) route(frame []byte) {
	if logger.Enabled(logger.LevelDebug) {
		logger.Debug("Received: %s", frame)
	}

	var (
		id     int
		method string
		hasID  bool
		hasMet bool
	)
	err := msg.Extract(frame, routeSpecs, func(i int, _ msg.Spec, v msg.Value) bool {
		if i == 0 {
			id, hasID = int(v.Int), true
		} else {
			method, hasMet = string(v.Str), true
		}
		return true
	})
	if err != nil {
		logger.Error("Failed to scan message: %v", err)
		return
	}

	switch {
	case hasID:
		s.stats.Replies++
		if rec := s.awaiting.FindByID(id); rec != nil {
			s.awaiting.Remove(rec)
		} else {
			s.stats.Anomalies++
			logger.Warn("%v", core.ErrUnexpectedReply.WithMessagef("Failed to find sent message with id %d", id))
		}
		s.machine.OnReply(id, frame)
	case hasMet:
		s.stats.Events++
		s.machine.OnEvent(method, frame)
	default:
		logger.Warn("%v", core.ErrUnexpectedReply.WithMessagef("Message has neither id nor method: %s", frame))
	}
}

// OnWritable implements transport.Handler. One pending request is sent per
// opportunity.
func (s *Session) OnWritable() {
	if s.tr == nil {
		return
	}
	rec := s.pending.Pop()
	if rec == nil {
		return
	}

	logger.Info("Sending: %s", rec.Payload)
	if err := s.tr.Send([]byte(rec.Payload)); err != nil {
		logger.Error("Failed to send message with id %d: %v", rec.ID, err)
		s.err = core.ErrDisconnected.WithCause(err)
		s.closed = true
		return
	}
	s.stats.Sent++
	s.awaiting.Push(rec)
}

// OnStateChange implements transport.Handler.
func (s *Session) OnStateChange(state transport.State, err error) {
	switch state {
	case transport.StateConnected:
		s.connected = true
		logger.Notice("Connected")
	case transport.StateClosed:
		s.connected = false
		s.closed = true
		if err != nil {
			logger.Error("Disconnected: %v", err)
			if s.err == nil {
				s.err = core.ErrDisconnected.WithCause(err)
			}
			return
		}
		logger.Notice("Disconnected")
	default:
		logger.Debug("Connection %s", state)
	}
}

// Connected reports whether the transport has reported a live connection.
func (s *Session) Connected() bool {
	return s.connected
}
