// Package transporttest provides a scripted Transport for driving the
// event loop without a browser.
package transporttest

import (
	"context"
	"errors"
	"time"

	"github.com/devicelab-dev/cdt/pkg/transport"
)

// ErrPollBudget is returned by Poll once MaxPolls is exceeded, so a test
// with a loop that never settles fails instead of hanging.
var ErrPollBudget = errors.New("transporttest: poll budget exhausted")

// Responder is consulted for every sent payload and returns the chunks to
// deliver in reply. Returning nil sends nothing back.
type Responder func(payload []byte) []string

// Fake is an in-memory Transport. Chunks queued with Feed, or produced by
// Respond, are delivered on the next Poll. It is not safe for concurrent use.
type Fake struct {
	Handler transport.Handler

	// Respond, when set, generates incoming chunks for each Send.
	Respond Responder

	// MaxPolls bounds Poll calls; zero means 1000.
	MaxPolls int

	// SendErr, when set, is returned by every Send.
	SendErr error

	// OnPoll runs at the start of each Poll.
	OnPoll func(n int)

	Sent  []string
	Polls int

	incoming  []string
	connected bool
	closed    bool
	dropAfter bool
	writable  bool
	Closes    int
}

// New returns a Fake that reports StateConnected on the first Poll.
func New(h transport.Handler) *Fake {
	return &Fake{Handler: h}
}

// Feed queues chunks for delivery.
func (f *Fake) Feed(chunks ...string) {
	f.incoming = append(f.incoming, chunks...)
}

// Disconnect reports StateClosed after the queued chunks are delivered.
func (f *Fake) Disconnect() {
	f.dropAfter = true
}

// RequestWritable implements transport.Transport.
func (f *Fake) RequestWritable() {
	f.writable = true
}

// Send implements transport.Transport.
func (f *Fake) Send(payload []byte) error {
	if f.closed {
		return transport.ErrClosed
	}
	if f.SendErr != nil {
		return f.SendErr
	}
	f.Sent = append(f.Sent, string(payload))
	if f.Respond != nil {
		f.incoming = append(f.incoming, f.Respond(payload)...)
	}
	return nil
}

// Poll implements transport.Transport. It never sleeps.
func (f *Fake) Poll(ctx context.Context, _ time.Duration) error {
	if f.closed {
		return transport.ErrClosed
	}
	max := f.MaxPolls
	if max == 0 {
		max = 1000
	}
	if f.Polls >= max {
		return ErrPollBudget
	}
	f.Polls++
	if f.OnPoll != nil {
		f.OnPoll(f.Polls)
	}

	if !f.connected {
		f.connected = true
		f.Handler.OnStateChange(transport.StateConnected, nil)
	}

	if f.writable {
		f.writable = false
		f.Handler.OnWritable()
	}

	for len(f.incoming) > 0 && ctx.Err() == nil {
		chunk := f.incoming[0]
		f.incoming = f.incoming[1:]
		f.Handler.OnChunk([]byte(chunk))
	}

	if f.dropAfter && len(f.incoming) == 0 {
		f.closed = true
		f.Handler.OnStateChange(transport.StateClosed, nil)
	}
	return nil
}

// Close implements transport.Transport.
func (f *Fake) Close() error {
	f.closed = true
	f.Closes++
	return nil
}

// Split cuts s into chunks of at most n bytes.
func Split(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
