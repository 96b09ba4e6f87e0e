package command

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/devicelab-dev/cdt/pkg/jsengine"
	"github.com/devicelab-dev/cdt/pkg/logger"
	"github.com/devicelab-dev/cdt/pkg/msg"
)

// Run evaluates one expression in the page.
type Run struct {
	Base
	// Expression is JSON-escaped.
	Expression string
}

func (r *Run) Init(s Sender) error {
	_, err := s.Enqueue(msg.Request{Kind: msg.KindEvaluate, Expression: r.Expression})
	return err
}

// RunLogFetchInterval is the pause between console history fetches.
const RunLogFetchInterval = time.Second

// RunLog evaluates an expression while capturing the page's console.log
// output, printing each new entry's first argument to Out. It stops once an
// entry containing EndMarker appears, or when the history is tampered with,
// and restores the page's console before exiting.
type RunLog struct {
	// Expression is JSON-escaped.
	Expression string
	EndMarker  string
	Out        io.Writer
	Clock      Clock

	sender    Sender
	idFetch   int
	idReset   int
	resetSent bool
	done      bool

	fetchAt      time.Time
	fetchPending bool

	history []*string
}

func (r *RunLog) Init(s Sender) error {
	if r.Clock == nil {
		r.Clock = SystemClock
	}
	r.sender = s

	if _, err := s.Enqueue(evaluate(jsengine.LogCaptureScript)); err != nil {
		return err
	}
	if _, err := s.Enqueue(msg.Request{Kind: msg.KindEvaluate, Expression: r.Expression}); err != nil {
		return err
	}
	id, err := s.Enqueue(evaluate(jsengine.LogFetchScript))
	if err != nil {
		return err
	}
	r.idFetch = id
	return nil
}

func evaluate(script string) msg.Request {
	return msg.Request{Kind: msg.KindEvaluate, Expression: jsengine.Escape(script)}
}

func (r *RunLog) OnReply(id int, frame []byte) {
	if r.resetSent && id == r.idReset {
		r.done = true
		return
	}
	if id != r.idFetch {
		logger.Notice("Received message with id %d: %s", id, frame)
		return
	}

	complete := false
	if raw, ok := evaluateValue(frame); ok {
		complete = r.handleHistory(raw)
	} else {
		logger.Info("run-log: no console history in reply: %s", frame)
	}

	if complete {
		id, err := r.sender.Enqueue(evaluate(jsengine.LogResetScript))
		if err != nil {
			logger.Error("run-log: %v", err)
			r.done = true
			return
		}
		r.idReset = id
		r.resetSent = true
		return
	}

	r.fetchAt = r.Clock.Now().Add(RunLogFetchInterval)
	r.fetchPending = true
}

func (r *RunLog) OnEvent(string, []byte) {}

// handleHistory prints entries added since the last fetch and reports
// whether logging is complete.
func (r *RunLog) handleHistory(raw string) bool {
	entries, err := parseConsoleHistory(raw)
	if err != nil {
		logger.Notice("Failed to parse log lines: %v", err)
		return true
	}

	if len(r.history) > len(entries) {
		logger.Warn("Log tamper detected! Got %d, had %d", len(entries), len(r.history))
		return true
	}
	for i, prev := range r.history {
		if prev != nil && entries[i] != nil && *prev != *entries[i] {
			logger.Warn("Log tamper detected!")
			return true
		}
	}

	for _, e := range entries[len(r.history):] {
		if e != nil {
			fmt.Fprintln(r.Out, *e)
		}
	}

	complete := false
	if n := len(entries); n > 0 && entries[n-1] != nil && r.EndMarker != "" {
		complete = strings.Contains(*entries[n-1], r.EndMarker)
	}

	r.history = entries
	return complete
}

// parseConsoleHistory decodes the JSON array of console.log argument lists
// and keeps each call's first argument. Calls without arguments yield nil.
func parseConsoleHistory(raw string) ([]*string, error) {
	var calls [][]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &calls); err != nil {
		return nil, err
	}

	out := make([]*string, len(calls))
	for i, args := range calls {
		if len(args) == 0 || string(args[0]) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(args[0], &s); err != nil {
			s = string(args[0])
		}
		out[i] = &s
	}
	return out, nil
}

// Tick sends the next history fetch once it is due.
func (r *RunLog) Tick() bool {
	if r.done {
		return false
	}
	if r.fetchPending {
		wait := r.fetchAt.Sub(r.Clock.Now())
		if wait <= 0 {
			r.fetchPending = false
			id, err := r.sender.Enqueue(evaluate(jsengine.LogFetchScript))
			if err != nil {
				logger.Error("run-log: %v", err)
				r.done = true
				return false
			}
			r.idFetch = id
		} else if wait > 10*time.Millisecond {
			r.Clock.Sleep(10 * time.Millisecond)
		} else {
			r.Clock.Sleep(wait)
		}
	}
	return true
}

func (r *RunLog) Finalize() {
	r.history = nil
}

// TapID taps the centre of the element with the given DOM id.
type TapID struct {
	ElementID string

	sender      Sender
	gotPosition bool
}

type elementRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (t *TapID) Init(s Sender) error {
	t.sender = s
	_, err := s.Enqueue(evaluate(jsengine.ElementRectScript(t.ElementID)))
	return err
}

func (t *TapID) OnReply(id int, frame []byte) {
	logger.Info("Received message with id %d: %s", id, frame)
	if t.gotPosition {
		return
	}

	value, ok := evaluateValue(frame)
	if !ok {
		logger.Error("Could not locate ID: '%s'", t.ElementID)
		return
	}

	var rect elementRect
	if err := json.Unmarshal([]byte(value), &rect); err != nil {
		logger.Error("Failed to parse response: %v", err)
		logger.Error("Could not locate ID: '%s'", t.ElementID)
		return
	}
	t.gotPosition = true

	x := int(rect.X + rect.Width/2)
	y := int(rect.Y + rect.Height/2)
	logger.Notice("Tapping '%s' at: (%d, %d)", t.ElementID, x, y)

	if err := enqueueAll(t.sender,
		msg.Request{Kind: msg.KindTouchStart, X: x, Y: y},
		msg.Request{Kind: msg.KindTouchEnd},
	); err != nil {
		logger.Error("tap-id: %v", err)
	}
}

func (t *TapID) OnEvent(string, []byte) {}

func (t *TapID) Tick() bool { return false }

func (t *TapID) Finalize() {}
