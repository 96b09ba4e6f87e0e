package command

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/cdt/pkg/jsengine"
	"github.com/devicelab-dev/cdt/pkg/jsengine/jsenginetest"
	"github.com/devicelab-dev/cdt/pkg/msg"
)

func TestRun(t *testing.T) {
	s := &recordingSender{}
	cmd := &Run{Expression: `document.title = \"x\"`}
	require.NoError(t, cmd.Init(s))

	require.Len(t, s.reqs, 1)
	assert.Equal(t, msg.KindEvaluate, s.reqs[0].Kind)
	assert.Equal(t, `document.title = \"x\"`, s.reqs[0].Expression)
	assert.False(t, cmd.Tick())
}

func newRunLog(t *testing.T, marker string) (*RunLog, *recordingSender, *fakeClock, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	s := &recordingSender{}
	clock := newFakeClock()
	r := &RunLog{Expression: "go()", EndMarker: marker, Out: &out, Clock: clock}
	require.NoError(t, r.Init(s))
	return r, s, clock, &out
}

func TestRunLogInit(t *testing.T) {
	_, s, _, _ := newRunLog(t, "")

	require.Len(t, s.reqs, 3)
	assert.Equal(t, jsengine.Escape(jsengine.LogCaptureScript), s.reqs[0].Expression)
	assert.Equal(t, "go()", s.reqs[1].Expression)
	assert.Equal(t, jsengine.Escape(jsengine.LogFetchScript), s.reqs[2].Expression)
}

func TestRunLogStreamsUntilEndMarker(t *testing.T) {
	r, s, clock, out := newRunLog(t, "END")

	// Replies to capture and the expression are only logged.
	r.OnReply(0, evalReply(0, "undefined"))
	r.OnReply(1, evalReply(1, "42"))
	assert.Empty(t, out.String())

	r.OnReply(2, evalReply(2, `[["hello"],["world",1]]`))
	assert.Equal(t, "hello\nworld\n", out.String())

	// The next fetch waits a full interval.
	assert.True(t, r.Tick())
	assert.Len(t, s.reqs, 3)
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, clock.sleeps)

	clock.advance(RunLogFetchInterval)
	assert.True(t, r.Tick())
	require.Len(t, s.reqs, 4)
	assert.Equal(t, jsengine.Escape(jsengine.LogFetchScript), s.reqs[3].Expression)

	r.OnReply(3, evalReply(3, `[["hello"],["world",1],["all END"]]`))
	assert.Equal(t, "hello\nworld\nall END\n", out.String())

	require.Len(t, s.reqs, 5)
	assert.Equal(t, jsengine.Escape(jsengine.LogResetScript), s.reqs[4].Expression)
	assert.True(t, r.Tick(), "still waiting for the reset reply")

	r.OnReply(4, evalReply(4, "undefined"))
	assert.False(t, r.Tick())
}

func TestRunLogWithoutMarkerKeepsPolling(t *testing.T) {
	r, s, clock, out := newRunLog(t, "")

	r.OnReply(2, evalReply(2, `[["END"]]`))
	assert.Equal(t, "END\n", out.String())

	clock.advance(RunLogFetchInterval)
	assert.True(t, r.Tick())
	require.Len(t, s.reqs, 4)
	assert.Equal(t, jsengine.Escape(jsengine.LogFetchScript), s.reqs[3].Expression)
}

func TestRunLogMissingValueKeepsPolling(t *testing.T) {
	r, s, clock, _ := newRunLog(t, "END")

	r.OnReply(2, []byte(`{"id":2,"result":{"result":{"type":"undefined"}}}`))
	clock.advance(RunLogFetchInterval)
	assert.True(t, r.Tick())
	assert.Len(t, s.reqs, 4)
}

func TestRunLogTamper(t *testing.T) {
	tests := []struct {
		name   string
		second string
	}{
		{name: "shrunk", second: `[["a"]]`},
		{name: "rewritten", second: `[["a"],["x"],["c"]]`},
		{name: "unparsable", second: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, s, clock, out := newRunLog(t, "END")

			r.OnReply(2, evalReply(2, `[["a"],["b"]]`))
			clock.advance(RunLogFetchInterval)
			require.True(t, r.Tick())

			r.OnReply(3, evalReply(3, tt.second))
			assert.Equal(t, "a\nb\n", out.String(), "nothing new is printed")
			require.Len(t, s.reqs, 5)
			assert.Equal(t, jsengine.Escape(jsengine.LogResetScript), s.reqs[4].Expression)

			r.OnReply(4, evalReply(4, "undefined"))
			assert.False(t, r.Tick())
		})
	}
}

func TestParseConsoleHistory(t *testing.T) {
	entries, err := parseConsoleHistory(`[["first","ignored"],[],[7,"x"],[null],[{"k":1}]]`)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	assert.Equal(t, "first", *entries[0])
	assert.Nil(t, entries[1])
	assert.Equal(t, "7", *entries[2])
	assert.Nil(t, entries[3])
	assert.Equal(t, `{"k":1}`, *entries[4])

	_, err = parseConsoleHistory(`{"not":"an array"}`)
	assert.Error(t, err)
}

// The page scripts run unchanged in goja, so the history format parsed above
// is the one LogFetchScript produces.
func TestRunLogScriptsInEngine(t *testing.T) {
	e := jsenginetest.New()

	_, err := e.Eval(jsengine.LogCaptureScript)
	require.NoError(t, err)
	_, err = e.Eval(`console.log("one", 1); console.log(2); console.log()`)
	require.NoError(t, err)

	raw, err := e.EvalString(jsengine.LogFetchScript)
	require.NoError(t, err)

	entries, err := parseConsoleHistory(raw)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "one", *entries[0])
	assert.Equal(t, "2", *entries[1])
	assert.Nil(t, entries[2])

	// The original console still saw every call.
	assert.Len(t, e.ConsoleCalls(), 3)

	_, err = e.Eval(jsengine.LogResetScript)
	require.NoError(t, err)
	v, err := e.EvalString(`String(console.logs)`)
	require.NoError(t, err)
	assert.Equal(t, "undefined", v)
}

func TestTapID(t *testing.T) {
	s := &recordingSender{}
	cmd := &TapID{ElementID: "submit"}
	require.NoError(t, cmd.Init(s))

	require.Len(t, s.reqs, 1)
	assert.Equal(t, msg.KindEvaluate, s.reqs[0].Kind)
	assert.True(t, strings.Contains(s.reqs[0].Expression, `getElementById('submit')`))

	cmd.OnReply(0, evalReply(0, `{"x":10,"y":20,"width":30,"height":41,"top":20,"left":10}`))
	require.Len(t, s.reqs, 3)
	assert.Equal(t, msg.Request{Kind: msg.KindTouchStart, X: 25, Y: 40}, s.reqs[1])
	assert.Equal(t, msg.KindTouchEnd, s.reqs[2].Kind)

	// Replies to the taps do not tap again.
	cmd.OnReply(1, []byte(`{"id":1,"result":{}}`))
	cmd.OnReply(2, evalReply(2, `{"x":0,"y":0,"width":2,"height":2}`))
	assert.Len(t, s.reqs, 3)
	assert.False(t, cmd.Tick())
}

func TestTapIDMissingElement(t *testing.T) {
	s := &recordingSender{}
	cmd := &TapID{ElementID: "nope"}
	require.NoError(t, cmd.Init(s))

	// getElementById returned null, so the page threw.
	cmd.OnReply(0, []byte(`{"id":0,"result":{"result":{"type":"object","subtype":"error"},"exceptionDetails":{}}}`))
	cmd.OnReply(0, evalReply(0, "not a rect"))
	assert.Len(t, s.reqs, 1)
}
