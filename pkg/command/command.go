// Package command implements the cdt commands. Each command is a small
// state machine driven by the session's event loop: it queues requests in
// Init, reacts to replies and events, and does periodic work in Tick.
package command

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/devicelab-dev/cdt/pkg/config"
	"github.com/devicelab-dev/cdt/pkg/logger"
	"github.com/devicelab-dev/cdt/pkg/msg"
	"github.com/devicelab-dev/cdt/pkg/report"
)

// Sender queues an outbound request and returns its id.
type Sender interface {
	Enqueue(req msg.Request) (int, error)
}

// Command is one cdt command.
//
// Frames passed to OnReply and OnEvent alias the session's frame buffer and
// must be copied if kept. Callbacks must not block; Tick may sleep briefly.
type Command interface {
	// Init queues the command's opening requests. s stays valid until
	// Finalize.
	Init(s Sender) error

	// OnReply is called for every frame carrying an id, correlated or not.
	OnReply(id int, frame []byte)

	// OnEvent is called for every frame carrying a method.
	OnEvent(method string, frame []byte)

	// Tick does periodic work and reports whether the command wants the
	// loop to keep running. It is not called while requests are waiting to
	// be sent.
	Tick() bool

	// Finalize releases the command's resources. It runs once.
	Finalize()
}

// Base provides the default callbacks: replies are logged, events ignored,
// and the command is done once its requests are answered.
type Base struct{}

func (Base) OnReply(id int, frame []byte) {
	logger.Notice("Received message with id %d: %s", id, frame)
}

func (Base) OnEvent(string, []byte) {}

func (Base) Tick() bool { return false }

func (Base) Finalize() {}

// ArtifactRecorder is told about every file a command writes.
type ArtifactRecorder interface {
	AddArtifact(a report.Artifact)
}

// Clock abstracts time for commands that pace their requests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock is the wall clock.
var SystemClock Clock = realClock{}

// Env is what a command is built from besides its own flags.
type Env struct {
	Config *config.Config

	// Path is the resolved DevTools target path.
	Path string

	// Args are the positional arguments after DISPLAY.
	Args []string

	Stdout    io.Writer
	Stdin     io.Reader
	Clock     Clock
	Artifacts ArtifactRecorder
}

func (e *Env) clock() Clock {
	if e.Clock == nil {
		return SystemClock
	}
	return e.Clock
}

func (e *Env) stdout() io.Writer {
	if e.Stdout == nil {
		return os.Stdout
	}
	return e.Stdout
}

func enqueueAll(s Sender, reqs ...msg.Request) error {
	for _, req := range reqs {
		if _, err := s.Enqueue(req); err != nil {
			return err
		}
	}
	return nil
}

// State is a Machine's lifecycle position.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

var ErrAlreadyStarted = errors.New("command: already initialized")

// Machine guards a Command's lifecycle. Callbacks reach the command only
// while it is active, and Finalize reaches it at most once.
type Machine struct {
	cmd   Command
	state State
}

// NewMachine wraps cmd.
func NewMachine(cmd Command) *Machine {
	return &Machine{cmd: cmd}
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	return m.state
}

// Init initializes the command. On failure the machine stays
// uninitialized and the command is never finalized.
func (m *Machine) Init(s Sender) error {
	if m.state != StateUninitialized {
		return ErrAlreadyStarted
	}
	if err := m.cmd.Init(s); err != nil {
		return err
	}
	m.state = StateActive
	return nil
}

// OnReply forwards a reply to an active command.
func (m *Machine) OnReply(id int, frame []byte) {
	if m.state == StateActive {
		m.cmd.OnReply(id, frame)
	}
}

// OnEvent forwards an event to an active command.
func (m *Machine) OnEvent(method string, frame []byte) {
	if m.state == StateActive {
		m.cmd.OnEvent(method, frame)
	}
}

// Tick ticks an active command. Inactive machines report false.
func (m *Machine) Tick() bool {
	if m.state != StateActive {
		return false
	}
	return m.cmd.Tick()
}

// Finalize finalizes an active command and drops it. Later calls are no-ops.
func (m *Machine) Finalize() {
	if m.state == StateFinalized {
		return
	}
	if m.state == StateActive {
		m.cmd.Finalize()
	}
	m.state = StateFinalized
	m.cmd = nil
}
