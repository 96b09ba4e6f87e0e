package command

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/devicelab-dev/cdt/pkg/logger"
)

var errNoViewer = errors.New("sdl: no viewer")

// FileViewer is a headless Viewer. It keeps the latest frame in a file and
// reads pointer input as text lines:
//
//	down X Y | move X Y | up X Y | resize W H | quit
type FileViewer struct {
	path string

	input chan InputEvent
	done  chan struct{}
	once  sync.Once

	frames int
}

// NewFileViewer writes frames to path and reads input lines from in. in may
// be nil for a view-only session.
func NewFileViewer(path string, in io.Reader) *FileViewer {
	v := &FileViewer{
		path:  path,
		input: make(chan InputEvent, 256),
		done:  make(chan struct{}),
	}
	if in != nil {
		go v.readInput(in)
	}
	return v
}

func (v *FileViewer) readInput(in io.Reader) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ev, err := ParseInput(line)
		if err != nil {
			logger.Warn("sdl: %v", err)
			continue
		}
		select {
		case v.input <- ev:
		case <-v.done:
			return
		}
	}
}

// ParseInput parses one input line.
func ParseInput(line string) (InputEvent, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return InputEvent{}, errors.New("empty input line")
	}

	kinds := map[string]InputKind{
		"down":   InputDown,
		"move":   InputMove,
		"up":     InputUp,
		"resize": InputResize,
		"quit":   InputQuit,
	}
	kind, ok := kinds[strings.ToLower(fields[0])]
	if !ok {
		return InputEvent{}, fmt.Errorf("unknown input %q", fields[0])
	}
	if kind == InputQuit {
		return InputEvent{Kind: kind}, nil
	}
	if len(fields) != 3 {
		return InputEvent{}, fmt.Errorf("%s needs two integers", fields[0])
	}
	x, err := strconv.Atoi(fields[1])
	if err != nil {
		return InputEvent{}, fmt.Errorf("%s: bad x %q", fields[0], fields[1])
	}
	y, err := strconv.Atoi(fields[2])
	if err != nil {
		return InputEvent{}, fmt.Errorf("%s: bad y %q", fields[0], fields[2])
	}
	return InputEvent{Kind: kind, X: x, Y: y}, nil
}

// PollInput implements Viewer.
func (v *FileViewer) PollInput() []InputEvent {
	var out []InputEvent
	for {
		select {
		case ev := <-v.input:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// ShowFrame replaces the frame file atomically.
func (v *FileViewer) ShowFrame(img []byte, width, height int) error {
	dir := filepath.Dir(v.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".frame-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), v.path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	v.frames++
	logger.Debug("sdl: frame %d (%dx%d) -> %s", v.frames, width, height, v.path)
	return nil
}

// Close stops the input reader. The reader goroutine exits once its next
// line arrives or its input ends.
func (v *FileViewer) Close() error {
	v.once.Do(func() { close(v.done) })
	return nil
}
