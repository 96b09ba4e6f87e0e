package command

import (
	"fmt"
	"time"

	"github.com/devicelab-dev/cdt/pkg/logger"
	"github.com/devicelab-dev/cdt/pkg/msg"
	"github.com/devicelab-dev/cdt/pkg/report"
)

// Screenshot captures the page once and writes screenshot-<leaf>.<format>.
type Screenshot struct {
	Format    string
	Leaf      string
	OutputDir string
	Artifacts ArtifactRecorder

	finished bool
	saved    string
}

var screenshotDataSpec = []msg.Spec{{Key: "data", Depth: 2, Type: msg.TypeString}}

func (c *Screenshot) Init(s Sender) error {
	c.finished = false
	_, err := s.Enqueue(msg.Request{Kind: msg.KindCaptureScreenshot, Format: c.Format})
	return err
}

func (c *Screenshot) OnReply(id int, frame []byte) {
	defer func() { c.finished = true }()

	var data []byte
	found := false
	_ = msg.Extract(frame, screenshotDataSpec, func(_ int, _ msg.Spec, v msg.Value) bool {
		data, found = v.Str, true
		return true
	})
	if !found {
		logger.Error("screenshot: Data not found: %s", frame)
		return
	}
	if len(data) == 0 {
		logger.Error("screenshot: Zero length screenshot: %s", frame)
		return
	}

	img, err := decodeImage(data)
	if err != nil {
		logger.Error("screenshot: %v", err)
		return
	}

	name := fmt.Sprintf("screenshot-%s.%s", c.Leaf, c.Format)
	path, err := saveImage(c.Artifacts, report.ArtifactScreenshot, c.OutputDir, name, c.Format, img)
	if err != nil {
		logger.Error("screenshot: %v", err)
		return
	}
	c.saved = path
	logger.Notice("Saved %s (%d bytes)", path, len(img))
}

func (c *Screenshot) OnEvent(string, []byte) {}

func (c *Screenshot) Tick() bool { return !c.finished }

func (c *Screenshot) Finalize() {}

// Saved returns the path written, if any.
func (c *Screenshot) Saved() string { return c.saved }

const screencastFrameMethod = "Page.screencastFrame"

var screencastFrameSpecs = []msg.Spec{
	{Key: "timestamp", Depth: 3, Type: msg.TypeFloat},
	{Key: "sessionId", Depth: 2, Type: msg.TypeInteger},
	{Key: "data", Depth: 2, Type: msg.TypeString},
}

type screencastFrame struct {
	timestamp float64
	sessionID int
	data      []byte
}

// scanScreencastFrame extracts the fields every frame must carry.
func scanScreencastFrame(frame []byte) (screencastFrame, bool) {
	var out screencastFrame
	var found msg.Found
	_ = msg.Extract(frame, screencastFrameSpecs, func(i int, spec msg.Spec, v msg.Value) bool {
		found.Set(i)
		switch spec.Key {
		case "timestamp":
			out.timestamp = v.Float
		case "sessionId":
			out.sessionID = int(v.Int)
		case "data":
			out.data = v.Str
		}
		return false
	})
	return out, found.All(len(screencastFrameSpecs))
}

// Screencast acknowledges every frame the page pushes and writes each one
// to screenshot-<leaf>-<timestamp>.<format>. It runs until interrupted.
type Screencast struct {
	Format    string
	MaxSize   int
	Leaf      string
	OutputDir string
	Clock     Clock
	Artifacts ArtifactRecorder

	sender Sender
	frames int
}

func (c *Screencast) Init(s Sender) error {
	if c.Clock == nil {
		c.Clock = SystemClock
	}
	c.sender = s
	_, err := s.Enqueue(msg.Request{
		Kind:      msg.KindStartScreencast,
		Format:    c.Format,
		MaxWidth:  c.MaxSize,
		MaxHeight: c.MaxSize,
	})
	return err
}

func (c *Screencast) OnReply(id int, frame []byte) {
	logger.Notice("Received response with id %d: %s", id, frame)
}

func (c *Screencast) OnEvent(method string, frame []byte) {
	logger.Notice("Received event with method: %s", method)
	if method != screencastFrameMethod {
		return
	}

	f, ok := scanScreencastFrame(frame)
	if !ok {
		logger.Error("screencast: Message missing components: %s", method)
		return
	}

	if _, err := c.sender.Enqueue(msg.Request{Kind: msg.KindScreencastFrameAck, SessionID: f.sessionID}); err != nil {
		logger.Error("screencast: %v", err)
	}

	img, err := decodeImage(f.data)
	if err != nil {
		logger.Error("screencast: %v", err)
		return
	}

	name := fmt.Sprintf("screenshot-%s-%.6f.%s", c.Leaf, f.timestamp, c.Format)
	if _, err := saveImage(c.Artifacts, report.ArtifactScreencast, c.OutputDir, name, c.Format, img); err != nil {
		logger.Error("screencast: %v", err)
		return
	}
	c.frames++
}

func (c *Screencast) Tick() bool {
	c.Clock.Sleep(10 * time.Millisecond)
	return true
}

func (c *Screencast) Finalize() {
	logger.Notice("Screencast wrote %d frames", c.frames)
}
