package command

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/devicelab-dev/cdt/pkg/logger"
	"github.com/devicelab-dev/cdt/pkg/msg"
)

// fpScale is the fixed-point unit for viewer-to-device scaling.
const fpScale = 1 << 10

// motionRateLimit is how many drag moves are folded into one touchMove.
const motionRateLimit = 4

// InputKind classifies viewer input.
type InputKind int

const (
	InputDown InputKind = iota
	InputMove
	InputUp
	InputResize
	InputQuit
)

// InputEvent is pointer or window input in viewer coordinates. For
// InputResize, X and Y carry the new width and height.
type InputEvent struct {
	Kind InputKind
	X, Y int
}

// Viewer is the interactive surface the sdl command mirrors the page onto.
type Viewer interface {
	// PollInput returns the input gathered since the last call without
	// blocking.
	PollInput() []InputEvent

	// ShowFrame displays an encoded frame of the given pixel size.
	ShowFrame(img []byte, width, height int) error

	Close() error
}

type rect struct {
	X, Y, W, H int
}

// Sdl mirrors the page into a Viewer and forwards pointer input back as
// touch events, scaled from the on-screen frame to device pixels.
type Sdl struct {
	Viewer  Viewer
	WindowW int
	WindowH int

	sender Sender

	frameW, frameH int
	frameRect      rect
	deviceW        int
	deviceH        int
	deviceScale    int

	mouse struct {
		pressed bool
		xSent   int
		ySent   int
		xLast   int
		yLast   int
		count   int
	}
}

var sdlFrameSpecs = []msg.Spec{
	{Key: "deviceWidth", Depth: 3, Type: msg.TypeInteger},
	{Key: "deviceHeight", Depth: 3, Type: msg.TypeInteger},
	{Key: "timestamp", Depth: 3, Type: msg.TypeFloat},
	{Key: "sessionId", Depth: 2, Type: msg.TypeInteger},
	{Key: "data", Depth: 2, Type: msg.TypeString},
}

func (c *Sdl) Init(s Sender) error {
	if c.Viewer == nil {
		return errNoViewer
	}
	if c.WindowW <= 0 || c.WindowH <= 0 {
		c.WindowW, c.WindowH = 800, 600
	}
	c.sender = s
	_, err := s.Enqueue(msg.Request{
		Kind:      msg.KindStartScreencast,
		Format:    "jpeg",
		MaxWidth:  512,
		MaxHeight: 512,
	})
	return err
}

func (c *Sdl) OnReply(int, []byte) {}

func (c *Sdl) OnEvent(method string, frame []byte) {
	if method != screencastFrameMethod {
		return
	}

	var found msg.Found
	var sessionID int
	var data []byte
	_ = msg.Extract(frame, sdlFrameSpecs, func(i int, spec msg.Spec, v msg.Value) bool {
		found.Set(i)
		switch spec.Key {
		case "deviceWidth":
			c.deviceW = int(v.Int)
		case "deviceHeight":
			c.deviceH = int(v.Int)
		case "sessionId":
			sessionID = int(v.Int)
		case "data":
			data = v.Str
		}
		return false
	})
	if !found.All(len(sdlFrameSpecs)) {
		logger.Error("sdl: Message missing components: %s", method)
		return
	}

	c.send(msg.Request{Kind: msg.KindScreencastFrameAck, SessionID: sessionID})

	img, err := decodeImage(data)
	if err != nil {
		logger.Error("sdl: %v", err)
		return
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		logger.Error("sdl: undecodable frame: %v", err)
		return
	}
	if err := c.Viewer.ShowFrame(img, cfg.Width, cfg.Height); err != nil {
		logger.Error("sdl: %v", err)
		return
	}
	c.frameW, c.frameH = cfg.Width, cfg.Height
	c.updateFrameRect()
}

// updateFrameRect fits the frame inside the window, centred, and derives
// the viewer-to-device scale.
func (c *Sdl) updateFrameRect() {
	if c.frameW <= 0 || c.frameH <= 0 {
		return
	}
	scaleX := c.WindowW * fpScale / c.frameW
	scaleY := c.WindowH * fpScale / c.frameH
	scale := scaleX
	if scaleY < scale {
		scale = scaleY
	}
	scaledW := c.frameW * scale / fpScale
	scaledH := c.frameH * scale / fpScale

	c.frameRect = rect{
		X: (c.WindowW - scaledW) / 2,
		Y: (c.WindowH - scaledH) / 2,
		W: scaledW,
		H: scaledH,
	}
	if scaledW > 0 {
		c.deviceScale = c.deviceW * fpScale / scaledW
	}
}

func (c *Sdl) resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	c.WindowW, c.WindowH = w, h
	c.updateFrameRect()
}

func (c *Sdl) toDevice(x, y int) (int, int) {
	return (x - c.frameRect.X) * c.deviceScale / fpScale,
		(y - c.frameRect.Y) * c.deviceScale / fpScale
}

// tap sends a touchStart for a new press, or a rate-limited touchMove while
// pressed.
func (c *Sdl) tap(x, y int) {
	m := &c.mouse
	if m.pressed {
		if m.xSent == x && m.ySent == y {
			return
		}
		if m.count < motionRateLimit {
			m.count++
			m.xLast, m.yLast = x, y
			return
		}
		m.count = 0
	} else {
		dx, dy := c.toDevice(x, y)
		logger.Notice("Pressed at (%d, %d)", dx, dy)
	}

	kind := msg.KindTouchStart
	if m.pressed {
		kind = msg.KindTouchMove
	}
	dx, dy := c.toDevice(x, y)
	c.send(msg.Request{Kind: kind, X: dx, Y: dy})
	m.xSent, m.ySent = x, y
}

// flushMotion sends the last held-back move.
func (c *Sdl) flushMotion() {
	m := &c.mouse
	if m.pressed && m.count > 0 && (m.xSent != m.xLast || m.ySent != m.yLast) {
		m.count = motionRateLimit
		c.tap(m.xLast, m.yLast)
	}
}

func (c *Sdl) handleInput(events []InputEvent) bool {
	for _, ev := range events {
		switch ev.Kind {
		case InputQuit:
			return false
		case InputResize:
			c.resize(ev.X, ev.Y)
		case InputDown:
			c.tap(ev.X, ev.Y)
			c.mouse.pressed = true
		case InputMove:
			if c.mouse.pressed {
				c.tap(ev.X, ev.Y)
			}
		case InputUp:
			c.tap(ev.X, ev.Y)
			c.flushMotion()
			c.mouse.pressed = false
			c.mouse.count = 0
			c.send(msg.Request{Kind: msg.KindTouchEnd})
		}
	}
	c.flushMotion()
	return true
}

func (c *Sdl) Tick() bool {
	if c.Viewer == nil {
		return false
	}
	return c.handleInput(c.Viewer.PollInput())
}

func (c *Sdl) Finalize() {
	if c.Viewer != nil {
		if err := c.Viewer.Close(); err != nil {
			logger.Warn("sdl: closing viewer: %v", err)
		}
		c.Viewer = nil
	}
}

func (c *Sdl) send(req msg.Request) {
	if _, err := c.sender.Enqueue(req); err != nil {
		logger.Error("sdl: %v", err)
	}
}
