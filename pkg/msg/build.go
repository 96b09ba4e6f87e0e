package msg

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned by Build for a Kind with no template.
var ErrUnknownKind = errors.New("msg: unknown request kind")

// Kind identifies an outbound request template.
type Kind int

const (
	// KindEvaluate is Runtime.evaluate.
	KindEvaluate Kind = iota + 1
	// KindTouchStart is Input.dispatchTouchEvent with type touchStart.
	KindTouchStart
	// KindTouchMove is Input.dispatchTouchEvent with type touchMove.
	KindTouchMove
	// KindTouchEnd is Input.dispatchTouchEvent with type touchEnd.
	KindTouchEnd
	// KindScrollGesture is Input.synthesizeScrollGesture.
	KindScrollGesture
	// KindStartScreencast is Page.startScreencast.
	KindStartScreencast
	// KindScreencastFrameAck is Page.screencastFrameAck.
	KindScreencastFrameAck
	// KindCaptureScreenshot is Page.captureScreenshot.
	KindCaptureScreenshot
)

var kindNames = map[Kind]string{
	KindEvaluate:           "evaluate",
	KindTouchStart:         "touch-start",
	KindTouchMove:          "touch-move",
	KindTouchEnd:           "touch-end",
	KindScrollGesture:      "scroll-gesture",
	KindStartScreencast:    "start-screencast",
	KindScreencastFrameAck: "screencast-frame-ack",
	KindCaptureScreenshot:  "capture-screenshot",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Request is an outbound command before it has an id. Only the fields used
// by Kind's template are read.
type Request struct {
	Kind Kind

	// Expression is JSON-escaped JavaScript (KindEvaluate).
	Expression string

	// X, Y locate touch points and the scroll gesture origin.
	X int
	Y int

	// Scroll gesture.
	Speed     int
	XDistance int
	YDistance int

	// Format is the image format for screenshots and screencasts.
	Format string

	// MaxWidth and MaxHeight bound screencast frames; zero in either leaves
	// the resolution unconstrained.
	MaxWidth  int
	MaxHeight int

	// SessionID is the screencast frame being acknowledged.
	SessionID int
}

// Record is a rendered request: the wire payload plus correlation metadata.
type Record struct {
	ID      int
	Kind    Kind
	Payload string

	queue *Queue
}

// Len returns the payload length in bytes.
func (r *Record) Len() int {
	return len(r.Payload)
}

type renderFunc func(req Request, id int) string

var templates = map[Kind]renderFunc{
	KindEvaluate:           renderEvaluate,
	KindTouchStart:         renderTouch,
	KindTouchMove:          renderTouch,
	KindTouchEnd:           renderTouch,
	KindScrollGesture:      renderScrollGesture,
	KindStartScreencast:    renderStartScreencast,
	KindScreencastFrameAck: renderScreencastFrameAck,
	KindCaptureScreenshot:  renderCaptureScreenshot,
}

// Build renders req with the given id.
func Build(req Request, id int) (*Record, error) {
	render, ok := templates[req.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(req.Kind))
	}
	return &Record{
		ID:      id,
		Kind:    req.Kind,
		Payload: render(req, id),
	}, nil
}

const (
	fmtEvaluate = `{"id":%d,"method":"Runtime.evaluate","params":{"expression":"%s"}}`

	fmtTouchStart = `{"id":%d,"method":"Input.dispatchTouchEvent","params":{"type":"touchStart","touchPoints":[{"x":%d,"y":%d}]}}`
	fmtTouchMove  = `{"id":%d,"method":"Input.dispatchTouchEvent","params":{"type":"touchMove","touchPoints":[{"x":%d,"y":%d}]}}`
	fmtTouchEnd   = `{"id":%d,"method":"Input.dispatchTouchEvent","params":{"type":"touchEnd","touchPoints":[]}}`

	fmtScrollGesture = `{"id":%d,"method":"Input.synthesizeScrollGesture","params":{"x":%d,"y":%d,"speed":%d,"xDistance":%d,"yDistance":%d,"preventFling":false}}`

	fmtStartScreencast        = `{"id":%d,"method":"Page.startScreencast","params":{"format":"%s","everyNthFrame":1}}`
	fmtStartScreencastBounded = `{"id":%d,"method":"Page.startScreencast","params":{"format":"%s","maxWidth":%d,"maxHeight":%d,"everyNthFrame":1}}`

	fmtScreencastFrameAck = `{"id":%d,"method":"Page.screencastFrameAck","params":{"sessionId":%d}}`

	fmtCaptureScreenshot = `{"id":%d,"method":"Page.captureScreenshot","params":{"format":"%s"}}`
)

func renderEvaluate(req Request, id int) string {
	return fmt.Sprintf(fmtEvaluate, id, req.Expression)
}

func renderTouch(req Request, id int) string {
	switch req.Kind {
	case KindTouchStart:
		return fmt.Sprintf(fmtTouchStart, id, req.X, req.Y)
	case KindTouchMove:
		return fmt.Sprintf(fmtTouchMove, id, req.X, req.Y)
	default:
		return fmt.Sprintf(fmtTouchEnd, id)
	}
}

func renderScrollGesture(req Request, id int) string {
	return fmt.Sprintf(fmtScrollGesture, id, req.X, req.Y, req.Speed, req.XDistance, req.YDistance)
}

func renderStartScreencast(req Request, id int) string {
	format := req.Format
	if format == "" {
		format = "jpeg"
	}
	if req.MaxWidth == 0 || req.MaxHeight == 0 {
		return fmt.Sprintf(fmtStartScreencast, id, format)
	}
	return fmt.Sprintf(fmtStartScreencastBounded, id, format, req.MaxWidth, req.MaxHeight)
}

func renderScreencastFrameAck(req Request, id int) string {
	return fmt.Sprintf(fmtScreencastFrameAck, id, req.SessionID)
}

func renderCaptureScreenshot(req Request, id int) string {
	format := req.Format
	if format == "" {
		format = "png"
	}
	return fmt.Sprintf(fmtCaptureScreenshot, id, format)
}

// IDSequence hands out request ids. Ids are 16 bits wide and wrap; uniqueness
// across a wrap is not enforced.
type IDSequence struct {
	next uint16
}

// Next returns the next id.
func (s *IDSequence) Next() int {
	id := s.next
	s.next++
	return int(id)
}

// Peek returns the id the next call to Next will return.
func (s *IDSequence) Peek() int {
	return int(s.next)
}
