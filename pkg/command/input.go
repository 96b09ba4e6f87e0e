package command

import (
	"time"

	"github.com/devicelab-dev/cdt/pkg/logger"
	"github.com/devicelab-dev/cdt/pkg/msg"
)

// Tap touches and releases a point.
type Tap struct {
	Base
	X, Y int
}

func (t *Tap) Init(s Sender) error {
	return enqueueAll(s,
		msg.Request{Kind: msg.KindTouchStart, X: t.X, Y: t.Y},
		msg.Request{Kind: msg.KindTouchEnd},
	)
}

// Swipe synthesizes a scroll gesture starting at (X, Y).
type Swipe struct {
	Base
	X, Y      int
	XDistance int
	YDistance int
	Speed     int
}

func (w *Swipe) Init(s Sender) error {
	_, err := s.Enqueue(msg.Request{
		Kind:      msg.KindScrollGesture,
		X:         w.X,
		Y:         w.Y,
		XDistance: w.XDistance,
		YDistance: w.YDistance,
		Speed:     w.Speed,
	})
	return err
}

// Drag moves a touch point from start to end in equal steps spread over
// Duration, then lifts it.
type Drag struct {
	Base
	X0, Y0   int
	X1, Y1   int
	Steps    int
	Duration time.Duration
	Clock    Clock

	sender Sender
	start  time.Time
	step   int
}

func (d *Drag) lerp(a, b int) int {
	return a + (b-a)*d.step/d.Steps
}

func (d *Drag) Init(s Sender) error {
	if d.Steps <= 0 {
		d.Steps = 1
	}
	if d.Clock == nil {
		d.Clock = SystemClock
	}
	d.sender = s
	d.start = d.Clock.Now()
	d.step = 0

	_, err := s.Enqueue(msg.Request{
		Kind: msg.KindTouchStart,
		X:    d.lerp(d.X0, d.X1),
		Y:    d.lerp(d.Y0, d.Y1),
	})
	return err
}

// Tick sends the next move once its time slot has come and lifts the touch
// after the last one. Before that it sleeps at most 10ms.
func (d *Drag) Tick() bool {
	due := d.Duration * time.Duration(d.step+1) / time.Duration(d.Steps)
	if due > d.Duration {
		due = d.Duration
	}

	elapsed := d.Clock.Now().Sub(d.start)
	if elapsed < due {
		wait := due - elapsed
		if wait > 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		d.Clock.Sleep(wait)
		return d.step <= d.Steps
	}

	d.step++
	if d.step <= d.Steps {
		d.send(msg.Request{
			Kind: msg.KindTouchMove,
			X:    d.lerp(d.X0, d.X1),
			Y:    d.lerp(d.Y0, d.Y1),
		})
	}
	if d.step == d.Steps {
		d.send(msg.Request{Kind: msg.KindTouchEnd})
	}
	return d.step <= d.Steps
}

func (d *Drag) send(req msg.Request) {
	if _, err := d.sender.Enqueue(req); err != nil {
		logger.Error("drag: %v", err)
	}
}
