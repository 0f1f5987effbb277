package graph

import (
	"image"

	"github.com/google/uuid"

	"github.com/wudi/colorkit/object"
)

// Ticket is one pull request for a region. Region is in output image
// coordinates and Array receives the pixels.
type Ticket struct {
	object.Base

	UUID   uuid.UUID
	Parent uuid.UUID
	Output *Image
	Region image.Rectangle
	Array  *PixelArray

	metrics *Metrics
	depth   int
}

// NewTicket requests region of out, with an array in out's layout.
func NewTicket(env *object.Env, out *Image, region image.Rectangle) *Ticket {
	var l Layout
	if out != nil {
		out.Retain()
		l = out.Layout()
	}
	return newTicket(env, out, region, l)
}

func newTicket(env *object.Env, out *Image, region image.Rectangle, l Layout) *Ticket {
	t := &Ticket{
		UUID:   uuid.New(),
		Output: out,
		Region: region,
		Array:  NewPixelArray(region, l),
	}
	t.Init(object.KindTicket, env)
	t.OnRelease(func() {
		if t.Output != nil {
			t.Output.Release()
			t.Output = nil
		}
	})
	return t
}

// Sub returns a ticket for region with its own array in layout l. It
// shares the output image and the metrics of t.
func (t *Ticket) Sub(region image.Rectangle, l Layout) *Ticket {
	if t.Output != nil {
		t.Output.Retain()
	}
	s := newTicket(t.Env(), t.Output, region, l)
	s.Parent = t.UUID
	s.metrics = t.metrics
	s.depth = t.depth + 1
	return s
}

// Depth is the number of Sub calls between t and the root ticket.
func (t *Ticket) Depth() int { return t.depth }
