// Package recovery decides what the conversion driver does when a node
// fails to produce its region.
package recovery

import (
	"context"
	"fmt"
	"image"
)

type Strategy interface {
	OnError(ctx context.Context, err error, location Location) Action
}

// Location identifies the failing pull.
type Location struct {
	NodeID       int64
	Registration string
	Region       image.Rectangle
	Attempt      int
}

func (l Location) String() string {
	return fmt.Sprintf("%s#%d %v attempt %d", l.Registration, l.NodeID, l.Region, l.Attempt)
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionWarn
)

func (a Action) String() string {
	switch a {
	case ActionFail:
		return "fail"
	case ActionSkip:
		return "skip"
	case ActionWarn:
		return "warn"
	}
	return fmt.Sprintf("action(%d)", int(a))
}
