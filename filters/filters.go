// Package filters holds the reference leaf filters of the graph: file
// read and write, color transform, scale, rectangle fan-in and a scripted
// tone curve.
package filters

import (
	"errors"

	"github.com/wudi/colorkit/graph"
	"github.com/wudi/colorkit/option"
)

// Prefix is the registration root of every filter in this package.
const Prefix = "org/colorkit/filter"

func registration(nick string) string {
	return Prefix + option.Separator + nick
}

// All returns fresh descriptors of every filter.
func All() []*graph.Filter {
	return []*graph.Filter{
		Read(),
		Write(),
		ICC(),
		Scale(),
		Rectangles(),
		Curve(),
	}
}

// Register installs every filter into reg.
func Register(reg *graph.Registry) error {
	var errs []error
	for _, f := range All() {
		if err := reg.Register(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// bind is the Validate function shared by filters with an options struct.
func bind[T any]() func(*option.Set) error {
	return func(set *option.Set) error {
		var o T
		return graph.BindOptions(set, &o)
	}
}

// options binds the node options into a T.
func options[T any](n *graph.Node) (T, error) {
	var o T
	err := graph.BindOptions(n.Options(), &o)
	return o, err
}
