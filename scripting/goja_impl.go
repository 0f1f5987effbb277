package scripting

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dop251/goja"
)

// ErrBadCurve is returned when an expression does not yield a number.
var ErrBadCurve = errors.New("scripting: expression is not a number")

type GojaEngine struct {
	vm *goja.Runtime
}

func NewEngine() *GojaEngine {
	vm := goja.New()
	return &GojaEngine{vm: vm}
}

// guard interrupts the VM when ctx ends and returns the cleanup func.
func (e *GojaEngine) guard(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return func() {
		close(done)
		e.vm.ClearInterrupt()
	}
}

func interrupted(err error) error {
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		if cause := ie.Unwrap(); cause != nil {
			return cause
		}
		return context.Canceled
	}
	return err
}

func (e *GojaEngine) Execute(ctx context.Context, script string) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer e.guard(ctx)()

	val, err := e.vm.RunString(script)
	if err != nil {
		return nil, interrupted(err)
	}
	return val.Export(), nil
}

func (e *GojaEngine) RegisterOptions(opts OptionReader) error {
	return e.vm.Set("option", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		path := call.Arguments[0].String()
		if d, err := opts.FindDouble(path, 0); err == nil {
			return e.vm.ToValue(d)
		}
		if s, err := opts.FindString(path, 0); err == nil {
			return e.vm.ToValue(s)
		}
		return goja.Null()
	})
}

// Curve compiles expr as the body of function(v) and samples it at size
// evenly spaced points. Results are clamped to [0,1].
func (e *GojaEngine) Curve(ctx context.Context, expr string, size int) ([]float64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if size < 2 {
		return nil, fmt.Errorf("scripting: curve size %d too small", size)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prog, err := goja.Compile("curve", "(function(v) { return ("+expr+"); })", true)
	if err != nil {
		return nil, err
	}
	defer e.guard(ctx)()

	fv, err := e.vm.RunProgram(prog)
	if err != nil {
		return nil, interrupted(err)
	}
	fn, ok := goja.AssertFunction(fv)
	if !ok {
		return nil, ErrBadCurve
	}

	lut := make([]float64, size)
	for i := range lut {
		v := float64(i) / float64(size-1)
		res, err := fn(goja.Undefined(), e.vm.ToValue(v))
		if err != nil {
			return nil, interrupted(err)
		}
		f := res.ToFloat()
		if math.IsNaN(f) {
			return nil, fmt.Errorf("%w: f(%g) = %s", ErrBadCurve, v, res.String())
		}
		lut[i] = math.Min(1, math.Max(0, f))
	}
	return lut, nil
}
