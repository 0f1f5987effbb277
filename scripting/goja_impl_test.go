package scripting

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestGojaEngine_ContextCancellation(t *testing.T) {
	engine := NewEngine()

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	if _, err := engine.Execute(ctx, "while (true) {}"); err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}

	if _, err := engine.Execute(context.Background(), "1 + 1"); err != nil {
		t.Fatalf("engine should recover after cancellation, got %v", err)
	}
}

func TestGojaEngine_ImmediateCancel(t *testing.T) {
	engine := NewEngine()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Execute(ctx, "42"); err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled error, got %v", err)
	}
}

type fakeOptions map[string]float64

func (f fakeOptions) FindDouble(path string, pos int) (float64, error) {
	if v, ok := f[path]; ok {
		return v, nil
	}
	return 0, errors.New("not found")
}

func (f fakeOptions) FindString(path string, pos int) (string, error) {
	return "", errors.New("not found")
}

func TestGojaEngine_Curve(t *testing.T) {
	engine := NewEngine()
	if err := engine.RegisterOptions(fakeOptions{"curve/gain": 2}); err != nil {
		t.Fatal(err)
	}

	lut, err := engine.Curve(context.Background(), "v * option('curve/gain')", 256)
	if err != nil {
		t.Fatalf("Curve failed: %v", err)
	}
	if len(lut) != 256 {
		t.Fatalf("expected 256 entries, got %d", len(lut))
	}
	if lut[0] != 0 || lut[255] != 1 {
		t.Errorf("unexpected endpoints %f %f", lut[0], lut[255])
	}
	if math.Abs(lut[64]-128.0/255.0) > 1e-9 {
		t.Errorf("expected doubled sample, got %f", lut[64])
	}

	if _, err := engine.Curve(context.Background(), "'x' * v", 16); !errors.Is(err, ErrBadCurve) {
		t.Errorf("expected ErrBadCurve, got %v", err)
	}
	if _, err := engine.Curve(context.Background(), "v +", 16); err == nil {
		t.Error("expected syntax error")
	}
}

func TestGojaEngine_CurveCancel(t *testing.T) {
	engine := NewEngine()
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()
	_, err := engine.Curve(ctx, "(function(){ while (true) {} })()", 4)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
