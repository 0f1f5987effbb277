package recovery_test

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/wudi/colorkit/recovery"
)

func TestRecoveryStrategies(t *testing.T) {
	loc := recovery.Location{NodeID: 7, Registration: "org/colorkit/filter/icc", Region: image.Rect(0, 0, 4, 4), Attempt: 1}
	boom := errors.New("boom")

	t.Run("StrictStrategy", func(t *testing.T) {
		if a := recovery.NewStrictStrategy().OnError(context.Background(), boom, loc); a != recovery.ActionFail {
			t.Fatalf("expected fail, got %v", a)
		}
	})

	t.Run("LenientStrategy", func(t *testing.T) {
		rec := recovery.NewLenientStrategy()
		if a := rec.OnError(context.Background(), boom, loc); a != recovery.ActionWarn {
			t.Fatalf("expected warn, got %v", a)
		}
		errs := rec.Errs()
		if len(errs) != 1 || !errors.Is(errs[0], boom) {
			t.Fatalf("unexpected errors %v", errs)
		}
		if a := rec.OnError(context.Background(), context.Canceled, loc); a != recovery.ActionFail {
			t.Fatalf("cancellation must fail, got %v", a)
		}
		if len(rec.Errs()) != 1 {
			t.Fatal("cancellation must not be recorded")
		}
	})
}

func TestLocationString(t *testing.T) {
	loc := recovery.Location{NodeID: 3, Registration: "a/b", Region: image.Rect(1, 2, 3, 4)}
	if got := loc.String(); got != "a/b#3 (1,2)-(3,4) attempt 0" {
		t.Fatalf("unexpected %q", got)
	}
}
