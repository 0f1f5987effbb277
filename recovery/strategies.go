package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx context.Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy records every error and lets the run continue with the
// failed region left untouched. Cancellation still fails.
type LenientStrategy struct {
	mu     sync.Mutex
	Errors []error
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{}
}

func (s *LenientStrategy) OnError(ctx context.Context, err error, location Location) Action {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ActionFail
	}
	s.mu.Lock()
	s.Errors = append(s.Errors, fmt.Errorf("[%s]: %w", location, err))
	s.mu.Unlock()
	return ActionWarn
}

// Errs returns a snapshot of the recorded errors.
func (s *LenientStrategy) Errs() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.Errors...)
}
