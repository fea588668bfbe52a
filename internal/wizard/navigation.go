package wizard

import (
	"context"
	"fmt"

	"onboard/internal/profile/models"
)

// CurrentStep is the 1-based id of the active step.
func (s *Session) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// TotalSteps is the number of steps of the session's category.
func (s *Session) TotalSteps() int {
	return len(s.steps)
}

// Steps returns the step definitions in order.
func (s *Session) Steps() []models.StepDefinition {
	return models.Steps(s.category)
}

// Progress is the share of steps reached, in percent.
func (s *Session) Progress() float64 {
	return float64(s.CurrentStep()) / float64(len(s.steps)) * 100
}

// Advance validates the current step and moves forward. On the last step a
// valid draft is submitted instead. An invalid step returns
// *models.ValidationError and leaves the session where it was.
func (s *Session) Advance(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	current := s.current
	if res := s.engine.ValidateStep(current, s.store.Snapshot()); !res.OK {
		s.mu.Unlock()
		return res.Err(current)
	}
	if current < len(s.steps) {
		s.current++
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.Complete(ctx)
}

// Retreat moves back one step without validating. It stops at step 1.
func (s *Session) Retreat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current > 1 {
		s.current--
	}
}

// JumpTo moves directly to stepID. Moving back is unconditional; moving
// forward requires every step from the current one up to stepID to validate.
func (s *Session) JumpTo(stepID int) error {
	if stepID < 1 || stepID > len(s.steps) {
		return fmt.Errorf("%w: %d", ErrUnknownStep, stepID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if stepID > s.current {
		if failed, res := s.engine.FirstInvalid(s.store.Snapshot(), s.current, stepID); failed != 0 {
			return res.Err(failed)
		}
	}
	s.current = stepID
	return nil
}
