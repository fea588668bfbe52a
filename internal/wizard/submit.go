package wizard

import (
	"context"
	"errors"

	"onboard/internal/profile/models"
)

// SaveProgress writes the current draft without validation. Failures come
// back as *models.SaveFailure and leave the local draft untouched. A call
// made while another save or completion is running returns ErrBusy.
func (s *Session) SaveProgress(ctx context.Context) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	if !s.busy.TryLock() {
		return ErrBusy
	}
	defer s.busy.Unlock()

	draft := s.store.Snapshot()
	if err := s.backend.SaveProgress(ctx, draft); err != nil {
		s.logger.WarnContext(ctx, "save progress failed", "category", s.category, "error", err)
		return &models.SaveFailure{Err: err}
	}
	s.logger.InfoContext(ctx, "progress saved", "category", s.category, "step", s.CurrentStep())
	return nil
}

// Complete validates the whole draft and submits it. Local and server
// rejections are returned as *models.CompleteFailure; the draft is kept so
// the user can fix it and try again. Success ends the session and fires the
// completion hook.
func (s *Session) Complete(ctx context.Context) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	if !s.busy.TryLock() {
		return ErrBusy
	}
	defer s.busy.Unlock()

	draft := s.store.Snapshot()
	if res := s.engine.ValidateAll(draft); !res.OK {
		return &models.CompleteFailure{Missing: res.Missing, Violations: res.Violations, Reason: "profile incomplete"}
	}
	if err := s.backend.CompleteProfile(ctx, draft); err != nil {
		s.logger.WarnContext(ctx, "profile completion rejected", "category", s.category, "error", err)
		var failure *models.CompleteFailure
		if errors.As(err, &failure) {
			return failure
		}
		return &models.CompleteFailure{Reason: "submission failed", Err: err}
	}

	s.store.MarkCompleted(s.now().UTC())
	s.store.Freeze()
	done := s.store.Snapshot()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	// every slot is completed at this point, so nothing is left to cancel
	if err := s.uploads.Close(ctx); err != nil {
		s.logger.WarnContext(ctx, "upload manager did not settle", "error", err)
	}

	s.logger.InfoContext(ctx, "profile completed", "category", s.category, "documents_uploaded", done.UploadedCount())
	if s.onDone != nil {
		s.onDone(ctx, done)
	}
	return nil
}

// Completed reports whether the profile has been submitted successfully.
func (s *Session) Completed() bool {
	return s.store.Snapshot().IsComplete()
}
