package upload

import (
	"context"

	"onboard/internal/profile/models"
)

// Task is the handle of one in-flight transfer. It resolves exactly once.
type Task struct {
	Type   models.DocumentType
	done   chan struct{}
	cancel context.CancelFunc
	result Result
	err    error
}

func newTask(t models.DocumentType, cancel context.CancelFunc) *Task {
	return &Task{Type: t, done: make(chan struct{}), cancel: cancel}
}

// Done is closed once the slot has left the uploading state.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel aborts the transfer. The slot ends in the error state unless the
// transfer already finished.
func (t *Task) Cancel() {
	t.cancel()
}

// Wait blocks until the transfer resolves or ctx ends. A failed transfer
// returns *models.UploadFailure.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (t *Task) resolve(res Result, err error) {
	t.result = res
	t.err = err
	close(t.done)
}
