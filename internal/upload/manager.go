// Package upload drives document slots through their upload lifecycle and
// runs the transfers concurrently.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"onboard/internal/profile/fields"
	"onboard/internal/profile/models"
	dErrors "onboard/pkg/domain-errors"
)

const (
	DefaultMaxConcurrent = 3
	DefaultTimeout       = 2 * time.Minute
)

var (
	ErrUnknownDocument   = errors.New("unknown document type")
	ErrInvalidTransition = errors.New("invalid upload transition")
	ErrClosed            = errors.New("upload manager closed")
)

// Transferer moves a file to remote storage.
type Transferer interface {
	UploadDocument(ctx context.Context, t models.DocumentType, f File) (Result, error)
}

// Manager owns the upload lifecycle of every slot in a Store.
type Manager struct {
	store    *fields.Store
	transfer Transferer
	sem      *semaphore.Weighted
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *Metrics

	mu       sync.Mutex
	inflight map[models.DocumentType]*Task
	closed   bool
	wg       sync.WaitGroup
}

type Option func(m *Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithMaxConcurrent caps simultaneous transfers. Values below 1 are ignored.
func WithMaxConcurrent(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithTimeout bounds each transfer. Values below or equal to zero are ignored.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// New constructs a Manager.
func New(store *fields.Store, transfer Transferer, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		transfer: transfer,
		sem:      semaphore.NewWeighted(DefaultMaxConcurrent),
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
		inflight: make(map[models.DocumentType]*Task),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartUpload validates f, moves the slot from pending to uploading and
// launches the transfer. A rejected file leaves the slot untouched.
func (m *Manager) StartUpload(ctx context.Context, t models.DocumentType, f File) (*Task, error) {
	if err := f.Check(); err != nil {
		var rejected *models.FileRejected
		if errors.As(err, &rejected) {
			m.metrics.incRejected(string(rejected.Reason))
		}
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if _, err := m.store.UpdateSlot(t, (*models.DocumentSlot).BeginUpload); err != nil {
		return nil, slotError(t, err)
	}

	taskCtx, cancel := context.WithCancel(ctx)
	task := newTask(t, cancel)
	m.inflight[t] = task
	m.wg.Add(1)
	m.metrics.incStarted()
	go m.run(taskCtx, task, f)
	return task, nil
}

func (m *Manager) run(ctx context.Context, task *Task, f File) {
	defer m.wg.Done()
	defer task.cancel()
	start := time.Now()

	res, err := m.doTransfer(ctx, task.Type, f)
	if err == nil {
		if res.FileName == "" {
			res.FileName = f.Name
		}
		_, err = m.store.UpdateSlot(task.Type, func(s *models.DocumentSlot) error {
			return s.CompleteUpload(res.FileURL, res.FileName)
		})
	}
	if err != nil {
		if _, ferr := m.store.UpdateSlot(task.Type, (*models.DocumentSlot).FailUpload); ferr != nil {
			m.logger.Error("failed to mark upload as failed", "document_type", task.Type, "error", ferr)
		}
		err = &models.UploadFailure{Type: task.Type, Err: err}
		res = Result{}
	}

	m.mu.Lock()
	if m.inflight[task.Type] == task {
		delete(m.inflight, task.Type)
	}
	m.mu.Unlock()

	m.metrics.observeDone(start, failureCause(err))
	if err != nil {
		m.logger.Warn("document upload failed", "document_type", task.Type, "file", f.Name, "error", err)
	} else {
		m.logger.Info("document uploaded", "document_type", task.Type, "file", res.FileName)
	}
	task.resolve(res, err)
}

func (m *Manager) doTransfer(ctx context.Context, t models.DocumentType, f File) (Result, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer m.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	res, err := m.transfer.UploadDocument(ctx, t, f)
	if err != nil {
		return Result{}, err
	}
	if res.FileURL == "" {
		return Result{}, dErrors.New(dErrors.CodeUploadFailed, "remote store returned no file url")
	}
	return res, nil
}

func failureCause(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "transfer"
}

// Replace returns a completed slot to pending so a new file can be uploaded.
func (m *Manager) Replace(t models.DocumentType) error {
	if m.isClosed() {
		return ErrClosed
	}
	_, err := m.store.UpdateSlot(t, (*models.DocumentSlot).Replace)
	return slotError(t, err)
}

// Retry returns a failed slot to pending.
func (m *Manager) Retry(t models.DocumentType) error {
	if m.isClosed() {
		return ErrClosed
	}
	_, err := m.store.UpdateSlot(t, (*models.DocumentSlot).Retry)
	return slotError(t, err)
}

func slotError(t models.DocumentType, err error) error {
	var transition *models.TransitionError
	switch {
	case err == nil:
		return nil
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		return fmt.Errorf("%w: %s", ErrUnknownDocument, t)
	case errors.As(err, &transition):
		return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	}
	return err
}

// Cancel aborts the in-flight transfer of t. It reports whether one existed.
func (m *Manager) Cancel(t models.DocumentType) bool {
	m.mu.Lock()
	task, ok := m.inflight[t]
	m.mu.Unlock()
	if ok {
		task.Cancel()
	}
	return ok
}

// CancelAll aborts every in-flight transfer.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	tasks := make([]*Task, 0, len(m.inflight))
	for _, task := range m.inflight {
		tasks = append(tasks, task)
	}
	m.mu.Unlock()
	for _, task := range tasks {
		task.Cancel()
	}
}

// Wait blocks until no transfer is running or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects new uploads, cancels running ones and waits for them to
// settle.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.CancelAll()
	return m.Wait(ctx)
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// UploadedCount is the number of completed slots.
func (m *Manager) UploadedCount() int {
	return m.store.Snapshot().UploadedCount()
}

// TotalCount is the number of slots in the catalog.
func (m *Manager) TotalCount() int {
	return len(m.store.Snapshot().Documents)
}

// InFlight lists the type codes currently transferring, sorted.
func (m *Manager) InFlight() []models.DocumentType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.DocumentType, 0, len(m.inflight))
	for t := range m.inflight {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// IsUploading reports whether t has a transfer in flight.
func (m *Manager) IsUploading(t models.DocumentType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inflight[t]
	return ok
}
