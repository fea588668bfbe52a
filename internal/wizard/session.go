// Package wizard runs one facility's staged profile completion: it owns the
// draft, gates forward navigation on step validation and coordinates saves,
// uploads and the final submission.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"onboard/internal/profile/fields"
	"onboard/internal/profile/models"
	"onboard/internal/profile/validation"
	"onboard/internal/upload"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
)

//go:generate mockgen -source=session.go -destination=mocks/mocks.go -package=mocks Backend

var (
	ErrBusy          = dErrors.New(dErrors.CodeBusy, "a save or completion is already in progress")
	ErrUnknownStep   = dErrors.New(dErrors.CodeInvalidInput, "unknown step")
	ErrSessionClosed = dErrors.New(dErrors.CodeConflict, "wizard session is closed")
)

// Backend is the remote profile API a session reads from and writes to.
type Backend interface {
	LoadProfile(ctx context.Context) (*models.ProfileDraft, error)
	SaveProgress(ctx context.Context, draft *models.ProfileDraft) error
	CompleteProfile(ctx context.Context, draft *models.ProfileDraft) error
	UploadDocument(ctx context.Context, t models.DocumentType, f upload.File) (upload.Result, error)
}

// CompletionHook is called once the server has accepted the completed profile.
type CompletionHook func(ctx context.Context, draft *models.ProfileDraft)

// Session is the state of one wizard instance. Navigation and field updates
// are synchronous; uploads run in the background.
type Session struct {
	category models.Category
	steps    []models.StepDefinition
	backend  Backend
	store    *fields.Store
	uploads  *upload.Manager
	engine   *validation.Engine
	logger   *slog.Logger
	onDone   CompletionHook
	now      func() time.Time

	mu      sync.Mutex
	current int
	closed  bool

	// busy serializes SaveProgress and Complete without queueing callers.
	busy sync.Mutex
}

type config struct {
	logger        *slog.Logger
	engine        *validation.Engine
	onDone        CompletionHook
	uploadOptions []upload.Option
	now           func() time.Time
}

type Option func(c *config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithEngine replaces the default validation engine, for example one with
// cross-field rules.
func WithEngine(engine *validation.Engine) Option {
	return func(c *config) {
		c.engine = engine
	}
}

func WithCompletionHook(hook CompletionHook) Option {
	return func(c *config) {
		c.onDone = hook
	}
}

func WithUploadOptions(opts ...upload.Option) Option {
	return func(c *config) {
		c.uploadOptions = append(c.uploadOptions, opts...)
	}
}

// WithClock overrides the clock used to stamp completion.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// Open loads the facility's existing profile, or starts from the category
// defaults when none exists, and positions the session on step 1.
func Open(ctx context.Context, backend Backend, category models.Category, opts ...Option) (*Session, error) {
	if backend == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "backend is required")
	}
	if !category.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported category %q", category))
	}
	cfg := config{
		logger: slog.Default(),
		engine: validation.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	draft, err := loadDraft(ctx, backend, category)
	if err != nil {
		return nil, err
	}
	store := fields.NewStore(draft)
	uploadOpts := append([]upload.Option{upload.WithLogger(cfg.logger)}, cfg.uploadOptions...)

	s := &Session{
		category: category,
		steps:    models.Steps(category),
		backend:  backend,
		store:    store,
		uploads:  upload.New(store, backend, uploadOpts...),
		engine:   cfg.engine,
		logger:   cfg.logger,
		onDone:   cfg.onDone,
		now:      cfg.now,
		current:  1,
	}
	s.logger.InfoContext(ctx, "wizard session opened",
		"category", category,
		"documents_uploaded", draft.UploadedCount(),
		"documents_total", len(draft.Documents),
	)
	return s, nil
}

func loadDraft(ctx context.Context, backend Backend, category models.Category) (*models.ProfileDraft, error) {
	draft, err := backend.LoadProfile(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.NewDefaultDraft(category), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if draft == nil {
		return models.NewDefaultDraft(category), nil
	}
	if draft.Category == "" {
		draft.Category = category
	}
	if draft.Category != category {
		return nil, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("stored profile is a %s profile, not %s", draft.Category, category))
	}
	draft.Documents = models.ReconcileDocuments(category, draft.Documents)
	return draft, nil
}

// Category is the facility category the session was opened for.
func (s *Session) Category() models.Category {
	return s.category
}

// Draft returns the current immutable snapshot of the profile.
func (s *Session) Draft() *models.ProfileDraft {
	return s.store.Snapshot()
}

// Fields exposes the field store for edits.
func (s *Session) Fields() *fields.Store {
	return s.store
}

// Uploads exposes the document upload manager.
func (s *Session) Uploads() *upload.Manager {
	return s.uploads
}

// Validate checks one step of the current draft without navigating.
func (s *Session) Validate(stepID int) validation.Result {
	return s.engine.ValidateStep(stepID, s.store.Snapshot())
}

// Close stops accepting work, cancels in-flight uploads and waits for them
// to settle.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.uploads.Close(ctx)
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
