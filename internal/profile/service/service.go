package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ProfileStore,Publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"onboard/internal/platform/metrics"
	"onboard/internal/profile/events"
	"onboard/internal/profile/models"
	"onboard/internal/profile/validation"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

// DraftStore keeps in-progress drafts per organization. UpdateDraft must be
// atomic per organization: fn sees the stored draft (nil when none) and its
// result replaces it, or nothing is written when fn fails.
type DraftStore interface {
	LoadDraft(ctx context.Context, orgID id.OrgID) (*models.ProfileDraft, error)
	UpdateDraft(ctx context.Context, orgID id.OrgID, fn func(cur *models.ProfileDraft) (*models.ProfileDraft, error)) error
	DeleteDraft(ctx context.Context, orgID id.OrgID) error
}

// ProfileStore keeps accepted profiles.
type ProfileStore interface {
	LoadProfile(ctx context.Context, orgID id.OrgID) (*models.ProfileDraft, error)
	SaveProfile(ctx context.Context, orgID id.OrgID, d *models.ProfileDraft) error
}

// BlobStore holds uploaded document files.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	PresignGet(ctx context.Context, key string) (string, error)
	Remove(ctx context.Context, key string) error
	KeyFromURL(raw string) (string, bool)
}

type Publisher interface {
	PublishProfileCompleted(ctx context.Context, ev events.ProfileCompleted) error
}

// Service serves the profile API: draft persistence, document storage and
// validated completion.
type Service struct {
	drafts    DraftStore
	profiles  ProfileStore
	blobs     BlobStore
	publisher Publisher
	engine    *validation.Engine
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithEngine replaces the default validation engine, e.g. with one carrying
// cross-field rules.
func WithEngine(e *validation.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(drafts DraftStore, profiles ProfileStore, blobs BlobStore, publisher Publisher, opts ...Option) *Service {
	s := &Service{
		drafts:    drafts,
		profiles:  profiles,
		blobs:     blobs,
		publisher: publisher,
		engine:    validation.Default(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// clock prefers the request-scoped time over the service clock.
func (s *Service) clock(ctx context.Context) time.Time {
	if t, ok := requestcontext.Time(ctx); ok {
		return t
	}
	return s.now()
}

// Load returns the organization's draft, falling back to its completed
// profile. Neither existing is a not-found error.
func (s *Service) Load(ctx context.Context, orgID id.OrgID, category models.Category) (*models.ProfileDraft, error) {
	d, err := s.current(ctx, orgID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load profile")
	}
	if err := checkCategory(d, category); err != nil {
		return nil, err
	}
	return models.Normalize(d), nil
}

// current prefers the draft over the completed profile.
func (s *Service) current(ctx context.Context, orgID id.OrgID) (*models.ProfileDraft, error) {
	d, err := s.drafts.LoadDraft(ctx, orgID)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}
	return s.profiles.LoadProfile(ctx, orgID)
}

func checkCategory(d *models.ProfileDraft, category models.Category) error {
	if d.Category == "" {
		d.Category = category
		return nil
	}
	if d.Category != category {
		return dErrors.New(dErrors.CodeConflict, "profile category "+string(d.Category)+" does not match "+string(category))
	}
	return nil
}

// SaveProgress stores a partial draft without validating it. Document
// records the server already holds as completed are kept, so a save racing
// an upload cannot reset that slot.
func (s *Service) SaveProgress(ctx context.Context, orgID id.OrgID, category models.Category, d *models.ProfileDraft) error {
	if d == nil {
		return dErrors.New(dErrors.CodeBadRequest, "profile body is required")
	}
	d = d.Clone()
	if err := checkCategory(d, category); err != nil {
		return err
	}
	d.CompletedAt = nil
	incoming := models.Normalize(d)

	_, err := s.updateDraft(ctx, orgID, category, func(stored *models.ProfileDraft) error {
		next := incoming.Clone()
		keepStoredDocuments(next, stored)
		*stored = *next
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to save draft", "org_id", orgID.String(), "error", err)
		return err
	}
	s.metrics.IncProgressSaved()
	s.logger.InfoContext(ctx, "draft saved", "org_id", orgID.String(), "category", category)
	return nil
}

// keepStoredDocuments copies every completed slot of stored into d.
func keepStoredDocuments(d, stored *models.ProfileDraft) {
	if stored == nil {
		return
	}
	for i := range d.Documents {
		if slot, ok := stored.Slot(d.Documents[i].Type); ok && slot.Status == models.UploadCompleted {
			d.Documents[i] = slot
		}
	}
}

// Complete validates every step and, when the profile is whole, stores it as
// completed, drops the draft and announces it.
func (s *Service) Complete(ctx context.Context, orgID id.OrgID, category models.Category, d *models.ProfileDraft) (*models.ProfileDraft, error) {
	if d == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "profile body is required")
	}
	d = d.Clone()
	if err := checkCategory(d, category); err != nil {
		return nil, err
	}
	d = models.Normalize(d)
	stored, err := s.drafts.LoadDraft(ctx, orgID)
	switch {
	case err == nil:
		keepStoredDocuments(d, models.Normalize(stored))
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load draft")
	}

	if res := s.engine.ValidateAll(d); !res.OK {
		s.metrics.IncCompleteRejected()
		s.logger.InfoContext(ctx, "profile completion rejected",
			"org_id", orgID.String(),
			"missing", len(res.Missing),
			"violations", len(res.Violations),
		)
		return nil, &models.CompleteFailure{Missing: res.Missing, Violations: res.Violations, Reason: "profile incomplete"}
	}

	at := s.clock(ctx).UTC()
	d.CompletedAt = &at
	if err := s.profiles.SaveProfile(ctx, orgID, d); err != nil {
		s.logger.ErrorContext(ctx, "failed to store completed profile", "org_id", orgID.String(), "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to complete profile")
	}
	if err := s.drafts.DeleteDraft(ctx, orgID); err != nil {
		s.logger.WarnContext(ctx, "failed to drop draft after completion", "org_id", orgID.String(), "error", err)
	}
	if err := s.publisher.PublishProfileCompleted(ctx, events.NewProfileCompleted(orgID, d)); err != nil {
		s.logger.WarnContext(ctx, "failed to publish completion", "org_id", orgID.String(), "error", err)
	}
	s.metrics.IncCompleted()
	s.logger.InfoContext(ctx, "profile completed", "org_id", orgID.String(), "category", category)
	return d, nil
}

// Completion reports how far the organization's working profile is from
// being accepted. An organization with nothing stored gets the summary of
// the default draft.
func (s *Service) Completion(ctx context.Context, orgID id.OrgID, category models.Category) (models.CompletionSummary, error) {
	d, err := s.seed(ctx, orgID, category)
	if err != nil {
		return models.CompletionSummary{}, err
	}
	c := s.engine.Completion(d)
	return models.CompletionSummary{
		Ready:             c.OK,
		Completed:         d.IsComplete(),
		Percent:           c.Percent(),
		Missing:           c.Missing,
		Violations:        c.Violations,
		SatisfiedItems:    c.Satisfied,
		TotalItems:        c.Total,
		DocumentsUploaded: d.UploadedCount(),
		DocumentsTotal:    len(d.Documents),
	}, nil
}
