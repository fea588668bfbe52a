package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"onboard/internal/profile/models"
	"onboard/internal/upload"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
)

// UploadDocument stores f as the organization's document of type t and
// records it in the draft, replacing any earlier file of the same type.
func (s *Service) UploadDocument(ctx context.Context, orgID id.OrgID, category models.Category, t models.DocumentType, f upload.File) (upload.Result, error) {
	if _, ok := models.CatalogEntryFor(category, t); !ok {
		return upload.Result{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown document type %q", t))
	}
	if err := f.Check(); err != nil {
		return upload.Result{}, err
	}

	// fail fast before storing a blob for a profile of another category
	if _, err := s.seed(ctx, orgID, category); err != nil {
		return upload.Result{}, err
	}

	key := objectKey(orgID, t, f.Name, s.clock(ctx).Unix())
	url, err := s.blobs.Put(ctx, key, f.Body, f.Size, f.ContentType)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to store document", "org_id", orgID.String(), "type", t, "error", err)
		return upload.Result{}, &models.UploadFailure{Type: t, Err: err}
	}

	var previous string
	_, err = s.updateDraft(ctx, orgID, category, func(d *models.ProfileDraft) error {
		previous = ""
		for i := range d.Documents {
			if d.Documents[i].Type != t {
				continue
			}
			previous = d.Documents[i].RemoteURL
			d.Documents[i].Status = models.UploadCompleted
			d.Documents[i].RemoteURL = url
			d.Documents[i].FileName = f.Name
		}
		d.CompletedAt = nil
		return nil
	})
	if err != nil {
		s.removeBlob(ctx, url)
		return upload.Result{}, err
	}
	if previous != "" && previous != url {
		s.removeBlob(ctx, previous)
	}

	s.metrics.IncDocumentStored(string(t))
	s.logger.InfoContext(ctx, "document stored", "org_id", orgID.String(), "type", t, "size", f.Size)
	return upload.Result{FileURL: url, FileName: f.Name}, nil
}

// seed returns the draft an update starts from when none is stored: a copy
// of the completed profile, or a fresh default draft.
func (s *Service) seed(ctx context.Context, orgID id.OrgID, category models.Category) (*models.ProfileDraft, error) {
	d, err := s.current(ctx, orgID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return models.NewDefaultDraft(category), nil
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load profile")
	}
	if err := checkCategory(d, category); err != nil {
		return nil, err
	}
	return models.Normalize(d), nil
}

// updateDraft applies fn to the organization's working draft as one atomic
// store update and returns the stored result. Errors from fn are returned
// as they are.
func (s *Service) updateDraft(ctx context.Context, orgID id.OrgID, category models.Category, fn func(d *models.ProfileDraft) error) (*models.ProfileDraft, error) {
	base, err := s.seed(ctx, orgID, category)
	if err != nil {
		return nil, err
	}

	var out *models.ProfileDraft
	var fnErr error
	err = s.drafts.UpdateDraft(ctx, orgID, func(cur *models.ProfileDraft) (*models.ProfileDraft, error) {
		d := base.Clone()
		if cur != nil {
			if fnErr = checkCategory(cur, category); fnErr != nil {
				return nil, fnErr
			}
			d = models.Normalize(cur)
		}
		if fnErr = fn(d); fnErr != nil {
			return nil, fnErr
		}
		out = d
		return d, nil
	})
	switch {
	case fnErr != nil:
		return nil, fnErr
	case errors.Is(err, sentinel.ErrConflict):
		return nil, dErrors.Wrap(err, dErrors.CodeConflict, "draft changed concurrently, retry")
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to update draft")
	}
	return out, nil
}

func (s *Service) removeBlob(ctx context.Context, url string) {
	key, ok := s.blobs.KeyFromURL(url)
	if !ok {
		return
	}
	if err := s.blobs.Remove(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to remove document blob", "key", key, "error", err)
	}
}

// DocumentURL returns a short-lived download link for a stored document.
func (s *Service) DocumentURL(ctx context.Context, orgID id.OrgID, category models.Category, t models.DocumentType) (string, error) {
	d, err := s.Load(ctx, orgID, category)
	if err != nil {
		return "", err
	}
	slot, ok := d.Slot(t)
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown document type %q", t))
	}
	if slot.Status != models.UploadCompleted {
		return "", dErrors.New(dErrors.CodeNotFound, "document not uploaded")
	}
	key, ok := s.blobs.KeyFromURL(slot.RemoteURL)
	if !ok {
		return slot.RemoteURL, nil
	}
	link, err := s.blobs.PresignGet(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "document file missing")
		}
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to sign document url")
	}
	return link, nil
}

// objectKey lays out blobs per organization: org-<id>/<type>-<unix>-<uuid><ext>.
func objectKey(orgID id.OrgID, t models.DocumentType, name string, unix int64) string {
	ext := strings.ToLower(path.Ext(name))
	return fmt.Sprintf("org-%s/%s-%d-%s%s", orgID, t, unix, uuid.NewString(), ext)
}
