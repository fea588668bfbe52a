package models

import (
	"fmt"
	"slices"

	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
)

// DocumentType is the immutable type code of a catalog slot ("license", "fire", ...).
type DocumentType string

// UploadStatus is the state of a slot's upload pipeline.
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadCompleted UploadStatus = "completed"
	UploadError     UploadStatus = "error"
)

var uploadTransitions = map[UploadStatus][]UploadStatus{
	UploadPending:   {UploadUploading},
	UploadUploading: {UploadCompleted, UploadError},
	UploadCompleted: {UploadPending},
	UploadError:     {UploadPending},
}

func (s UploadStatus) IsValid() bool {
	_, ok := uploadTransitions[s]
	return ok
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s UploadStatus) CanTransitionTo(next UploadStatus) bool {
	return slices.Contains(uploadTransitions[s], next)
}

// DocumentSlot is one entry of the fixed document catalog.
//
// Invariants:
//   - Type never changes after construction
//   - Status is one of pending, uploading, completed, error
//   - RemoteURL is set iff Status == completed
type DocumentSlot struct {
	Type      DocumentType `json:"type"`
	Title     string       `json:"title"`
	Required  bool         `json:"required"`
	Status    UploadStatus `json:"uploadStatus"`
	RemoteURL string       `json:"fileUrl,omitempty"`
	FileName  string       `json:"fileName,omitempty"`
}

// Validate checks the slot invariants.
func (d DocumentSlot) Validate() error {
	if !d.Status.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("document %s: unknown status %q", d.Type, d.Status))
	}
	if (d.RemoteURL != "") != (d.Status == UploadCompleted) {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("document %s: remote url must be set iff completed", d.Type))
	}
	return nil
}

// TransitionError reports a status change the slot state machine does not allow.
type TransitionError struct {
	Type DocumentType
	From UploadStatus
	To   UploadStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("document %s: cannot move from %s to %s", e.Type, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return sentinel.ErrInvalidState }

func (e *TransitionError) DomainCode() dErrors.Code { return dErrors.CodeConflict }

func (d *DocumentSlot) transition(next UploadStatus) error {
	if !d.Status.CanTransitionTo(next) {
		return &TransitionError{Type: d.Type, From: d.Status, To: next}
	}
	d.Status = next
	return nil
}

// BeginUpload moves pending -> uploading.
func (d *DocumentSlot) BeginUpload() error {
	return d.transition(UploadUploading)
}

// CompleteUpload moves uploading -> completed and records the stored file.
func (d *DocumentSlot) CompleteUpload(remoteURL, fileName string) error {
	if remoteURL == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "completed upload requires a remote url")
	}
	if err := d.transition(UploadCompleted); err != nil {
		return err
	}
	d.RemoteURL = remoteURL
	d.FileName = fileName
	return nil
}

// FailUpload moves uploading -> error. No remote URL is retained.
func (d *DocumentSlot) FailUpload() error {
	if err := d.transition(UploadError); err != nil {
		return err
	}
	d.RemoteURL = ""
	d.FileName = ""
	return nil
}

// Replace moves completed -> pending and forgets the stored file.
func (d *DocumentSlot) Replace() error {
	if d.Status != UploadCompleted {
		return &TransitionError{Type: d.Type, From: d.Status, To: UploadPending}
	}
	d.Status = UploadPending
	d.RemoteURL = ""
	d.FileName = ""
	return nil
}

// Retry moves error -> pending.
func (d *DocumentSlot) Retry() error {
	if d.Status != UploadError {
		return &TransitionError{Type: d.Type, From: d.Status, To: UploadPending}
	}
	d.Status = UploadPending
	return nil
}
