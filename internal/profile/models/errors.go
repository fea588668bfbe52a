package models

import (
	"fmt"
	"strings"

	dErrors "onboard/pkg/domain-errors"
)

// ValidationError lists the unmet requirements of a step. It blocks forward
// navigation and is recovered by filling the missing items.
type ValidationError struct {
	Step       int
	Missing    []FieldRef
	Violations []string
}

func (e *ValidationError) Error() string {
	parts := append(refStrings(e.Missing), e.Violations...)
	return fmt.Sprintf("step %d incomplete: %s", e.Step, strings.Join(parts, ", "))
}

func (e *ValidationError) DomainCode() dErrors.Code { return dErrors.CodeValidation }

// Details lists the missing field refs and rule violations for responses.
func (e *ValidationError) Details() ([]string, []string) {
	return refStrings(e.Missing), e.Violations
}

func refStrings(refs []FieldRef) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.String())
	}
	return out
}

// RejectReason explains why a file never left the client.
type RejectReason string

const (
	RejectTooLarge        RejectReason = "too_large"
	RejectUnsupportedType RejectReason = "unsupported_type"
	RejectEmpty           RejectReason = "empty"
)

// FileRejected is returned before any transfer when a file violates the size
// or type constraints. The slot state is unchanged.
type FileRejected struct {
	FileName    string
	Reason      RejectReason
	Size        int64
	ContentType string
}

func (e *FileRejected) Error() string {
	switch e.Reason {
	case RejectTooLarge:
		return fmt.Sprintf("file %q rejected: %d bytes exceeds the size limit", e.FileName, e.Size)
	case RejectUnsupportedType:
		return fmt.Sprintf("file %q rejected: content type %q is not allowed", e.FileName, e.ContentType)
	}
	return fmt.Sprintf("file %q rejected: %s", e.FileName, e.Reason)
}

func (e *FileRejected) DomainCode() dErrors.Code { return dErrors.CodeFileRejected }

// UploadFailure is a transfer error scoped to one slot; the slot is left in
// the error state and can be retried.
type UploadFailure struct {
	Type DocumentType
	Err  error
}

func (e *UploadFailure) Error() string {
	return fmt.Sprintf("upload of %s failed: %v", e.Type, e.Err)
}

func (e *UploadFailure) Unwrap() error { return e.Err }

func (e *UploadFailure) DomainCode() dErrors.Code { return dErrors.CodeUploadFailed }

// SaveFailure reports a failed partial save. The in-memory draft is retained.
type SaveFailure struct {
	Err error
}

func (e *SaveFailure) Error() string {
	return fmt.Sprintf("save progress failed: %v", e.Err)
}

func (e *SaveFailure) Unwrap() error { return e.Err }

func (e *SaveFailure) DomainCode() dErrors.Code { return dErrors.CodeUnavailable }

// CompleteFailure reports a rejected final submission, either by local
// validation or by the server. The draft is retained.
type CompleteFailure struct {
	Missing    []FieldRef
	Violations []string
	Reason     string
	Err        error
}

func (e *CompleteFailure) Error() string {
	var b strings.Builder
	b.WriteString("complete profile rejected")
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, " (missing %s)", strings.Join(refStrings(e.Missing), ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *CompleteFailure) Unwrap() error { return e.Err }

func (e *CompleteFailure) Details() ([]string, []string) {
	return refStrings(e.Missing), e.Violations
}

func (e *CompleteFailure) DomainCode() dErrors.Code {
	if len(e.Missing) > 0 || len(e.Violations) > 0 {
		return dErrors.CodeValidation
	}
	if e.Err != nil {
		return dErrors.CodeOf(e.Err)
	}
	return dErrors.CodeValidation
}
