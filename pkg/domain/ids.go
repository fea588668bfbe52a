package domain

import (
	"github.com/google/uuid"

	dErrors "onboard/pkg/domain-errors"
)

// OrgID identifies an onboarding organization (hospital, blood bank).
// It is distinct from other UUID-backed identifiers at compile time.
type OrgID uuid.UUID

// ParseOrgID parses and validates an organization identifier.
// Empty, malformed and nil UUIDs are rejected with CodeInvalidInput.
func ParseOrgID(s string) (OrgID, error) {
	id, err := parseUUID(s, "org_id")
	if err != nil {
		return OrgID{}, err
	}
	return OrgID(id), nil
}

// NewOrgID returns a random organization identifier.
func NewOrgID() OrgID {
	return OrgID(uuid.New())
}

func (id OrgID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the identifier is the zero UUID.
func (id OrgID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be nil")
	}
	return id, nil
}
