package models

import (
	"strings"

	dErrors "onboard/pkg/domain-errors"
)

// Category selects the static configuration of a wizard: document catalog,
// capability flags, list fields and step definitions.
type Category string

const (
	CategoryHospital  Category = "hospital"
	CategoryBloodBank Category = "blood_bank"
)

// ParseCategory accepts the canonical names plus the "bloodbank" spelling used
// by older clients.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(CategoryHospital):
		return CategoryHospital, nil
	case string(CategoryBloodBank), "bloodbank", "blood-bank":
		return CategoryBloodBank, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown organization category: "+s)
}

func (c Category) IsValid() bool {
	return c == CategoryHospital || c == CategoryBloodBank
}

func (c Category) String() string {
	return string(c)
}
