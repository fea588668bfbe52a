package models

import "slices"

// Check is the predicate a required field must satisfy.
type Check int

const (
	// CheckNonEmpty requires a non-blank string.
	CheckNonEmpty Check = iota
	// CheckPositive requires an integer greater than zero.
	CheckPositive
)

// Requirement binds a field to the check gating its step.
type Requirement struct {
	Ref   FieldRef
	Check Check
}

// StepDefinition is one wizard page. Documents marks the terminal step whose
// gate is "every required slot completed".
type StepDefinition struct {
	ID          int
	Title       string
	Description string
	Required    []Requirement
	Documents   bool
}

func nonEmpty(refs ...FieldRef) []Requirement {
	out := make([]Requirement, 0, len(refs))
	for _, r := range refs {
		out = append(out, Requirement{Ref: r, Check: CheckNonEmpty})
	}
	return out
}

var hospitalSteps = []StepDefinition{
	{ID: 1, Title: "Basic Information", Description: "Hospital name, type, and contact details",
		Required: nonEmpty(RefName, RefOrgType, RefLicense, RefPhone, RefEmergencyContact)},
	{ID: 2, Title: "Location & Address", Description: "Hospital address and location details",
		Required: nonEmpty(RefStreet, RefCity, RefState)},
	{ID: 3, Title: "Hospital Details", Description: "Description, capacity, and insurance",
		Required: append(nonEmpty(RefDescription),
			Requirement{Ref: RefTotalBeds, Check: CheckPositive},
			Requirement{Ref: RefDepartments, Check: CheckPositive})},
	{ID: 4, Title: "Professional Info", Description: "Operating hours, staff, and services"},
	{ID: 5, Title: "Ambulance Services", Description: "Ambulance configuration and equipment"},
	{ID: 6, Title: "Document Upload", Description: "Required documents and certificates", Documents: true},
}

var bloodBankSteps = []StepDefinition{
	{ID: 1, Title: "Basic Information", Description: "Contact person and phone",
		Required: nonEmpty(RefPhone)},
	{ID: 2, Title: "Blood Bank Information", Description: "Name, type, and license",
		Required: nonEmpty(RefName, RefOrgType, RefLicense)},
	{ID: 3, Title: "Location & Contact", Description: "Address and location details",
		Required: nonEmpty(RefStreet, RefCity, RefState)},
	{ID: 4, Title: "Capacity & Staff", Description: "Storage capacity and staff counts"},
	{ID: 5, Title: "Operating Hours", Description: "Hours, working days, and capabilities"},
	{ID: 6, Title: "Documents & Certifications", Description: "Licenses and certificates", Documents: true},
}

// Steps returns the ordered step definitions of a category.
func Steps(c Category) []StepDefinition {
	switch c {
	case CategoryHospital:
		return slices.Clone(hospitalSteps)
	case CategoryBloodBank:
		return slices.Clone(bloodBankSteps)
	}
	return nil
}

// Step looks up one step definition by id.
func Step(c Category, id int) (StepDefinition, bool) {
	steps := Steps(c)
	if id < 1 || id > len(steps) {
		return StepDefinition{}, false
	}
	return steps[id-1], true
}
