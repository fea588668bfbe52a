package models

import (
	"maps"
	"slices"
	"time"
)

// ProfileDraft is the working data tree for one onboarding session.
//
// Invariants:
//   - Documents has the length and type-code order of the category catalog
//   - every slot satisfies DocumentSlot.Validate
//   - Lists hold unique, trimmed members
//
// Drafts handed out by the field store are snapshots: callers must not mutate
// them in place. Use Clone when a private copy is needed.
type ProfileDraft struct {
	Category     Category                  `json:"category"`
	Identity     Identity                  `json:"identity"`
	Organization Organization              `json:"organization"`
	Location     Location                  `json:"location"`
	Capacity     Capacity                  `json:"capacity"`
	Staff        Staff                     `json:"staff"`
	Hours        OperatingHours            `json:"operatingHours"`
	Ambulance    AmbulanceServices         `json:"ambulanceServices"`
	Flags        map[Group]map[string]bool `json:"flags"`
	Lists        map[ListField][]string    `json:"lists"`
	Documents    []DocumentSlot            `json:"documents"`
	CompletedAt  *time.Time                `json:"completedAt,omitempty"`
}

type Identity struct {
	Name             string `json:"name"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	Website          string `json:"website"`
	EmergencyContact string `json:"emergencyContact"`
	EmergencyPhone   string `json:"emergencyPhone"`
	AmbulancePhone   string `json:"ambulancePhone"`
}

type Organization struct {
	Type               string `json:"type"`
	LicenseNumber      string `json:"licenseNumber"`
	RegistrationNumber string `json:"registrationNumber"`
	EstablishmentDate  string `json:"establishmentDate"`
	Description        string `json:"description"`
	Mission            string `json:"mission"`
	Vision             string `json:"vision"`
}

type Location struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// Capacity mixes hospital bed counts and blood bank unit capacities; each
// category only uses its own half.
type Capacity struct {
	TotalBeds         int `json:"totalBeds"`
	ICUBeds           int `json:"icuBeds"`
	EmergencyBeds     int `json:"emergencyBeds"`
	OperatingRooms    int `json:"operatingRooms"`
	Departments       int `json:"departments"`
	StaffCount        int `json:"staffCount"`
	TotalUnits        int `json:"totalUnits"`
	RefrigeratedUnits int `json:"refrigeratedUnits"`
	FrozenUnits       int `json:"frozenUnits"`
	PlateletUnits     int `json:"plateletUnits"`
	PlasmaUnits       int `json:"plasmaUnits"`
}

type Staff struct {
	Doctors         int `json:"doctors"`
	Nurses          int `json:"nurses"`
	Specialists     int `json:"specialists"`
	Technicians     int `json:"technicians"`
	SupportStaff    int `json:"supportStaff"`
	MedicalOfficers int `json:"medicalOfficers"`
}

type OperatingHours struct {
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	Emergency24x7 bool   `json:"emergency24x7"`
}

type AmbulanceServices struct {
	Available    bool   `json:"available"`
	FleetSize    int    `json:"fleetSize"`
	ResponseTime string `json:"responseTime"`
	CoverageArea string `json:"coverageArea"`
}

// Clone returns a deep copy of the draft.
func (d *ProfileDraft) Clone() *ProfileDraft {
	if d == nil {
		return nil
	}
	out := *d
	if d.Flags != nil {
		out.Flags = make(map[Group]map[string]bool, len(d.Flags))
		for g, flags := range d.Flags {
			out.Flags[g] = maps.Clone(flags)
		}
	}
	if d.Lists != nil {
		out.Lists = make(map[ListField][]string, len(d.Lists))
		for f, values := range d.Lists {
			out.Lists[f] = slices.Clone(values)
		}
	}
	out.Documents = slices.Clone(d.Documents)
	if d.CompletedAt != nil {
		at := *d.CompletedAt
		out.CompletedAt = &at
	}
	return &out
}

// Slot returns the catalog slot for a type code.
func (d *ProfileDraft) Slot(t DocumentType) (DocumentSlot, bool) {
	for _, slot := range d.Documents {
		if slot.Type == t {
			return slot, true
		}
	}
	return DocumentSlot{}, false
}

// UploadedCount counts slots in the completed state.
func (d *ProfileDraft) UploadedCount() int {
	n := 0
	for _, slot := range d.Documents {
		if slot.Status == UploadCompleted {
			n++
		}
	}
	return n
}

// MissingRequiredDocuments lists required slots that are not completed, in catalog order.
func (d *ProfileDraft) MissingRequiredDocuments() []DocumentType {
	var missing []DocumentType
	for _, slot := range d.Documents {
		if slot.Required && slot.Status != UploadCompleted {
			missing = append(missing, slot.Type)
		}
	}
	return missing
}

// List returns the members of a list field.
func (d *ProfileDraft) List(f ListField) []string {
	return d.Lists[f]
}

// Flag returns a capability flag value.
func (d *ProfileDraft) Flag(g Group, key string) bool {
	return d.Flags[g][key]
}

// IsComplete reports whether the profile was accepted as complete.
func (d *ProfileDraft) IsComplete() bool {
	return d.CompletedAt != nil
}

// CompletionSummary is the progress report served to clients. Ready means the
// profile would be accepted by a completion request now.
type CompletionSummary struct {
	Ready             bool       `json:"isComplete"`
	Completed         bool       `json:"profileCompleted"`
	Percent           int        `json:"completionPercentage"`
	Missing           []FieldRef `json:"missingFields"`
	Violations        []string   `json:"violations,omitempty"`
	SatisfiedItems    int        `json:"completedFields"`
	TotalItems        int        `json:"totalFields"`
	DocumentsUploaded int        `json:"documentsUploaded"`
	DocumentsTotal    int        `json:"documentsTotal"`
}
