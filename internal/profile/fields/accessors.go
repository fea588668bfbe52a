package fields

import (
	"fmt"
	"slices"
	"strings"

	"onboard/internal/profile/models"
	dErrors "onboard/pkg/domain-errors"
)

// Kind is the value type stored behind a FieldRef.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	}
	return "unknown"
}

// accessor resolves a ref to a pointer inside a draft. Exactly one of the
// pointer funcs is set, matching kind.
type accessor struct {
	kind Kind
	str  func(*models.ProfileDraft) *string
	num  func(*models.ProfileDraft) *int
	flag func(*models.ProfileDraft) *bool
}

func str(f func(*models.ProfileDraft) *string) accessor { return accessor{kind: KindString, str: f} }
func num(f func(*models.ProfileDraft) *int) accessor    { return accessor{kind: KindInt, num: f} }
func flag(f func(*models.ProfileDraft) *bool) accessor  { return accessor{kind: KindBool, flag: f} }

var accessors = map[models.FieldRef]accessor{
	models.RefName:             str(func(d *models.ProfileDraft) *string { return &d.Identity.Name }),
	models.RefFirstName:        str(func(d *models.ProfileDraft) *string { return &d.Identity.FirstName }),
	models.RefLastName:         str(func(d *models.ProfileDraft) *string { return &d.Identity.LastName }),
	models.RefPhone:            str(func(d *models.ProfileDraft) *string { return &d.Identity.Phone }),
	models.RefEmail:            str(func(d *models.ProfileDraft) *string { return &d.Identity.Email }),
	models.RefWebsite:          str(func(d *models.ProfileDraft) *string { return &d.Identity.Website }),
	models.RefEmergencyContact: str(func(d *models.ProfileDraft) *string { return &d.Identity.EmergencyContact }),
	models.RefEmergencyPhone:   str(func(d *models.ProfileDraft) *string { return &d.Identity.EmergencyPhone }),
	models.RefAmbulancePhone:   str(func(d *models.ProfileDraft) *string { return &d.Identity.AmbulancePhone }),

	models.RefOrgType:       str(func(d *models.ProfileDraft) *string { return &d.Organization.Type }),
	models.RefLicense:       str(func(d *models.ProfileDraft) *string { return &d.Organization.LicenseNumber }),
	models.RefRegistration:  str(func(d *models.ProfileDraft) *string { return &d.Organization.RegistrationNumber }),
	models.RefEstablishedOn: str(func(d *models.ProfileDraft) *string { return &d.Organization.EstablishmentDate }),
	models.RefDescription:   str(func(d *models.ProfileDraft) *string { return &d.Organization.Description }),
	models.RefMission:       str(func(d *models.ProfileDraft) *string { return &d.Organization.Mission }),
	models.RefVision:        str(func(d *models.ProfileDraft) *string { return &d.Organization.Vision }),

	models.RefStreet:  str(func(d *models.ProfileDraft) *string { return &d.Location.Street }),
	models.RefCity:    str(func(d *models.ProfileDraft) *string { return &d.Location.City }),
	models.RefState:   str(func(d *models.ProfileDraft) *string { return &d.Location.State }),
	models.RefZipCode: str(func(d *models.ProfileDraft) *string { return &d.Location.ZipCode }),
	models.RefCountry: str(func(d *models.ProfileDraft) *string { return &d.Location.Country }),

	models.RefTotalBeds:         num(func(d *models.ProfileDraft) *int { return &d.Capacity.TotalBeds }),
	models.RefICUBeds:           num(func(d *models.ProfileDraft) *int { return &d.Capacity.ICUBeds }),
	models.RefEmergencyBeds:     num(func(d *models.ProfileDraft) *int { return &d.Capacity.EmergencyBeds }),
	models.RefOperatingRooms:    num(func(d *models.ProfileDraft) *int { return &d.Capacity.OperatingRooms }),
	models.RefDepartments:       num(func(d *models.ProfileDraft) *int { return &d.Capacity.Departments }),
	models.RefStaffCount:        num(func(d *models.ProfileDraft) *int { return &d.Capacity.StaffCount }),
	models.RefTotalUnits:        num(func(d *models.ProfileDraft) *int { return &d.Capacity.TotalUnits }),
	models.RefRefrigeratedUnits: num(func(d *models.ProfileDraft) *int { return &d.Capacity.RefrigeratedUnits }),
	models.RefFrozenUnits:       num(func(d *models.ProfileDraft) *int { return &d.Capacity.FrozenUnits }),
	models.RefPlateletUnits:     num(func(d *models.ProfileDraft) *int { return &d.Capacity.PlateletUnits }),
	models.RefPlasmaUnits:       num(func(d *models.ProfileDraft) *int { return &d.Capacity.PlasmaUnits }),

	models.RefDoctors:         num(func(d *models.ProfileDraft) *int { return &d.Staff.Doctors }),
	models.RefNurses:          num(func(d *models.ProfileDraft) *int { return &d.Staff.Nurses }),
	models.RefSpecialists:     num(func(d *models.ProfileDraft) *int { return &d.Staff.Specialists }),
	models.RefTechnicians:     num(func(d *models.ProfileDraft) *int { return &d.Staff.Technicians }),
	models.RefSupportStaff:    num(func(d *models.ProfileDraft) *int { return &d.Staff.SupportStaff }),
	models.RefMedicalOfficers: num(func(d *models.ProfileDraft) *int { return &d.Staff.MedicalOfficers }),

	models.RefStartTime:     str(func(d *models.ProfileDraft) *string { return &d.Hours.StartTime }),
	models.RefEndTime:       str(func(d *models.ProfileDraft) *string { return &d.Hours.EndTime }),
	models.RefEmergency24x7: flag(func(d *models.ProfileDraft) *bool { return &d.Hours.Emergency24x7 }),

	models.RefAmbulanceAvail: flag(func(d *models.ProfileDraft) *bool { return &d.Ambulance.Available }),
	models.RefFleetSize:      num(func(d *models.ProfileDraft) *int { return &d.Ambulance.FleetSize }),
	models.RefResponseTime:   str(func(d *models.ProfileDraft) *string { return &d.Ambulance.ResponseTime }),
	models.RefCoverageArea:   str(func(d *models.ProfileDraft) *string { return &d.Ambulance.CoverageArea }),
}

// Lookup reports the kind of a scalar ref.
func Lookup(ref models.FieldRef) (Kind, bool) {
	a, ok := accessors[ref]
	return a.kind, ok
}

// Refs returns every addressable scalar ref, sorted by "group.key".
func Refs() []models.FieldRef {
	refs := make([]models.FieldRef, 0, len(accessors))
	for ref := range accessors {
		refs = append(refs, ref)
	}
	slices.SortFunc(refs, func(a, b models.FieldRef) int { return strings.Compare(a.String(), b.String()) })
	return refs
}

// Get reads a scalar field. Flag refs of the draft's category are resolved
// too, so validation can address capability flags uniformly.
func Get(d *models.ProfileDraft, ref models.FieldRef) (any, error) {
	if a, ok := accessors[ref]; ok {
		switch a.kind {
		case KindString:
			return *a.str(d), nil
		case KindInt:
			return *a.num(d), nil
		case KindBool:
			return *a.flag(d), nil
		}
	}
	if models.HasFlag(d.Category, ref.Group, ref.Key) {
		return d.Flag(ref.Group, ref.Key), nil
	}
	return nil, unknownRef(ref)
}

func unknownRef(ref models.FieldRef) error {
	return dErrors.New(dErrors.CodeInvalidInput, "unknown field "+ref.String())
}

// assign writes value through the accessor for ref after coercing it to the
// accessor's kind.
func assign(d *models.ProfileDraft, ref models.FieldRef, value any) error {
	a, ok := accessors[ref]
	if !ok {
		return unknownRef(ref)
	}
	switch a.kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return kindMismatch(ref, a.kind, value)
		}
		*a.str(d) = s
	case KindInt:
		n, ok := toInt(value)
		if !ok {
			return kindMismatch(ref, a.kind, value)
		}
		if n < 0 {
			return dErrors.New(dErrors.CodeInvalidInput, ref.String()+" must not be negative")
		}
		*a.num(d) = n
	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return kindMismatch(ref, a.kind, value)
		}
		*a.flag(d) = b
	}
	return nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func kindMismatch(ref models.FieldRef, want Kind, got any) error {
	return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s expects %s, got %T", ref, want, got))
}

// Env flattens a draft into nested maps keyed by group then key, for rule
// expressions. Lists appear under "lists" and document counts under "documents".
func Env(d *models.ProfileDraft) map[string]any {
	env := make(map[string]any)
	group := func(g models.Group) map[string]any {
		m, ok := env[string(g)].(map[string]any)
		if !ok {
			m = make(map[string]any)
			env[string(g)] = m
		}
		return m
	}
	for ref := range accessors {
		v, _ := Get(d, ref)
		group(ref.Group)[ref.Key] = v
	}
	for _, g := range models.FlagGroups(d.Category) {
		m := group(g)
		for _, key := range models.FlagKeys(d.Category, g) {
			m[key] = d.Flag(g, key)
		}
	}
	lists := make(map[string]any, len(d.Lists))
	for f, values := range d.Lists {
		lists[string(f)] = slices.Clone(values)
	}
	env["lists"] = lists
	env["documents"] = map[string]any{
		"uploaded": d.UploadedCount(),
		"total":    len(d.Documents),
		"missing":  len(d.MissingRequiredDocuments()),
	}
	env["category"] = string(d.Category)
	return env
}
