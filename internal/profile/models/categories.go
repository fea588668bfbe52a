package models

import "slices"

// categoryConfig is the static, per-category shape of a draft.
type categoryConfig struct {
	flagGroups   []Group
	flagDefaults map[Group][]flagDefault
	lists        []ListField
	defaultLists map[ListField][]string
	country      string
}

type flagDefault struct {
	key string
	on  bool
}

var weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}

var categoryConfigs = map[Category]categoryConfig{
	CategoryHospital: {
		flagGroups: []Group{GroupEmergencyServices, GroupTechnology},
		flagDefaults: map[Group][]flagDefault{
			GroupEmergencyServices: {
				{"traumaCenter", false}, {"strokeCenter", false}, {"heartCenter", false}, {"burnUnit", false},
				{"neonatalICU", false}, {"pediatricICU", false}, {"ambulanceService", false}, {"helicopterService", false},
			},
			GroupTechnology: {
				{"mri", false}, {"ctScan", false}, {"xray", false}, {"ultrasound", false},
				{"endoscopy", false}, {"laparoscopy", false}, {"roboticSurgery", false}, {"telemedicine", false},
			},
		},
		lists: []ListField{
			ListFacilities, ListServices, ListSpecialties, ListWorkingDays, ListAccreditations,
			ListCertifications, ListQualityStandards, ListPaymentMethods, ListInsuranceAccepted, ListAmbulanceEquipment,
		},
		country: "United States",
	},
	CategoryBloodBank: {
		flagGroups: []Group{GroupTesting, GroupEmergencyServices, GroupTechnology},
		flagDefaults: map[Group][]flagDefault{
			GroupTesting: {
				{"bloodGrouping", true}, {"crossMatching", true}, {"infectiousDiseaseTesting", true},
				{"compatibilityTesting", true}, {"antibodyScreening", true}, {"dnaTesting", false}, {"rareBloodTypeTesting", false},
			},
			GroupEmergencyServices: {
				{"emergencyBloodSupply", true}, {"traumaCenterSupport", true}, {"disasterResponse", true}, {"helicopterService", false},
			},
			GroupTechnology: {
				{"automatedTesting", false}, {"barcodeSystem", true}, {"inventoryManagement", true},
				{"qualityControl", true}, {"donorManagement", true}, {"bloodTracking", true},
			},
		},
		lists: []ListField{
			ListWorkingDays, ListFacilities, ListServices, ListAccreditations, ListCertifications, ListQualityStandards,
		},
		defaultLists: map[ListField][]string{ListWorkingDays: weekdays},
	},
}

// FlagGroups lists the capability flag groups of a category in display order.
func FlagGroups(c Category) []Group {
	return slices.Clone(categoryConfigs[c].flagGroups)
}

// FlagKeys lists the closed key set of a flag group.
func FlagKeys(c Category, g Group) []string {
	defs := categoryConfigs[c].flagDefaults[g]
	keys := make([]string, 0, len(defs))
	for _, d := range defs {
		keys = append(keys, d.key)
	}
	return keys
}

// HasFlag reports whether key is a capability flag of group g for category c.
func HasFlag(c Category, g Group, key string) bool {
	return slices.Contains(FlagKeys(c, g), key)
}

// ListFields lists the unique-member lists a category collects.
func ListFields(c Category) []ListField {
	return slices.Clone(categoryConfigs[c].lists)
}

// HasList reports whether f is collected for category c.
func HasList(c Category, f ListField) bool {
	return slices.Contains(categoryConfigs[c].lists, f)
}

// NewDefaultDraft builds the draft used when no profile exists remotely: the
// category catalog with every slot pending, default operating hours and the
// category's default capability flags.
func NewDefaultDraft(c Category) *ProfileDraft {
	cfg := categoryConfigs[c]
	d := &ProfileDraft{
		Category: c,
		Location: Location{Country: cfg.country},
		Hours: OperatingHours{
			StartTime:     "08:00",
			EndTime:       "20:00",
			Emergency24x7: true,
		},
		Flags:     make(map[Group]map[string]bool, len(cfg.flagGroups)),
		Lists:     make(map[ListField][]string, len(cfg.lists)),
		Documents: NewDocumentSlots(c),
	}
	for _, g := range cfg.flagGroups {
		flags := make(map[string]bool, len(cfg.flagDefaults[g]))
		for _, def := range cfg.flagDefaults[g] {
			flags[def.key] = def.on
		}
		d.Flags[g] = flags
	}
	for _, f := range cfg.lists {
		d.Lists[f] = slices.Clone(cfg.defaultLists[f])
		if d.Lists[f] == nil {
			d.Lists[f] = []string{}
		}
	}
	return d
}
