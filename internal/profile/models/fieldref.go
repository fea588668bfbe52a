package models

import (
	"fmt"
	"strings"
)

// Group names an attribute group of the draft.
type Group string

const (
	GroupIdentity          Group = "identity"
	GroupOrganization      Group = "organization"
	GroupLocation          Group = "location"
	GroupCapacity          Group = "capacity"
	GroupStaff             Group = "staff"
	GroupHours             Group = "operatingHours"
	GroupAmbulance         Group = "ambulanceServices"
	GroupEmergencyServices Group = "emergencyServices"
	GroupTechnology        Group = "technology"
	GroupTesting           Group = "testingCapabilities"
	GroupDocuments         Group = "documents"
)

// FieldRef addresses one leaf of the draft. The set of scalar refs is closed:
// only the Ref* values below resolve through the accessor table in package fields.
type FieldRef struct {
	Group Group
	Key   string
}

func (r FieldRef) String() string {
	return string(r.Group) + "." + r.Key
}

// MarshalText renders refs as "group.key" in JSON payloads.
func (r FieldRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *FieldRef) UnmarshalText(b []byte) error {
	group, key, ok := strings.Cut(string(b), ".")
	if !ok || group == "" || key == "" {
		return fmt.Errorf("invalid field ref %q", string(b))
	}
	r.Group, r.Key = Group(group), key
	return nil
}

// DocumentRef addresses a catalog slot in missing-item reports.
func DocumentRef(t DocumentType) FieldRef {
	return FieldRef{Group: GroupDocuments, Key: string(t)}
}

// FlagRef addresses a boolean capability flag.
func FlagRef(g Group, key string) FieldRef {
	return FieldRef{Group: g, Key: key}
}

var (
	RefName             = FieldRef{GroupIdentity, "name"}
	RefFirstName        = FieldRef{GroupIdentity, "firstName"}
	RefLastName         = FieldRef{GroupIdentity, "lastName"}
	RefPhone            = FieldRef{GroupIdentity, "phone"}
	RefEmail            = FieldRef{GroupIdentity, "email"}
	RefWebsite          = FieldRef{GroupIdentity, "website"}
	RefEmergencyContact = FieldRef{GroupIdentity, "emergencyContact"}
	RefEmergencyPhone   = FieldRef{GroupIdentity, "emergencyPhone"}
	RefAmbulancePhone   = FieldRef{GroupIdentity, "ambulancePhone"}

	RefOrgType       = FieldRef{GroupOrganization, "type"}
	RefLicense       = FieldRef{GroupOrganization, "licenseNumber"}
	RefRegistration  = FieldRef{GroupOrganization, "registrationNumber"}
	RefEstablishedOn = FieldRef{GroupOrganization, "establishmentDate"}
	RefDescription   = FieldRef{GroupOrganization, "description"}
	RefMission       = FieldRef{GroupOrganization, "mission"}
	RefVision        = FieldRef{GroupOrganization, "vision"}

	RefStreet  = FieldRef{GroupLocation, "street"}
	RefCity    = FieldRef{GroupLocation, "city"}
	RefState   = FieldRef{GroupLocation, "state"}
	RefZipCode = FieldRef{GroupLocation, "zipCode"}
	RefCountry = FieldRef{GroupLocation, "country"}

	RefTotalBeds         = FieldRef{GroupCapacity, "totalBeds"}
	RefICUBeds           = FieldRef{GroupCapacity, "icuBeds"}
	RefEmergencyBeds     = FieldRef{GroupCapacity, "emergencyBeds"}
	RefOperatingRooms    = FieldRef{GroupCapacity, "operatingRooms"}
	RefDepartments       = FieldRef{GroupCapacity, "departments"}
	RefStaffCount        = FieldRef{GroupCapacity, "staffCount"}
	RefTotalUnits        = FieldRef{GroupCapacity, "totalUnits"}
	RefRefrigeratedUnits = FieldRef{GroupCapacity, "refrigeratedUnits"}
	RefFrozenUnits       = FieldRef{GroupCapacity, "frozenUnits"}
	RefPlateletUnits     = FieldRef{GroupCapacity, "plateletUnits"}
	RefPlasmaUnits       = FieldRef{GroupCapacity, "plasmaUnits"}

	RefDoctors         = FieldRef{GroupStaff, "doctors"}
	RefNurses          = FieldRef{GroupStaff, "nurses"}
	RefSpecialists     = FieldRef{GroupStaff, "specialists"}
	RefTechnicians     = FieldRef{GroupStaff, "technicians"}
	RefSupportStaff    = FieldRef{GroupStaff, "supportStaff"}
	RefMedicalOfficers = FieldRef{GroupStaff, "medicalOfficers"}

	RefStartTime      = FieldRef{GroupHours, "startTime"}
	RefEndTime        = FieldRef{GroupHours, "endTime"}
	RefEmergency24x7  = FieldRef{GroupHours, "emergency24x7"}
	RefAmbulanceAvail = FieldRef{GroupAmbulance, "available"}
	RefFleetSize      = FieldRef{GroupAmbulance, "fleetSize"}
	RefResponseTime   = FieldRef{GroupAmbulance, "responseTime"}
	RefCoverageArea   = FieldRef{GroupAmbulance, "coverageArea"}
)

// ListField names a unique-member string list.
type ListField string

const (
	ListAccreditations     ListField = "accreditations"
	ListCertifications     ListField = "certifications"
	ListQualityStandards   ListField = "qualityStandards"
	ListSpecialties        ListField = "specialties"
	ListFacilities         ListField = "facilities"
	ListServices           ListField = "services"
	ListWorkingDays        ListField = "workingDays"
	ListPaymentMethods     ListField = "paymentMethods"
	ListInsuranceAccepted  ListField = "insuranceAccepted"
	ListAmbulanceEquipment ListField = "ambulanceEquipment"
)
