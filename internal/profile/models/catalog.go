package models

// CatalogEntry is the static description of one document slot.
type CatalogEntry struct {
	Type     DocumentType
	Title    string
	Required bool
}

var hospitalCatalog = []CatalogEntry{
	{"license", "Hospital License", true},
	{"registration", "Hospital Registration Certificate", true},
	{"accreditation", "Accreditation Certificate", true},
	{"insurance", "Medical Malpractice Insurance", true},
	{"fire", "Fire Safety Certificate", true},
	{"hygiene", "Hygiene & Sanitation Certificate", true},
	{"quality", "Quality Management Certificate", true},
	{"safety", "Patient Safety Certificate", true},
	{"infection", "Infection Control Certificate", true},
	{"emergency", "Emergency Preparedness Certificate", true},
	{"pharmacy", "Pharmacy License", true},
	{"laboratory", "Laboratory Accreditation", true},
	{"radiology", "Radiology Department License", true},
	{"bloodbank", "Blood Bank License", true},
	{"ambulance", "Ambulance Service License", true},
	{"biohazard", "Biohazard Waste Management", true},
	{"radiation", "Radiation Safety Certificate", true},
	{"cyber", "Cybersecurity Compliance", true},
	{"privacy", "HIPAA Compliance Certificate", true},
	{"disaster", "Disaster Management Plan", true},
	{"staffing", "Staff Credentialing Records", true},
}

var bloodBankCatalog = []CatalogEntry{
	{"bloodbank", "Blood Bank License", true},
	{"accreditation", "Accreditation Certificate", true},
	{"quality", "Quality Management Certificate", true},
	{"safety", "Safety Certificate", true},
	{"infection", "Infection Control Certificate", true},
	{"equipment", "Equipment Certificates", false},
	{"staff", "Staff Certifications", false},
}

// Catalog returns the document catalog of a category. The returned slice is a copy.
func Catalog(c Category) []CatalogEntry {
	switch c {
	case CategoryHospital:
		return append([]CatalogEntry(nil), hospitalCatalog...)
	case CategoryBloodBank:
		return append([]CatalogEntry(nil), bloodBankCatalog...)
	}
	return nil
}

// CatalogEntryFor looks up one type code in a category catalog.
func CatalogEntryFor(c Category, t DocumentType) (CatalogEntry, bool) {
	for _, e := range Catalog(c) {
		if e.Type == t {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

// NewDocumentSlots builds a pending slot per catalog entry.
func NewDocumentSlots(c Category) []DocumentSlot {
	catalog := Catalog(c)
	slots := make([]DocumentSlot, 0, len(catalog))
	for _, e := range catalog {
		slots = append(slots, DocumentSlot{Type: e.Type, Title: e.Title, Required: e.Required, Status: UploadPending})
	}
	return slots
}

// ReconcileDocuments maps stored slots onto the category catalog. Catalog order,
// titles and required flags win; unknown type codes are dropped; a slot with a
// remote URL is completed and every other slot starts pending, since no
// transfer survives the session that started it.
func ReconcileDocuments(c Category, stored []DocumentSlot) []DocumentSlot {
	byType := make(map[DocumentType]DocumentSlot, len(stored))
	for _, s := range stored {
		byType[s.Type] = s
	}
	slots := NewDocumentSlots(c)
	for i := range slots {
		prev, ok := byType[slots[i].Type]
		if !ok || prev.RemoteURL == "" {
			continue
		}
		slots[i].Status = UploadCompleted
		slots[i].RemoteURL = prev.RemoteURL
		slots[i].FileName = prev.FileName
	}
	return slots
}
