package models

import "onboard/pkg/platform/stringset"

// Normalize returns a copy of d shaped by its category: documents are
// reconciled with the catalog, lists are trimmed and de-duplicated, and flag
// groups carry exactly the category's keys with defaults for absent ones.
// Lists and flag groups the category does not collect are dropped.
func Normalize(d *ProfileDraft) *ProfileDraft {
	out := d.Clone()
	def := NewDefaultDraft(d.Category)

	out.Documents = ReconcileDocuments(d.Category, d.Documents)

	flags := def.Flags
	for g, keys := range flags {
		for key := range keys {
			if on, ok := d.Flags[g][key]; ok {
				keys[key] = on
			}
		}
	}
	out.Flags = flags

	lists := def.Lists
	for f := range lists {
		if stored, ok := d.Lists[f]; ok {
			lists[f] = stringset.Normalize(stored)
		}
	}
	out.Lists = lists
	return out
}
