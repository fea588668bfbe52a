// Package fields owns the in-progress draft of one wizard session.
//
// Every mutation produces a new snapshot that shares unchanged groups, maps and
// slices with the previous one. Snapshots returned by Snapshot are therefore
// immutable: holders must not write through them.
package fields

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"onboard/internal/profile/models"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/stringset"
)

// ErrFrozen is returned by every mutation once the draft has been submitted.
var ErrFrozen = dErrors.New(dErrors.CodeConflict, "profile is submitted and can no longer change")

// Store is the Field State Store. It is safe for concurrent use; uploads
// update slots from their own goroutines.
type Store struct {
	mu      sync.RWMutex
	draft   *models.ProfileDraft
	version uint64
	frozen  bool
}

// NewStore takes a private copy of draft.
func NewStore(draft *models.ProfileDraft) *Store {
	return &Store{draft: draft.Clone()}
}

// Snapshot returns the current draft. Callers must treat it as read-only.
func (s *Store) Snapshot() *models.ProfileDraft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft
}

// Category returns the category of the draft. It never changes for a store.
func (s *Store) Category() models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft.Category
}

// Version increments once per applied change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Replace swaps the whole draft, e.g. after a reload. A frozen store keeps
// its draft.
func (s *Store) Replace(draft *models.ProfileDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return
	}
	s.draft = draft.Clone()
	s.version++
}

// MarkCompleted stamps the draft as submitted.
func (s *Store) MarkCompleted(at time.Time) {
	_ = s.update(func(next *models.ProfileDraft) error {
		next.CompletedAt = &at
		return nil
	})
}

// Freeze makes the store read-only.
func (s *Store) Freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = true
}

func (s *Store) Frozen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frozen
}

// update applies fn to a shallow copy of the current draft and publishes the
// copy when fn succeeds. fn must copy any map or slice it modifies.
func (s *Store) update(fn func(next *models.ProfileDraft) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return ErrFrozen
	}
	next := *s.draft
	if err := fn(&next); err != nil {
		return err
	}
	s.draft = &next
	s.version++
	return nil
}

// SetField replaces one scalar leaf. Values are checked against the field kind:
// string, int (non-negative) or bool.
func (s *Store) SetField(ref models.FieldRef, value any) error {
	if _, ok := Lookup(ref); !ok {
		if b, isBool := value.(bool); isBool && models.HasFlag(s.Category(), ref.Group, ref.Key) {
			return s.SetFlag(ref.Group, ref.Key, b)
		}
		return unknownRef(ref)
	}
	return s.update(func(next *models.ProfileDraft) error {
		return assign(next, ref, value)
	})
}

// SetFlag sets a capability flag. Keys are closed per category.
func (s *Store) SetFlag(group models.Group, key string, on bool) error {
	return s.update(func(next *models.ProfileDraft) error {
		if !models.HasFlag(next.Category, group, key) {
			return dErrors.New(dErrors.CodeInvalidInput, "unknown capability flag "+models.FlagRef(group, key).String())
		}
		flags := maps.Clone(next.Flags)
		if flags == nil {
			flags = make(map[models.Group]map[string]bool)
		}
		inner := maps.Clone(flags[group])
		if inner == nil {
			inner = make(map[string]bool)
		}
		inner[key] = on
		flags[group] = inner
		next.Flags = flags
		return nil
	})
}

// ToggleArrayMember adds value to list when present is true and removes it
// otherwise. Both directions are idempotent.
func (s *Store) ToggleArrayMember(list models.ListField, value string, present bool) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "list value must not be empty")
	}
	return s.update(func(next *models.ProfileDraft) error {
		if !models.HasList(next.Category, list) {
			return dErrors.New(dErrors.CodeInvalidInput, "unknown list "+string(list))
		}
		current := next.Lists[list]
		var updated []string
		if present {
			updated = stringset.With(current, value)
		} else {
			updated = stringset.Without(current, value)
		}
		lists := maps.Clone(next.Lists)
		if lists == nil {
			lists = make(map[models.ListField][]string)
		}
		if updated == nil {
			updated = []string{}
		}
		lists[list] = updated
		next.Lists = lists
		return nil
	})
}

// SetList replaces a whole list with its normalized members.
func (s *Store) SetList(list models.ListField, values []string) error {
	return s.update(func(next *models.ProfileDraft) error {
		if !models.HasList(next.Category, list) {
			return dErrors.New(dErrors.CodeInvalidInput, "unknown list "+string(list))
		}
		lists := maps.Clone(next.Lists)
		if lists == nil {
			lists = make(map[models.ListField][]string)
		}
		lists[list] = stringset.Normalize(values)
		next.Lists = lists
		return nil
	})
}

// UpdateSlot applies fn to a copy of one document slot. The change is
// discarded when fn fails or leaves the slot violating its invariants; the
// type code cannot be changed.
func (s *Store) UpdateSlot(t models.DocumentType, fn func(slot *models.DocumentSlot) error) (models.DocumentSlot, error) {
	var result models.DocumentSlot
	err := s.update(func(next *models.ProfileDraft) error {
		idx := slices.IndexFunc(next.Documents, func(d models.DocumentSlot) bool { return d.Type == t })
		if idx < 0 {
			return dErrors.New(dErrors.CodeNotFound, "unknown document type "+string(t))
		}
		slot := next.Documents[idx]
		if err := fn(&slot); err != nil {
			return err
		}
		if slot.Type != t {
			return dErrors.New(dErrors.CodeInvariantViolation, "document type code is immutable")
		}
		if err := slot.Validate(); err != nil {
			return err
		}
		docs := slices.Clone(next.Documents)
		docs[idx] = slot
		next.Documents = docs
		result = slot
		return nil
	})
	return result, err
}

// Slot returns the current state of one slot.
func (s *Store) Slot(t models.DocumentType) (models.DocumentSlot, bool) {
	return s.Snapshot().Slot(t)
}
