// Package store persists facility profiles: drafts while the wizard is in
// progress and the final profile once completion is accepted.
package store

import (
	"context"
	"fmt"
	"sync"

	"onboard/internal/profile/models"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

// Memory keeps drafts and completed profiles in process. It backs tests and
// local runs without Redis or Postgres.
type Memory struct {
	mu       sync.RWMutex
	drafts   map[id.OrgID]*models.ProfileDraft
	profiles map[id.OrgID]*models.ProfileDraft
}

func NewMemory() *Memory {
	return &Memory{
		drafts:   make(map[id.OrgID]*models.ProfileDraft),
		profiles: make(map[id.OrgID]*models.ProfileDraft),
	}
}

func (m *Memory) LoadDraft(_ context.Context, orgID id.OrgID) (*models.ProfileDraft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drafts[orgID]
	if !ok {
		return nil, fmt.Errorf("draft %s: %w", orgID, sentinel.ErrNotFound)
	}
	return d.Clone(), nil
}

func (m *Memory) SaveDraft(_ context.Context, orgID id.OrgID, d *models.ProfileDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[orgID] = d.Clone()
	return nil
}

// UpdateDraft runs fn on a copy of the stored draft (nil when there is none)
// and stores its result, holding the store lock throughout. fn must not call
// back into the store.
func (m *Memory) UpdateDraft(_ context.Context, orgID id.OrgID, fn func(cur *models.ProfileDraft) (*models.ProfileDraft, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cur *models.ProfileDraft
	if d, ok := m.drafts[orgID]; ok {
		cur = d.Clone()
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	m.drafts[orgID] = next.Clone()
	return nil
}

func (m *Memory) DeleteDraft(_ context.Context, orgID id.OrgID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, orgID)
	return nil
}

func (m *Memory) LoadProfile(_ context.Context, orgID id.OrgID) (*models.ProfileDraft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.profiles[orgID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", orgID, sentinel.ErrNotFound)
	}
	return d.Clone(), nil
}

// SaveProfile stores a completed profile. Incomplete drafts are refused.
func (m *Memory) SaveProfile(_ context.Context, orgID id.OrgID, d *models.ProfileDraft) error {
	if !d.IsComplete() {
		return fmt.Errorf("profile %s: %w", orgID, sentinel.ErrInvalidState)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[orgID] = d.Clone()
	return nil
}
