package fields

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/profile/models"
	dErrors "onboard/pkg/domain-errors"
)

func newHospitalStore() *Store {
	return NewStore(models.NewDefaultDraft(models.CategoryHospital))
}

func TestSetField(t *testing.T) {
	s := newHospitalStore()

	require.NoError(t, s.SetField(models.RefName, "St. Mary"))
	require.NoError(t, s.SetField(models.RefTotalBeds, 120))
	require.NoError(t, s.SetField(models.RefEmergency24x7, false))

	d := s.Snapshot()
	assert.Equal(t, "St. Mary", d.Identity.Name)
	assert.Equal(t, 120, d.Capacity.TotalBeds)
	assert.False(t, d.Hours.Emergency24x7)
	assert.Equal(t, uint64(3), s.Version())
}

func TestSetField_Rejections(t *testing.T) {
	s := newHospitalStore()

	t.Run("unknown ref", func(t *testing.T) {
		err := s.SetField(models.FieldRef{Group: models.GroupIdentity, Key: "nickname"}, "x")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("wrong kind", func(t *testing.T) {
		err := s.SetField(models.RefTotalBeds, "lots")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("negative count", func(t *testing.T) {
		err := s.SetField(models.RefDepartments, -1)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("fractional json number", func(t *testing.T) {
		err := s.SetField(models.RefTotalBeds, 1.5)
		assert.Error(t, err)
	})

	assert.Zero(t, s.Version())
}

func TestSetField_CopyOnWrite(t *testing.T) {
	s := newHospitalStore()
	before := s.Snapshot()

	require.NoError(t, s.SetField(models.RefCity, "Pune"))
	after := s.Snapshot()

	assert.Empty(t, before.Location.City)
	assert.Equal(t, "Pune", after.Location.City)
	// untouched slices are shared, not copied
	assert.Same(t, &before.Documents[0], &after.Documents[0])
}

func TestSetFlag(t *testing.T) {
	s := NewStore(models.NewDefaultDraft(models.CategoryBloodBank))
	before := s.Snapshot()

	require.NoError(t, s.SetFlag(models.GroupTesting, "dnaTesting", true))
	assert.True(t, s.Snapshot().Flag(models.GroupTesting, "dnaTesting"))
	assert.False(t, before.Flag(models.GroupTesting, "dnaTesting"))

	err := s.SetFlag(models.GroupTesting, "mri", true)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	require.NoError(t, s.SetField(models.FlagRef(models.GroupTechnology, "automatedTesting"), true))
	assert.True(t, s.Snapshot().Flag(models.GroupTechnology, "automatedTesting"))
}

func TestToggleArrayMember_Idempotent(t *testing.T) {
	s := newHospitalStore()

	require.NoError(t, s.ToggleArrayMember(models.ListPaymentMethods, "cash", true))
	once := s.Snapshot().List(models.ListPaymentMethods)
	require.NoError(t, s.ToggleArrayMember(models.ListPaymentMethods, "cash", true))
	twice := s.Snapshot().List(models.ListPaymentMethods)
	assert.Equal(t, []string{"cash"}, once)
	assert.Equal(t, once, twice)

	require.NoError(t, s.ToggleArrayMember(models.ListPaymentMethods, "cash", false))
	removedOnce := s.Snapshot().List(models.ListPaymentMethods)
	require.NoError(t, s.ToggleArrayMember(models.ListPaymentMethods, "cash", false))
	removedTwice := s.Snapshot().List(models.ListPaymentMethods)
	assert.Empty(t, removedOnce)
	assert.Equal(t, removedOnce, removedTwice)
}

func TestToggleArrayMember_Rejections(t *testing.T) {
	s := NewStore(models.NewDefaultDraft(models.CategoryBloodBank))
	assert.Error(t, s.ToggleArrayMember(models.ListInsuranceAccepted, "aetna", true), "hospital-only list")
	assert.Error(t, s.ToggleArrayMember(models.ListWorkingDays, "   ", true))
}

func TestSetList_Normalizes(t *testing.T) {
	s := newHospitalStore()
	require.NoError(t, s.SetList(models.ListAccreditations, []string{" JCI", "NABH", "JCI "}))
	assert.Equal(t, []string{"JCI", "NABH"}, s.Snapshot().List(models.ListAccreditations))
}

func TestUpdateSlot(t *testing.T) {
	s := newHospitalStore()

	slot, err := s.UpdateSlot("license", func(d *models.DocumentSlot) error { return d.BeginUpload() })
	require.NoError(t, err)
	assert.Equal(t, models.UploadUploading, slot.Status)

	t.Run("invariant violation is discarded", func(t *testing.T) {
		_, err := s.UpdateSlot("license", func(d *models.DocumentSlot) error {
			d.Status = models.UploadCompleted
			return nil
		})
		require.Error(t, err)
		current, _ := s.Slot("license")
		assert.Equal(t, models.UploadUploading, current.Status)
	})

	t.Run("type code is immutable", func(t *testing.T) {
		_, err := s.UpdateSlot("license", func(d *models.DocumentSlot) error {
			d.Type = "fire"
			return nil
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("unknown slot", func(t *testing.T) {
		_, err := s.UpdateSlot("passport", func(*models.DocumentSlot) error { return nil })
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestStore_ConcurrentSlotUpdates(t *testing.T) {
	s := newHospitalStore()
	catalog := models.Catalog(models.CategoryHospital)

	var wg sync.WaitGroup
	for _, e := range catalog {
		wg.Add(1)
		go func(t models.DocumentType) {
			defer wg.Done()
			_, _ = s.UpdateSlot(t, func(d *models.DocumentSlot) error { return d.BeginUpload() })
			_, _ = s.UpdateSlot(t, func(d *models.DocumentSlot) error {
				return d.CompleteUpload("https://files/"+string(t), string(t)+".pdf")
			})
		}(e.Type)
	}
	wg.Wait()

	assert.Equal(t, len(catalog), s.Snapshot().UploadedCount())
}

func TestGetAndEnv(t *testing.T) {
	s := newHospitalStore()
	require.NoError(t, s.SetField(models.RefTotalBeds, 40))
	d := s.Snapshot()

	v, err := Get(d, models.RefTotalBeds)
	require.NoError(t, err)
	assert.Equal(t, 40, v)

	v, err = Get(d, models.FlagRef(models.GroupTechnology, "mri"))
	require.NoError(t, err)
	assert.Equal(t, false, v)

	_, err = Get(d, models.FieldRef{Group: "nope", Key: "x"})
	assert.Error(t, err)

	env := Env(d)
	capacity := env["capacity"].(map[string]any)
	assert.Equal(t, 40, capacity["totalBeds"])
	docs := env["documents"].(map[string]any)
	assert.Equal(t, 21, docs["total"])
	assert.Len(t, Refs(), len(accessors))
}

func TestFreeze(t *testing.T) {
	s := newHospitalStore()
	require.NoError(t, s.SetField(models.RefName, "St. Mary"))
	before := s.Version()

	s.Freeze()
	assert.True(t, s.Frozen())
	assert.ErrorIs(t, s.SetField(models.RefName, ""), ErrFrozen)
	assert.ErrorIs(t, s.SetFlag(models.GroupEmergencyServices, "traumaCenter", true), ErrFrozen)
	_, err := s.UpdateSlot("license", (*models.DocumentSlot).BeginUpload)
	assert.ErrorIs(t, err, ErrFrozen)

	s.Replace(models.NewDefaultDraft(models.CategoryHospital))
	assert.Equal(t, "St. Mary", s.Snapshot().Identity.Name)
	assert.Equal(t, before, s.Version())
}
