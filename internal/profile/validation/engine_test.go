package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/profile/fields"
	"onboard/internal/profile/models"
)

func completeHospital(t *testing.T) *fields.Store {
	t.Helper()
	s := fields.NewStore(models.NewDefaultDraft(models.CategoryHospital))
	for ref, v := range map[models.FieldRef]any{
		models.RefName:             "St. Mary General",
		models.RefOrgType:          "general",
		models.RefLicense:          "LIC-42",
		models.RefPhone:            "+1-555-0100",
		models.RefEmergencyContact: "Dr. Rao",
		models.RefStreet:           "1 Main St",
		models.RefCity:             "Springfield",
		models.RefState:            "IL",
		models.RefDescription:      "Regional hospital",
		models.RefTotalBeds:        200,
		models.RefDepartments:      12,
	} {
		require.NoError(t, s.SetField(ref, v))
	}
	return s
}

func uploadAll(t *testing.T, s *fields.Store, skip ...models.DocumentType) {
	t.Helper()
	skipped := map[models.DocumentType]bool{}
	for _, k := range skip {
		skipped[k] = true
	}
	for _, slot := range s.Snapshot().Documents {
		if skipped[slot.Type] {
			continue
		}
		_, err := s.UpdateSlot(slot.Type, func(d *models.DocumentSlot) error {
			if err := d.BeginUpload(); err != nil {
				return err
			}
			return d.CompleteUpload("https://files/"+string(d.Type), string(d.Type)+".pdf")
		})
		require.NoError(t, err)
	}
}

func TestValidateStep_EmptyHospitalName(t *testing.T) {
	s := completeHospital(t)
	require.NoError(t, s.SetField(models.RefName, ""))

	res := ValidateStep(1, s.Snapshot())

	assert.False(t, res.OK)
	assert.Equal(t, []models.FieldRef{models.RefName}, res.Missing)
	var verr *models.ValidationError
	require.ErrorAs(t, res.Err(1), &verr)
	assert.Equal(t, 1, verr.Step)
}

func TestValidateStep_FailsIffARequiredFieldIsEmpty(t *testing.T) {
	for _, category := range []models.Category{models.CategoryHospital, models.CategoryBloodBank} {
		for _, step := range models.Steps(category) {
			for _, req := range step.Required {
				t.Run(string(category)+"/"+req.Ref.String(), func(t *testing.T) {
					s := fields.NewStore(models.NewDefaultDraft(category))
					for _, other := range step.Required {
						if other.Ref == req.Ref {
							continue
						}
						require.NoError(t, s.SetField(other.Ref, filled(other)))
					}

					res := ValidateStep(step.ID, s.Snapshot())
					assert.False(t, res.OK)
					assert.Equal(t, []models.FieldRef{req.Ref}, res.Missing)

					require.NoError(t, s.SetField(req.Ref, filled(req)))
					assert.True(t, ValidateStep(step.ID, s.Snapshot()).OK)
				})
			}
		}
	}
}

func filled(req models.Requirement) any {
	if req.Check == models.CheckPositive {
		return 1
	}
	return "x"
}

func TestValidateStep_WhitespaceIsEmpty(t *testing.T) {
	s := completeHospital(t)
	require.NoError(t, s.SetField(models.RefCity, "   "))
	res := ValidateStep(2, s.Snapshot())
	assert.Equal(t, []models.FieldRef{models.RefCity}, res.Missing)
}

func TestValidateStep_OptionalStepsAlwaysPass(t *testing.T) {
	empty := models.NewDefaultDraft(models.CategoryHospital)
	assert.True(t, ValidateStep(4, empty).OK)
	assert.True(t, ValidateStep(5, empty).OK)

	bank := models.NewDefaultDraft(models.CategoryBloodBank)
	assert.True(t, ValidateStep(4, bank).OK)
	assert.True(t, ValidateStep(5, bank).OK)
}

func TestValidateStep_Documents(t *testing.T) {
	t.Run("one missing required document", func(t *testing.T) {
		s := completeHospital(t)
		uploadAll(t, s, "staffing")

		res := ValidateStep(6, s.Snapshot())
		assert.False(t, res.OK)
		assert.Equal(t, []models.FieldRef{models.DocumentRef("staffing")}, res.Missing)
		assert.Equal(t, 20, s.Snapshot().UploadedCount())
	})

	t.Run("optional slots do not block", func(t *testing.T) {
		s := fields.NewStore(models.NewDefaultDraft(models.CategoryBloodBank))
		uploadAll(t, s, "equipment", "staff")
		assert.True(t, ValidateStep(6, s.Snapshot()).OK)
	})

	t.Run("uploading is not uploaded", func(t *testing.T) {
		s := fields.NewStore(models.NewDefaultDraft(models.CategoryBloodBank))
		uploadAll(t, s, "bloodbank")
		_, err := s.UpdateSlot("bloodbank", func(d *models.DocumentSlot) error { return d.BeginUpload() })
		require.NoError(t, err)
		assert.False(t, ValidateStep(6, s.Snapshot()).OK)
	})
}

func TestValidateStep_UnknownStep(t *testing.T) {
	res := ValidateStep(7, models.NewDefaultDraft(models.CategoryHospital))
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Violations)
}

func TestValidateStep_DoesNotMutate(t *testing.T) {
	s := completeHospital(t)
	d := s.Snapshot()
	clone := d.Clone()
	_ = Default().ValidateAll(d)
	assert.Equal(t, clone, d)
}

func TestValidateAllAndFirstInvalid(t *testing.T) {
	s := completeHospital(t)
	uploadAll(t, s)
	e := Default()
	assert.True(t, e.ValidateAll(s.Snapshot()).OK)

	require.NoError(t, s.SetField(models.RefState, ""))
	step, res := e.FirstInvalid(s.Snapshot(), 1, 6)
	assert.Equal(t, 2, step)
	assert.Equal(t, []models.FieldRef{models.RefState}, res.Missing)

	step, _ = e.FirstInvalid(s.Snapshot(), 3, 6)
	assert.Zero(t, step)
}

func TestRules(t *testing.T) {
	e, err := New(WithRules(
		Rule{Name: "icu beds within total", Category: models.CategoryHospital, Step: 3, Expression: "capacity.icuBeds <= capacity.totalBeds"},
		Rule{Name: "some working day", Step: 5, Expression: "len(lists.workingDays) > 0"},
	))
	require.NoError(t, err)

	s := completeHospital(t)
	require.NoError(t, s.SetField(models.RefICUBeds, 500))

	res := e.ValidateStep(3, s.Snapshot())
	assert.False(t, res.OK)
	assert.Empty(t, res.Missing)
	assert.Equal(t, []string{"icu beds within total"}, res.Violations)

	require.NoError(t, s.SetField(models.RefICUBeds, 20))
	assert.True(t, e.ValidateStep(3, s.Snapshot()).OK)

	assert.False(t, e.ValidateStep(5, s.Snapshot()).OK)
	require.NoError(t, s.ToggleArrayMember(models.ListWorkingDays, "monday", true))
	assert.True(t, e.ValidateStep(5, s.Snapshot()).OK)
}

func TestRules_CompileErrors(t *testing.T) {
	_, err := New(WithRules(Rule{Name: "broken", Step: 1, Expression: "capacity.totalBeds >"}))
	assert.Error(t, err)

	_, err = New(WithRules(Rule{Name: "", Step: 1, Expression: "true"}))
	assert.Error(t, err)
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`rules:
  - name: icu-within-total
    category: hospital
    step: 3
    expression: capacity.icuBeds <= capacity.totalBeds
`), 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, models.CategoryHospital, rules[0].Category)
	assert.Equal(t, 3, rules[0].Step)

	_, err = New(WithRules(rules...))
	require.NoError(t, err)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCompletion(t *testing.T) {
	d := models.NewDefaultDraft(models.CategoryBloodBank)
	empty := Default().Completion(d)
	assert.False(t, empty.OK)
	assert.Equal(t, 0, empty.Satisfied)
	assert.Equal(t, len(empty.Missing), empty.Total)
	assert.Equal(t, 0, empty.Percent())

	d.Identity.Name = "City Blood Bank"
	d.Identity.Phone = "+1-555-0101"
	half := Default().Completion(d)
	assert.Equal(t, 2, half.Satisfied)
	assert.Equal(t, half.Total-2, len(half.Missing))
	assert.Equal(t, 200/half.Total, half.Percent())

	assert.Equal(t, 100, Completion{}.Percent())
}
