package validation

import "onboard/internal/profile/models"

// Completion summarizes how much of a draft meets its requirements. Every
// required field and every required document counts as one item; rule
// violations do not count but keep OK false.
type Completion struct {
	Result
	Satisfied int
	Total     int
}

// Percent is Satisfied/Total rounded down to a whole percent.
func (c Completion) Percent() int {
	if c.Total == 0 {
		return 100
	}
	return c.Satisfied * 100 / c.Total
}

// Completion validates every step of d and counts the items it satisfies.
func (e *Engine) Completion(d *models.ProfileDraft) Completion {
	total := 0
	for _, step := range models.Steps(d.Category) {
		total += len(step.Required)
		if step.Documents {
			for _, entry := range models.Catalog(d.Category) {
				if entry.Required {
					total++
				}
			}
		}
	}
	res := e.ValidateAll(d)
	return Completion{Result: res, Satisfied: total - len(res.Missing), Total: total}
}
