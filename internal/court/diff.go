package court

import (
	"strings"

	"github.com/TicketWorks/ticket-review-backend/types"
)

// emptyDisplay is the literal shown for empty values in the conflict view.
const emptyDisplay = "(empty)"

// DiffAgainstDraft compares the duplicate catalog record with the draft over
// the fixed set of comparable fields, returning one change row per field
// whose trimmed values differ. Old is the catalog side, New the draft side.
func DiffAgainstDraft(existing, draft types.Court) []types.FieldChange {
	compared := []struct {
		field    string
		existing string
		draft    string
	}{
		{"Name", existing.Name, draft.Name},
		{"Phone", existing.Phone, draft.Phone},
		{"County", existing.County, draft.County},
		{"Street", existing.Street, draft.Street},
		{"City", existing.City, draft.City},
		{"State", existing.StateCode, draft.StateCode},
		{"ZIP Code", existing.PostalCode, draft.PostalCode},
	}

	var changes []types.FieldChange
	for _, c := range compared {
		oldVal := strings.TrimSpace(c.existing)
		newVal := strings.TrimSpace(c.draft)
		if oldVal == newVal {
			continue
		}
		changes = append(changes, types.FieldChange{
			Field:    c.field,
			OldValue: displayValue(oldVal),
			NewValue: displayValue(newVal),
		})
	}
	return changes
}

func displayValue(v string) string {
	if v == "" {
		return emptyDisplay
	}
	return v
}
