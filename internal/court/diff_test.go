package court

import (
	"testing"

	"github.com/TicketWorks/ticket-review-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffAgainstDraft(t *testing.T) {
	existing := metroCourt()

	t.Run("identical records yield no changes", func(t *testing.T) {
		assert.Empty(t, DiffAgainstDraft(existing, existing))
	})

	t.Run("whitespace-only differences are ignored", func(t *testing.T) {
		draft := existing
		draft.Name = "  Metro County Court "
		assert.Empty(t, DiffAgainstDraft(existing, draft))
	})

	t.Run("changed fields are listed with both sides", func(t *testing.T) {
		draft := existing
		draft.Phone = "555-0911"
		draft.City = "New Metroville"

		changes := DiffAgainstDraft(existing, draft)
		require.Len(t, changes, 2)
		assert.Equal(t, types.FieldChange{Field: "Phone", OldValue: "555-0100", NewValue: "555-0911"}, changes[0])
		assert.Equal(t, types.FieldChange{Field: "City", OldValue: "Metroville", NewValue: "New Metroville"}, changes[1])
	})

	t.Run("empty values display as the (empty) literal", func(t *testing.T) {
		draft := existing
		draft.Street = ""

		blank := existing
		blank.PostalCode = ""

		changes := DiffAgainstDraft(existing, draft)
		require.Len(t, changes, 1)
		assert.Equal(t, "(empty)", changes[0].NewValue)

		changes = DiffAgainstDraft(blank, existing)
		require.Len(t, changes, 1)
		assert.Equal(t, "ZIP Code", changes[0].Field)
		assert.Equal(t, "(empty)", changes[0].OldValue)
		assert.Equal(t, "90001", changes[0].NewValue)
	})
}
