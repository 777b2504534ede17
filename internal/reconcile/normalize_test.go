package reconcile

import (
	"testing"

	"github.com/TicketWorks/ticket-review-backend/types"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{"already canonical", "2024-03-15", "2024-03-15"},
		{"us slashes", "3/15/2024", "2024-03-15"},
		{"us dashes", "3-15-2024", "2024-03-15"},
		{"padded us", "03/05/2024", "2024-03-05"},
		{"long form", "January 2, 2006", "2006-01-02"},
		{"slash iso", "2024/03/15", "2024-03-15"},
		{"unparseable passes through", "sometime next week", "sometime next week"},
		{"empty passes through", "", ""},
		{"invalid month passes through", "13/40/2024", "13/40/2024"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeDate(tc.input))
		})
	}
}

func TestHumanizeLabel(t *testing.T) {
	assert.Equal(t, "Ticket Court", HumanizeLabel("ticket_court"))
	assert.Equal(t, "Court Phone Number", HumanizeLabel("court-phone.number"))
	assert.Equal(t, "Accident", HumanizeLabel("accident"))
}

func TestMatchEnumOption(t *testing.T) {
	options := []types.Option{
		{Label: "Speeding", Value: "SPEED"},
		{Label: " Reckless Driving ", Value: "RECKLESS"},
	}

	value, ok := MatchEnumOption("speeding", options)
	assert.True(t, ok)
	assert.Equal(t, "SPEED", value)

	value, ok = MatchEnumOption("  RECKLESS driving", options)
	assert.True(t, ok)
	assert.Equal(t, "RECKLESS", value)

	_, ok = MatchEnumOption("jaywalking", options)
	assert.False(t, ok)

	_, ok = MatchEnumOption("   ", options)
	assert.False(t, ok)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "plain", Stringify("plain"))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, "42", Stringify(float64(42)))
	assert.Equal(t, "0.9", Stringify(0.9))
}
