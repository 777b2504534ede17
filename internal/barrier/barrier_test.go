package barrier

import (
	"errors"
	"testing"

	"github.com/TicketWorks/ticket-review-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBarrier(keys ...types.FeedKey) *Barrier {
	b := New()
	for _, k := range keys {
		b.RegisterFeed(k)
	}
	return b
}

func success(payload interface{}) types.FeedOutcome {
	return types.FeedOutcome{Status: types.FeedSuccess, Payload: payload}
}

func failure(err error) types.FeedOutcome {
	return types.FeedOutcome{Status: types.FeedFailure, Err: err}
}

func TestBarrier_FiresOnlyWhenAllSettled(t *testing.T) {
	b := newTestBarrier(types.FeedCaseRecord, types.FeedDocuments, types.FeedViolationOptions)

	calls := 0
	b.OnAllSettled(func(outcomes map[types.FeedKey]types.FeedOutcome) {
		calls++
		assert.Len(t, outcomes, 3)
	})

	b.Report(types.FeedCaseRecord, success("case"))
	assert.Equal(t, 0, calls, "barrier must not fire with unresolved slots")

	b.Report(types.FeedDocuments, failure(errors.New("boom")))
	assert.Equal(t, 0, calls)

	b.Report(types.FeedViolationOptions, success(nil))
	assert.Equal(t, 1, calls, "barrier fires once everything settled")
}

func TestBarrier_RefiresOnResettlement(t *testing.T) {
	b := newTestBarrier(types.FeedCaseRecord, types.FeedDocuments)

	calls := 0
	var last map[types.FeedKey]types.FeedOutcome
	b.OnAllSettled(func(outcomes map[types.FeedKey]types.FeedOutcome) {
		calls++
		last = outcomes
	})

	b.Report(types.FeedCaseRecord, success("a"))
	b.Report(types.FeedDocuments, success("docs-1"))
	require.Equal(t, 1, calls)

	// A refreshed feed replaces its slot and re-fires the decision.
	b.Report(types.FeedDocuments, success("docs-2"))
	require.Equal(t, 2, calls)
	assert.Equal(t, "docs-2", last[types.FeedDocuments].Payload)
}

func TestBarrier_CallbackRegisteredAfterSettlement(t *testing.T) {
	b := newTestBarrier(types.FeedCaseRecord)
	b.Report(types.FeedCaseRecord, success("a"))

	calls := 0
	b.OnAllSettled(func(map[types.FeedKey]types.FeedOutcome) { calls++ })
	assert.Equal(t, 1, calls, "late registration fires immediately when settled")
}

func TestBarrier_AnyReportOrder(t *testing.T) {
	keys := []types.FeedKey{
		types.FeedCaseRecord, types.FeedDocuments,
		types.FeedViolationOptions, types.FeedAccidentOptions,
	}
	perms := [][]int{
		{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1},
	}

	for _, perm := range perms {
		b := newTestBarrier(keys...)
		calls := 0
		b.OnAllSettled(func(map[types.FeedKey]types.FeedOutcome) { calls++ })

		for i, idx := range perm {
			b.Report(keys[idx], success(i))
			if i < len(perm)-1 {
				require.Equal(t, 0, calls, "fired before all slots settled")
			}
		}
		require.Equal(t, 1, calls, "must fire exactly once per full settlement")
	}
}

func TestBarrier_UnsettledReportIgnored(t *testing.T) {
	b := newTestBarrier(types.FeedCaseRecord)

	calls := 0
	b.OnAllSettled(func(map[types.FeedKey]types.FeedOutcome) { calls++ })

	b.Report(types.FeedCaseRecord, types.FeedOutcome{Status: types.FeedUnresolved})
	assert.Equal(t, 0, calls)
	assert.Equal(t, types.FeedUnresolved, b.Outcome(types.FeedCaseRecord).Status)
}

func TestBarrier_FailedAndOutcome(t *testing.T) {
	b := newTestBarrier(types.FeedCaseRecord, types.FeedDocuments)
	assert.False(t, b.Failed())

	b.Report(types.FeedCaseRecord, failure(errors.New("down")))
	assert.True(t, b.Failed())
	assert.Equal(t, types.FeedFailure, b.Outcome(types.FeedCaseRecord).Status)
	assert.Equal(t, types.FeedUnresolved, b.Outcome(types.FeedDocuments).Status)

	// An unknown key reads as unresolved rather than panicking.
	assert.Equal(t, types.FeedUnresolved, b.Outcome(types.FeedKey("unknown")).Status)
}

func TestBarrier_RegisterExistingKeyKeepsOutcome(t *testing.T) {
	b := newTestBarrier(types.FeedCaseRecord)
	b.Report(types.FeedCaseRecord, success("kept"))

	b.RegisterFeed(types.FeedCaseRecord)
	assert.Equal(t, "kept", b.Outcome(types.FeedCaseRecord).Payload)
}
