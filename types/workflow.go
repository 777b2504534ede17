package types

// SessionState is the workflow position of a review session.
type SessionState string

const (
	SessionStateLoading           SessionState = "LOADING"
	SessionStatePriorRecordExists SessionState = "PRIOR_RECORD_EXISTS"
	SessionStateNoInputAvailable  SessionState = "NO_INPUT_AVAILABLE"
	SessionStateAwaitingManual    SessionState = "AWAITING_MANUAL_TRIGGER"
	SessionStateProcessing        SessionState = "PROCESSING"
	SessionStateProcessingSummary SessionState = "PROCESSING_SUMMARY"
	SessionStateReviewing         SessionState = "REVIEWING"
	SessionStateError             SessionState = "ERROR"
	SessionStateFormEditing       SessionState = "FORM_EDITING"
	// SessionStateClosed is the terminal state after a successful record save.
	SessionStateClosed SessionState = "CLOSED"
)

// IsValidTransition checks if a state transition is allowed. Loading is
// re-enterable (prior-record bypass and summary refresh both route back
// through it).
func (s SessionState) IsValidTransition(next SessionState) bool {
	transitions := map[SessionState][]SessionState{
		SessionStateLoading: {
			SessionStatePriorRecordExists,
			SessionStateNoInputAvailable,
			SessionStateAwaitingManual,
			SessionStateReviewing,
			SessionStateError,
		},
		SessionStatePriorRecordExists: {
			SessionStateLoading,
		},
		SessionStateAwaitingManual: {
			SessionStateProcessing,
			SessionStateError,
		},
		SessionStateProcessing: {
			SessionStateProcessingSummary,
			SessionStateError,
		},
		SessionStateProcessingSummary: {
			SessionStateLoading,
		},
		SessionStateReviewing: {
			SessionStateFormEditing,
		},
		SessionStateFormEditing: {
			SessionStateReviewing,
			SessionStateClosed,
		},
		SessionStateNoInputAvailable: {},
		SessionStateError:            {},
		SessionStateClosed:           {},
	}

	allowed, exists := transitions[s]
	if !exists {
		return false
	}
	for _, a := range allowed {
		if a == next {
			return true
		}
	}
	return false
}

// String provides a string representation of the state
func (s SessionState) String() string {
	return string(s)
}

// IsValid checks if the state is a known session state
func (s SessionState) IsValid() bool {
	switch s {
	case SessionStateLoading, SessionStatePriorRecordExists, SessionStateNoInputAvailable,
		SessionStateAwaitingManual, SessionStateProcessing, SessionStateProcessingSummary,
		SessionStateReviewing, SessionStateError, SessionStateFormEditing, SessionStateClosed:
		return true
	default:
		return false
	}
}
