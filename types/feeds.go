package types

import "time"

// FeedKey identifies one of the asynchronous subscriptions a review session
// waits on before making its routing decision.
type FeedKey string

const (
	FeedCaseRecord       FeedKey = "case_record"
	FeedDocuments        FeedKey = "documents"
	FeedViolationOptions FeedKey = "violation_category_options"
	FeedAccidentOptions  FeedKey = "accident_options"
	FeedLicenseTypeOpts  FeedKey = "drivers_license_type_options"
)

// FeedStatus is a slot's settlement status inside the readiness barrier.
type FeedStatus string

const (
	FeedUnresolved FeedStatus = "unresolved"
	FeedSuccess    FeedStatus = "success"
	FeedFailure    FeedStatus = "failure"
)

// FeedOutcome is the latest settlement of a feed. A feed may re-settle (e.g.
// after a refresh); the newest outcome replaces the previous one.
type FeedOutcome struct {
	Status  FeedStatus  `json:"status"`
	Payload interface{} `json:"payload,omitempty"`
	Err     error       `json:"-"`
}

// Settled reports whether the outcome is no longer pending.
func (o FeedOutcome) Settled() bool {
	return o.Status == FeedSuccess || o.Status == FeedFailure
}

// CaseRecord is the primary record feed payload.
type CaseRecord struct {
	CaseID              string `json:"caseId"`
	DriverRef           string `json:"driverRef"`
	LinkedTicketRef     string `json:"linkedTicketRef"`
	AgentRef            string `json:"agentRef"`
	SpecialInstructions string `json:"specialInstructions"`
	Description         string `json:"description"`
}

// CombinedComments joins the case's special instructions and description the
// way the form's comments field expects them.
func (c CaseRecord) CombinedComments() string {
	switch {
	case c.SpecialInstructions != "" && c.Description != "":
		return c.SpecialInstructions + "\n" + c.Description
	case c.SpecialInstructions != "":
		return c.SpecialInstructions
	default:
		return c.Description
	}
}

// DocumentSet is the document feed payload: the scanned files plus the field
// metadata needed to build the review model.
type DocumentSet struct {
	Documents   []Document           `json:"documents"`
	FieldLabels map[string]string    `json:"fieldLabels"`
	FieldTypes  map[string]FieldType `json:"fieldTypes"`
}

// UnprocessedSource is a file attached to the case that has not been run
// through extraction yet.
type UnprocessedSource struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// ProcessingResult is the outcome of extracting one source file on demand.
type ProcessingResult struct {
	SourceID string `json:"sourceId"`
	Name     string `json:"name"`
	Success  bool   `json:"success"`
	FileType string `json:"fileType"`
	Message  string `json:"message,omitempty"`
}

// CoverageResult is the output of the external coverage/eligibility
// computation folded into the form's initial values.
type CoverageResult struct {
	OpportunityRef     string `json:"opportunityRef"`
	CoverageStatus     string `json:"coverageStatus"`
	TypeClassification string `json:"typeClassification"`
}
