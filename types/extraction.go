package types

import "encoding/json"

// FieldType declares how a reconciled field's value is coerced and compared.
type FieldType string

const (
	FieldTypeDate       FieldType = "date"
	FieldTypeEnumerated FieldType = "enumerated"
	FieldTypeNumeric    FieldType = "numeric"
	FieldTypeText       FieldType = "text"
	FieldTypeBoolean    FieldType = "boolean"
)

// Machine names of the reviewable ticket fields. The review session only
// reconciles fields in the allowlist; everything else in an OCR payload is
// ignored.
const (
	FieldAccident             = "accident"
	FieldDriversLicenseType   = "drivers_license_type"
	FieldCitationNumber       = "citation_number"
	FieldTicketState          = "ticket_state"
	FieldTicketCounty         = "ticket_county"
	FieldTicketCity           = "ticket_city"
	FieldCourtPhoneNumber     = "court_phone_number"
	FieldTicketCourt          = "ticket_court"
	FieldCourtDate            = "court_date"
	FieldViolationCategory    = "violation_category"
	FieldViolationDescription = "violation_description"
	FieldDateOfTicket         = "date_of_ticket"
)

// Form-only field keys folded into the final record alongside the reconciled
// fields.
const (
	FormFieldDriver              = "driver"
	FormFieldAgent               = "agent"
	FormFieldCourtID             = "court_id"
	FormFieldComments            = "comments"
	FormFieldTicketStatus        = "ticket_status"
	FormFieldTicketOutcome       = "ticket_outcome"
	FormFieldTicketType          = "ticket_type"
	FormFieldCoverageOpportunity = "driver_coverage_opportunity"
	FormFieldCoverageStatus      = "driver_coverage_status"
)

// TicketStatusClosed is the status value that makes the outcome field
// mandatory at commit; any other status defaults the outcome to
// TicketOutcomePending.
const (
	TicketStatusClosed   = "Ticket Closed"
	TicketOutcomePending = "Pending"
)

// DefaultFieldAllowlist is the fixed set of fields extracted from ticket scans.
func DefaultFieldAllowlist() []string {
	return []string{
		FieldAccident, FieldDriversLicenseType, FieldCitationNumber,
		FieldTicketState, FieldTicketCounty, FieldTicketCity,
		FieldCourtPhoneNumber, FieldTicketCourt, FieldCourtDate,
		FieldViolationCategory, FieldViolationDescription, FieldDateOfTicket,
	}
}

// CourtLinkedFields are the reconciled fields synchronized with the currently
// resolved court. Editing any of them invalidates the active court selection.
var CourtLinkedFields = map[string]bool{
	FieldTicketCourt:      true,
	FieldCourtPhoneNumber: true,
	FieldTicketState:      true,
	FieldTicketCounty:     true,
	FieldTicketCity:       true,
}

// RawExtraction is one field's extracted value from a single source document.
type RawExtraction struct {
	Value           interface{} `json:"value"`
	ConfidenceScore float64     `json:"confidence_score"`
	Rationale       string      `json:"ai_reason,omitempty"`
}

// Document is one scanned source file with its raw OCR payload. Immutable once
// ingested; the set of documents is fixed per review session.
type Document struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"displayName"`
	OCRPayload  json.RawMessage `json:"ocrPayload,omitempty"`
}

// Option is one entry of an enumerated field's fixed option list.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ReviewField is the reconciled, reviewer-editable unit produced by the field
// reconciler. ExtractedValue is the immutable audit baseline; CurrentValue is
// what the reviewer edits. IsAccurate is derived and recomputed on every edit.
type ReviewField struct {
	ID             string    `json:"id"`
	FieldName      string    `json:"fieldName"`
	Label          string    `json:"label"`
	ExtractedValue string    `json:"extractedValue"`
	CurrentValue   string    `json:"currentValue"`
	IsAccurate     bool      `json:"isAccurate"`
	ReviewerNote   string    `json:"reviewerNote"`
	DeclaredType   FieldType `json:"declaredType"`
	Rationale      string    `json:"rationale,omitempty"`
	Options        []Option  `json:"options,omitempty"`
}

// ResolutionHints are the reconciled values seeding the court pre-selection.
type ResolutionHints struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	County string `json:"county"`
}

// AuditEntry is one field's review outcome handed to audit persistence after
// the final record is created.
type AuditEntry struct {
	FieldName      string `json:"fieldName"`
	ExtractedValue string `json:"extractedValue"`
	IsAccurate     bool   `json:"isAccurate"`
	ReviewerNote   string `json:"reviewerNote"`
	ExpectedValue  string `json:"expectedValue"`
	Rationale      string `json:"rationale"`
}
