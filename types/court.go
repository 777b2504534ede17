package types

// Court is a catalog entity a ticket can be resolved against. ID is empty for
// a client-side draft that has not been persisted yet.
type Court struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	County     string `json:"county"`
	Street     string `json:"street"`
	City       string `json:"city"`
	StateCode  string `json:"stateCode"`
	PostalCode string `json:"postalCode"`
}

// IsIncomplete reports whether a cataloged court is missing address details
// the reviewer should fill in before relying on it.
func (c *Court) IsIncomplete() bool {
	if c == nil {
		return false
	}
	return c.Street == "" || c.PostalCode == "" || c.City == ""
}

// CourtEditorMode distinguishes editing the selected court from drafting a
// brand-new one.
type CourtEditorMode string

const (
	CourtEditorModeEdit   CourtEditorMode = "edit"
	CourtEditorModeCreate CourtEditorMode = "create"
)

// CourtSaveStatus is the outcome of persisting a court draft.
type CourtSaveStatus string

const (
	CourtSaveCreated   CourtSaveStatus = "created"
	CourtSaveUpdated   CourtSaveStatus = "updated"
	CourtSaveDuplicate CourtSaveStatus = "duplicate"
)

// CourtSaveResult is returned by the catalog for create/update attempts.
// On Duplicate, Record is unset and DuplicateRecord carries the collision.
type CourtSaveResult struct {
	Status          CourtSaveStatus `json:"status"`
	Record          *Court          `json:"record,omitempty"`
	DuplicateRecord *Court          `json:"duplicateRecord,omitempty"`
}

// CourtSearchResult is one page of catalog search results. PreselectedCourt is
// only populated for the initial hint-based lookup.
type CourtSearchResult struct {
	Courts           []Court `json:"courts"`
	PreselectedCourt *Court  `json:"preselectedCourt,omitempty"`
}

// FieldChange is one row of the duplicate-conflict diff view. Empty values are
// rendered as the literal "(empty)".
type FieldChange struct {
	Field    string `json:"field"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
}

// CourtFieldValues are the resolved court's values pushed back into the
// court-linked review fields. StateName is the expanded display name, not the
// code.
type CourtFieldValues struct {
	Name      string `json:"name"`
	County    string `json:"county"`
	Phone     string `json:"phone"`
	City      string `json:"city"`
	StateName string `json:"stateName"`
}

// StateMaps carries the state code/name conversion tables loaded from the
// reference catalog.
type StateMaps struct {
	NameToCode map[string]string `json:"nameToAbbreviation"`
	CodeToName map[string]string `json:"abbreviationToName"`
}

// StateOptions converts the maps into an option list (code as value, full
// name as label) for draft normalization.
func (m StateMaps) StateOptions() []Option {
	opts := make([]Option, 0, len(m.CodeToName))
	for code, name := range m.CodeToName {
		opts = append(opts, Option{Label: name, Value: code})
	}
	return opts
}
