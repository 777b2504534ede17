// Package reconcile merges conflicting multi-document extraction data into a
// single reviewable field model. For every allowlisted field the extraction
// with the strictly highest confidence across documents wins; ties keep the
// earliest-ingested document's value. Winners are then type-coerced and the
// resulting review fields stay owned by the Reconciler for the life of the
// session.
package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/TicketWorks/ticket-review-backend/logger"
	"github.com/TicketWorks/ticket-review-backend/types"
	"go.uber.org/zap"
)

var (
	// ErrNoFieldsConfigured means reconciliation was not attempted: the
	// allowlist was empty.
	ErrNoFieldsConfigured = errors.New("no fields configured for extraction")
	// ErrNoExtractedData means reconciliation ran but no document produced a
	// usable value for any allowlisted field.
	ErrNoExtractedData = errors.New("no valid extracted data found across documents")
)

// Warning records a non-fatal per-document parse failure. Reconciliation
// continues with the remaining documents.
type Warning struct {
	DocumentID   string `json:"documentId"`
	DocumentName string `json:"documentName"`
	Message      string `json:"message"`
}

// payloadField mirrors one field of a raw OCR payload. ConfidenceScore is a
// pointer so a missing or malformed confidence can be told apart from zero.
type payloadField struct {
	Value           interface{} `json:"value"`
	ConfidenceScore *float64    `json:"confidence_score"`
	Rationale       string      `json:"ai_reason"`
}

// Reconciler owns the reviewable field list for one session.
type Reconciler struct {
	log *zap.SugaredLogger

	mu          sync.Mutex
	fields      []types.ReviewField
	warnings    []Warning
	enumOptions map[string][]types.Option
}

// New creates an empty reconciler.
func New() *Reconciler {
	return &Reconciler{
		log: logger.GetLogger().Named("field_reconciler"),
	}
}

// Reconcile runs the best-confidence merge over the documents and builds the
// review field list. It returns the court resolution hints derived from the
// winning values. The allowlist ordering determines field ordering.
func (r *Reconciler) Reconcile(
	documents []types.Document,
	allowlist []string,
	fieldTypes map[string]types.FieldType,
	fieldLabels map[string]string,
	enumOptions map[string][]types.Option,
) (types.ResolutionHints, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fields = nil
	r.warnings = nil
	r.enumOptions = enumOptions

	if len(allowlist) == 0 {
		return types.ResolutionHints{}, ErrNoFieldsConfigured
	}

	allowed := make(map[string]bool, len(allowlist))
	for _, name := range allowlist {
		allowed[name] = true
	}

	// Single pass over (document x field); strictly-greater confidence
	// replaces the current holder, so the first-seen document wins ties.
	best := make(map[string]types.RawExtraction)
	for _, doc := range documents {
		if len(doc.OCRPayload) == 0 {
			continue
		}

		var payload map[string]json.RawMessage
		if err := json.Unmarshal(doc.OCRPayload, &payload); err != nil {
			r.log.Warnw("Skipping document with malformed extraction payload",
				"documentId", doc.ID, "document", doc.DisplayName, "error", err)
			r.warnings = append(r.warnings, Warning{
				DocumentID:   doc.ID,
				DocumentName: doc.DisplayName,
				Message:      fmt.Sprintf("Invalid extraction data in file %s.", doc.DisplayName),
			})
			continue
		}

		for name, rawField := range payload {
			if !allowed[name] {
				continue
			}
			var f payloadField
			if err := json.Unmarshal(rawField, &f); err != nil {
				continue
			}
			if f.Value == nil || f.ConfidenceScore == nil {
				continue
			}
			current, exists := best[name]
			if !exists || *f.ConfidenceScore > current.ConfidenceScore {
				best[name] = types.RawExtraction{
					Value:           f.Value,
					ConfidenceScore: *f.ConfidenceScore,
					Rationale:       f.Rationale,
				}
			}
		}
	}

	if len(best) == 0 {
		return types.ResolutionHints{}, ErrNoExtractedData
	}

	for i, name := range allowlist {
		winner, ok := best[name]
		if !ok {
			continue
		}

		raw := Stringify(winner.Value)
		declaredType := fieldTypes[name]
		if declaredType == "" {
			declaredType = types.FieldTypeText
		}

		extracted := raw
		current := raw
		switch declaredType {
		case types.FieldTypeDate:
			// The audit baseline keeps the normalized form for dates.
			current = NormalizeDate(raw)
			extracted = current
		case types.FieldTypeEnumerated:
			if value, matched := MatchEnumOption(raw, enumOptions[name]); matched {
				current = value
			} else {
				// An unmatched label never becomes the current value; the
				// raw extraction survives only in the audit baseline.
				current = ""
			}
		}

		label := fieldLabels[name]
		if label == "" {
			label = HumanizeLabel(name)
		}

		r.fields = append(r.fields, types.ReviewField{
			ID:             fmt.Sprintf("%s-%d", name, i),
			FieldName:      name,
			Label:          label,
			ExtractedValue: extracted,
			CurrentValue:   current,
			IsAccurate:     true,
			DeclaredType:   declaredType,
			Rationale:      winner.Rationale,
			Options:        enumOptions[name],
		})
	}

	hints := types.ResolutionHints{}
	if w, ok := best[types.FieldTicketCourt]; ok {
		hints.Name = Stringify(w.Value)
	}
	if w, ok := best[types.FieldCourtPhoneNumber]; ok {
		hints.Phone = Stringify(w.Value)
	}
	if w, ok := best[types.FieldTicketCounty]; ok {
		hints.County = Stringify(w.Value)
	}
	return hints, nil
}

// SetFieldValue updates a field's current value and recomputes IsAccurate.
// It reports whether the edited field is court-linked, in which case the
// caller must clear any active court selection.
func (r *Reconciler) SetFieldValue(fieldID, newValue string) (courtLinked bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.fields {
		if r.fields[i].ID != fieldID {
			continue
		}
		r.fields[i].CurrentValue = newValue
		r.fields[i].IsAccurate = r.isAccurate(&r.fields[i])
		return types.CourtLinkedFields[r.fields[i].FieldName], nil
	}
	return false, fmt.Errorf("unknown review field: %s", fieldID)
}

// SetReviewerNote attaches a reviewer note to a field.
func (r *Reconciler) SetReviewerNote(fieldID, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.fields {
		if r.fields[i].ID == fieldID {
			r.fields[i].ReviewerNote = note
			return nil
		}
	}
	return fmt.Errorf("unknown review field: %s", fieldID)
}

// isAccurate applies the matching rule: enumerated fields compare the selected
// option's display label against the extracted baseline, case- and
// whitespace-insensitively; everything else compares verbatim.
func (r *Reconciler) isAccurate(f *types.ReviewField) bool {
	if f.DeclaredType == types.FieldTypeEnumerated {
		for _, opt := range f.Options {
			if opt.Value == f.CurrentValue {
				return equalFoldTrimmed(opt.Label, f.ExtractedValue)
			}
		}
		return false
	}
	return f.CurrentValue == f.ExtractedValue
}

// ApplyCourtFields writes the resolved court's values into the linked review
// fields. State arrives already expanded to its display name.
func (r *Reconciler) ApplyCourtFields(v types.CourtFieldValues) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updates := map[string]string{
		types.FieldTicketCourt:      v.Name,
		types.FieldTicketCounty:     v.County,
		types.FieldCourtPhoneNumber: v.Phone,
		types.FieldTicketCity:       v.City,
		types.FieldTicketState:      v.StateName,
	}
	for i := range r.fields {
		if value, ok := updates[r.fields[i].FieldName]; ok {
			r.fields[i].CurrentValue = value
			r.fields[i].IsAccurate = true
		}
	}
}

// ClearCourtFields empties every court-linked field, restoring the
// pre-selection state.
func (r *Reconciler) ClearCourtFields() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.fields {
		if types.CourtLinkedFields[r.fields[i].FieldName] {
			r.fields[i].CurrentValue = ""
			r.fields[i].IsAccurate = r.isAccurate(&r.fields[i])
		}
	}
}

// Fields returns a snapshot of the review field list.
func (r *Reconciler) Fields() []types.ReviewField {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.ReviewField, len(r.fields))
	copy(out, r.fields)
	return out
}

// Field returns the current state of a single field by machine name.
func (r *Reconciler) Field(fieldName string) (types.ReviewField, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range r.fields {
		if f.FieldName == fieldName {
			return f, true
		}
	}
	return types.ReviewField{}, false
}

// Warnings returns the non-fatal per-document parse warnings.
func (r *Reconciler) Warnings() []Warning {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Warning, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// FinalValues returns the field name -> current value map handed to the form.
func (r *Reconciler) FinalValues() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	values := make(map[string]string, len(r.fields))
	for _, f := range r.fields {
		values[f.FieldName] = f.CurrentValue
	}
	return values
}

// AuditEntries builds the per-field audit trail for persistence after the
// final record is created.
func (r *Reconciler) AuditEntries() []types.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]types.AuditEntry, 0, len(r.fields))
	for _, f := range r.fields {
		entries = append(entries, types.AuditEntry{
			FieldName:      f.FieldName,
			ExtractedValue: f.ExtractedValue,
			IsAccurate:     f.IsAccurate,
			ReviewerNote:   f.ReviewerNote,
			ExpectedValue:  f.CurrentValue,
			Rationale:      f.Rationale,
		})
	}
	return entries
}

func equalFoldTrimmed(a, b string) bool {
	return foldTrim(a) == foldTrim(b)
}
