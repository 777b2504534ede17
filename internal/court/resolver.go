// Package court resolves the reconciled court hints against the catalog and
// drives the manual resolution flow: incremental search, selection, draft
// editing, and the duplicate-conflict sub-state. The resolver owns the
// resolution state; the workflow only observes it.
package court

import (
	"context"
	"errors"
	"strings"
	"sync"

	apperrors "github.com/TicketWorks/ticket-review-backend/errors"
	"github.com/TicketWorks/ticket-review-backend/logger"
	"github.com/TicketWorks/ticket-review-backend/store"
	"github.com/TicketWorks/ticket-review-backend/types"
	"go.uber.org/zap"
)

// PageSize is the fixed catalog search page size. A full page signals more
// results may exist; a partial page signals end-of-results.
const PageSize = 10

// ErrStaleSearch marks a search whose results were superseded by a newer
// request before it returned. Callers must discard the results.
var ErrStaleSearch = errors.New("search superseded by a newer request")

// ErrNoSelection is returned when an operation requires a selected court.
var ErrNoSelection = errors.New("no court selected")

// LinkedFieldWriter receives resolved court values for write-back into the
// court-linked review fields.
type LinkedFieldWriter interface {
	ApplyCourtFields(values types.CourtFieldValues)
	ClearCourtFields()
}

// State is a snapshot of the resolver's resolution state. Duplicate is
// non-nil only while the duplicate-conflict sub-state is active.
type State struct {
	Preselected      *types.Court          `json:"preselected,omitempty"`
	SelectedID       string                `json:"selectedId,omitempty"`
	SelectionVersion uint64                `json:"selectionVersion"`
	EditorOpen       bool                  `json:"editorOpen"`
	EditorMode       types.CourtEditorMode `json:"editorMode"`
	Draft            types.Court           `json:"draft"`
	Duplicate        *types.Court          `json:"duplicate,omitempty"`
	CourtIncomplete  bool                  `json:"courtIncomplete"`
}

// Resolver is the court entity resolver for one review session.
type Resolver struct {
	log       *zap.SugaredLogger
	catalog   store.CatalogStore
	writer    LinkedFieldWriter
	stateMaps types.StateMaps

	mu               sync.Mutex
	preselected      *types.Court
	selectedID       string
	selectionVersion uint64
	editorOpen       bool
	editorMode       types.CourtEditorMode
	draft            types.Court
	duplicate        *types.Court
	searchSeq        uint64
}

// NewResolver creates a resolver bound to a catalog and a field writer.
func NewResolver(catalog store.CatalogStore, writer LinkedFieldWriter, stateMaps types.StateMaps) *Resolver {
	return &Resolver{
		log:        logger.GetLogger().Named("court_resolver"),
		catalog:    catalog,
		writer:     writer,
		stateMaps:  stateMaps,
		editorMode: types.CourtEditorModeEdit,
	}
}

// ResolveFromHints runs the single best-effort hint lookup. A returned
// candidate becomes the pre-selection and its resolvable fields are pushed
// back into the linked review fields. A nil candidate with nil error means no
// match was found.
func (r *Resolver) ResolveFromHints(ctx context.Context, hints types.ResolutionHints) (*types.Court, error) {
	result, err := r.catalog.SearchCourts(ctx, "", 0, &hints)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.FeedError, "Could not pre-select court")
	}
	if result.PreselectedCourt == nil {
		return nil, nil
	}

	r.selectCourt(*result.PreselectedCourt)
	return result.PreselectedCourt, nil
}

// Search runs one page of incremental free-text search. An empty term returns
// the default first page (browse-on-focus). Results from a request superseded
// by a newer one are discarded and ErrStaleSearch is returned:
// last-issued-request wins, not last-to-arrive.
func (r *Resolver) Search(ctx context.Context, term string, offset int) (courts []types.Court, more bool, err error) {
	r.mu.Lock()
	r.searchSeq++
	seq := r.searchSeq
	r.mu.Unlock()

	result, err := r.catalog.SearchCourts(ctx, term, offset, nil)

	r.mu.Lock()
	stale := seq != r.searchSeq
	r.mu.Unlock()
	if stale {
		return nil, false, ErrStaleSearch
	}
	if err != nil {
		return nil, false, err
	}
	return result.Courts, len(result.Courts) == PageSize, nil
}

// SelectExisting makes the given court the active selection, writes its
// resolvable fields back into the linked review fields, closes any open
// editor, and clears the duplicate-conflict state. The stored candidate is a
// fresh copy so observers keyed on the selection version always see a change.
func (r *Resolver) SelectExisting(court types.Court) {
	r.selectCourt(court)
}

// ClearSelection drops the active selection and empties the linked review
// fields (state clears to empty, not to a name).
func (r *Resolver) ClearSelection() {
	r.mu.Lock()
	r.preselected = nil
	r.selectedID = ""
	r.selectionVersion++
	r.mu.Unlock()

	r.writer.ClearCourtFields()
}

// InvalidateSelection drops the selection ids without touching the linked
// fields. Used when the reviewer edits a linked field by hand: the previous
// match no longer applies but the edited values must survive.
func (r *Resolver) InvalidateSelection() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.preselected = nil
	r.selectedID = ""
	r.selectionVersion++
}

// OpenCreateDraft enters create mode, seeding the draft from the linked
// review fields' current values. The state hint is normalized to a code; both
// the code and display-name forms are tried, and unmatched input yields no
// default.
func (r *Resolver) OpenCreateDraft(name, phone, county, city, stateHint string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.preselected = nil
	r.selectedID = ""
	r.selectionVersion++
	r.editorMode = types.CourtEditorModeCreate
	r.editorOpen = true
	r.duplicate = nil
	r.draft = types.Court{
		Name:      name,
		Phone:     phone,
		County:    county,
		City:      city,
		StateCode: r.normalizeStateToCode(stateHint),
	}
}

// OpenEditDraft enters edit mode with a shallow copy of the pre-selected
// court as the draft.
func (r *Resolver) OpenEditDraft() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.preselected == nil {
		return ErrNoSelection
	}
	r.editorMode = types.CourtEditorModeEdit
	r.editorOpen = true
	r.duplicate = nil
	r.draft = *r.preselected
	return nil
}

// UpdateDraft replaces the draft with the reviewer's edits while the editor
// is open.
func (r *Resolver) UpdateDraft(draft types.Court) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.editorOpen {
		return
	}
	// Identity is never taken from the form.
	draft.ID = r.draft.ID
	r.draft = draft
}

// CloseEditor discards the draft and leaves any duplicate-conflict state.
func (r *Resolver) CloseEditor() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.editorOpen = false
	r.draft = types.Court{}
	r.duplicate = nil
}

// Save validates and persists the draft. On a duplicate collision the
// conflict sub-state is entered without closing the editor; on success the
// saved record becomes the selection.
func (r *Resolver) Save(ctx context.Context) (types.CourtSaveResult, error) {
	r.mu.Lock()
	draft := r.draft
	mode := r.editorMode
	selectedID := r.selectedID
	r.mu.Unlock()

	if draft.Name == "" || draft.Phone == "" || draft.StateCode == "" {
		return types.CourtSaveResult{}, apperrors.ValidationFailed(
			"Required fields missing", "Court name, phone, and state are required")
	}

	var result types.CourtSaveResult
	var err error
	if mode == types.CourtEditorModeCreate {
		result, err = r.catalog.CreateCourt(ctx, draft)
	} else {
		result, err = r.catalog.UpdateCourt(ctx, selectedID, draft)
	}
	if err != nil {
		return types.CourtSaveResult{}, err
	}

	switch result.Status {
	case types.CourtSaveDuplicate:
		r.mu.Lock()
		r.duplicate = result.DuplicateRecord
		r.mu.Unlock()
	case types.CourtSaveCreated, types.CourtSaveUpdated:
		r.selectCourt(*result.Record)
	}
	return result, nil
}

// Diff compares the duplicate candidate with the current draft for the
// conflict view. Empty when no duplicate conflict is active.
func (r *Resolver) Diff() []types.FieldChange {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.duplicate == nil {
		return nil
	}
	return DiffAgainstDraft(*r.duplicate, r.draft)
}

// UseExisting resolves the conflict by selecting the duplicate as-is,
// discarding the draft edits.
func (r *Resolver) UseExisting() error {
	r.mu.Lock()
	dup := r.duplicate
	r.mu.Unlock()

	if dup == nil {
		return ErrNoSelection
	}
	r.selectCourt(*dup)
	return nil
}

// UpdateAndUse resolves the conflict by applying the draft's edits onto the
// duplicate's identity, then selecting the updated record.
func (r *Resolver) UpdateAndUse(ctx context.Context) (types.CourtSaveResult, error) {
	r.mu.Lock()
	dup := r.duplicate
	draft := r.draft
	r.mu.Unlock()

	if dup == nil {
		return types.CourtSaveResult{}, ErrNoSelection
	}

	result, err := r.catalog.UpdateCourt(ctx, dup.ID, draft)
	if err != nil {
		return types.CourtSaveResult{}, err
	}
	if result.Status == types.CourtSaveUpdated && result.Record != nil {
		r.selectCourt(*result.Record)
	}
	return result, nil
}

// GoBack returns from the conflict view to the editor without discarding the
// draft; only the duplicate marker is cleared.
func (r *Resolver) GoBack() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.duplicate = nil
}

// SelectedID returns the active selection's catalog id, empty when none.
func (r *Resolver) SelectedID() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.selectedID
}

// SelectedName returns the active selection's display name.
func (r *Resolver) SelectedName() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.preselected == nil {
		return ""
	}
	return r.preselected.Name
}

// State returns a snapshot of the resolution state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	var preselected *types.Court
	if r.preselected != nil {
		copied := *r.preselected
		preselected = &copied
	}
	var duplicate *types.Court
	if r.duplicate != nil {
		copied := *r.duplicate
		duplicate = &copied
	}
	return State{
		Preselected:      preselected,
		SelectedID:       r.selectedID,
		SelectionVersion: r.selectionVersion,
		EditorOpen:       r.editorOpen,
		EditorMode:       r.editorMode,
		Draft:            r.draft,
		Duplicate:        duplicate,
		CourtIncomplete:  preselected != nil && preselected.IsIncomplete(),
	}
}

// selectCourt installs a fresh copy of court as the selection, bumps the
// selection version so observers are notified even when field values are
// unchanged, closes the editor, clears the conflict marker, and writes the
// court's fields back.
func (r *Resolver) selectCourt(court types.Court) {
	r.mu.Lock()
	copied := court
	r.preselected = &copied
	r.selectedID = court.ID
	r.selectionVersion++
	r.editorOpen = false
	r.duplicate = nil
	r.mu.Unlock()

	r.writer.ApplyCourtFields(types.CourtFieldValues{
		Name:      court.Name,
		County:    court.County,
		Phone:     court.Phone,
		City:      court.City,
		StateName: r.stateCodeToName(court.StateCode),
	})
}

// normalizeStateToCode tries the hint as a code first, then as a display
// name. Unmatched input yields no default.
func (r *Resolver) normalizeStateToCode(hint string) string {
	trimmed := strings.TrimSpace(hint)
	if trimmed == "" {
		return ""
	}
	upper := strings.ToUpper(trimmed)
	if _, ok := r.stateMaps.CodeToName[upper]; ok {
		return upper
	}
	lower := strings.ToLower(trimmed)
	for name, code := range r.stateMaps.NameToCode {
		if strings.ToLower(name) == lower {
			return code
		}
	}
	return ""
}

// stateCodeToName expands a code to its display name, passing the raw code
// through when the conversion table has no entry.
func (r *Resolver) stateCodeToName(code string) string {
	if code == "" {
		return ""
	}
	if name, ok := r.stateMaps.CodeToName[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}
