package court

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	apperrors "github.com/TicketWorks/ticket-review-backend/errors"
	"github.com/TicketWorks/ticket-review-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	searchFn func(ctx context.Context, term string, offset int, hints *types.ResolutionHints) (types.CourtSearchResult, error)
	createFn func(ctx context.Context, draft types.Court) (types.CourtSaveResult, error)
	updateFn func(ctx context.Context, id string, draft types.Court) (types.CourtSaveResult, error)
}

func (f *fakeCatalog) SearchCourts(ctx context.Context, term string, offset int, hints *types.ResolutionHints) (types.CourtSearchResult, error) {
	if f.searchFn == nil {
		return types.CourtSearchResult{}, nil
	}
	return f.searchFn(ctx, term, offset, hints)
}

func (f *fakeCatalog) CreateCourt(ctx context.Context, draft types.Court) (types.CourtSaveResult, error) {
	if f.createFn == nil {
		return types.CourtSaveResult{}, errors.New("create not stubbed")
	}
	return f.createFn(ctx, draft)
}

func (f *fakeCatalog) UpdateCourt(ctx context.Context, id string, draft types.Court) (types.CourtSaveResult, error) {
	if f.updateFn == nil {
		return types.CourtSaveResult{}, errors.New("update not stubbed")
	}
	return f.updateFn(ctx, id, draft)
}

func (f *fakeCatalog) StateMaps(context.Context) (types.StateMaps, error) {
	return types.StateMaps{}, nil
}

type recordingWriter struct {
	mu      sync.Mutex
	applied []types.CourtFieldValues
	clears  int
}

func (w *recordingWriter) ApplyCourtFields(values types.CourtFieldValues) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.applied = append(w.applied, values)
}

func (w *recordingWriter) ClearCourtFields() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clears++
}

func (w *recordingWriter) lastApplied() (types.CourtFieldValues, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.applied) == 0 {
		return types.CourtFieldValues{}, false
	}
	return w.applied[len(w.applied)-1], true
}

func testStateMaps() types.StateMaps {
	return types.StateMaps{
		NameToCode: map[string]string{"California": "CA", "Texas": "TX"},
		CodeToName: map[string]string{"CA": "California", "TX": "Texas"},
	}
}

func metroCourt() types.Court {
	return types.Court{
		ID:         "crt-1",
		Name:       "Metro County Court",
		Phone:      "555-0100",
		County:     "Metro",
		Street:     "1 Main St",
		City:       "Metroville",
		StateCode:  "CA",
		PostalCode: "90001",
	}
}

func pageOf(n int) []types.Court {
	courts := make([]types.Court, n)
	for i := range courts {
		courts[i] = types.Court{ID: fmt.Sprintf("crt-%d", i), Name: fmt.Sprintf("Court %d", i)}
	}
	return courts
}

func TestResolver_SearchPagination(t *testing.T) {
	catalog := &fakeCatalog{}
	r := NewResolver(catalog, &recordingWriter{}, testStateMaps())

	catalog.searchFn = func(_ context.Context, term string, offset int, hints *types.ResolutionHints) (types.CourtSearchResult, error) {
		assert.Nil(t, hints)
		assert.Equal(t, "metro", term)
		assert.Equal(t, 0, offset)
		return types.CourtSearchResult{Courts: pageOf(PageSize)}, nil
	}
	courts, more, err := r.Search(context.Background(), "metro", 0)
	require.NoError(t, err)
	assert.Len(t, courts, PageSize)
	assert.True(t, more, "a full page means more may exist")

	catalog.searchFn = func(_ context.Context, _ string, _ int, _ *types.ResolutionHints) (types.CourtSearchResult, error) {
		return types.CourtSearchResult{Courts: pageOf(3)}, nil
	}
	courts, more, err = r.Search(context.Background(), "metro", PageSize)
	require.NoError(t, err)
	assert.Len(t, courts, 3)
	assert.False(t, more, "a partial page means end of results")
}

func TestResolver_StaleSearchSuppressed(t *testing.T) {
	release := make(chan struct{})
	inFlight := make(chan struct{})
	catalog := &fakeCatalog{
		searchFn: func(_ context.Context, term string, _ int, _ *types.ResolutionHints) (types.CourtSearchResult, error) {
			if term == "slow" {
				close(inFlight)
				<-release
			}
			return types.CourtSearchResult{Courts: pageOf(1)}, nil
		},
	}
	r := NewResolver(catalog, &recordingWriter{}, testStateMaps())

	staleErr := make(chan error, 1)
	go func() {
		_, _, err := r.Search(context.Background(), "slow", 0)
		staleErr <- err
	}()
	<-inFlight

	// The newer request supersedes the in-flight one.
	_, _, err := r.Search(context.Background(), "fast", 0)
	require.NoError(t, err)

	close(release)
	assert.ErrorIs(t, <-staleErr, ErrStaleSearch)
}

func TestResolver_SelectThenClearRoundTrip(t *testing.T) {
	writer := &recordingWriter{}
	r := NewResolver(&fakeCatalog{}, writer, testStateMaps())

	r.SelectExisting(metroCourt())
	applied, ok := writer.lastApplied()
	require.True(t, ok)
	assert.Equal(t, "Metro County Court", applied.Name)
	assert.Equal(t, "California", applied.StateName, "state code expands to its display name")
	assert.Equal(t, "crt-1", r.SelectedID())

	r.ClearSelection()
	assert.Equal(t, "", r.SelectedID())
	assert.Equal(t, "", r.SelectedName())
	assert.Equal(t, 1, writer.clears, "clearing empties the linked fields")
}

func TestResolver_SelectionVersionAlwaysBumps(t *testing.T) {
	r := NewResolver(&fakeCatalog{}, &recordingWriter{}, testStateMaps())

	r.SelectExisting(metroCourt())
	v1 := r.State().SelectionVersion

	// Re-selecting the identical record still notifies observers.
	r.SelectExisting(metroCourt())
	v2 := r.State().SelectionVersion
	assert.Greater(t, v2, v1)
}

func TestResolver_InvalidateKeepsLinkedFields(t *testing.T) {
	writer := &recordingWriter{}
	r := NewResolver(&fakeCatalog{}, writer, testStateMaps())

	r.SelectExisting(metroCourt())
	r.InvalidateSelection()

	assert.Equal(t, "", r.SelectedID())
	assert.Equal(t, 0, writer.clears, "hand-edited linked values must survive")
}

func TestResolver_ResolveFromHints(t *testing.T) {
	preselect := metroCourt()
	catalog := &fakeCatalog{
		searchFn: func(_ context.Context, term string, offset int, hints *types.ResolutionHints) (types.CourtSearchResult, error) {
			require.NotNil(t, hints)
			assert.Equal(t, "", term)
			assert.Equal(t, 0, offset)
			return types.CourtSearchResult{PreselectedCourt: &preselect}, nil
		},
	}
	writer := &recordingWriter{}
	r := NewResolver(catalog, writer, testStateMaps())

	found, err := r.ResolveFromHints(context.Background(), types.ResolutionHints{Name: "Metro"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "crt-1", r.SelectedID())
	_, applied := writer.lastApplied()
	assert.True(t, applied)

	// No candidate is not an error.
	catalog.searchFn = func(_ context.Context, _ string, _ int, _ *types.ResolutionHints) (types.CourtSearchResult, error) {
		return types.CourtSearchResult{}, nil
	}
	found, err = r.ResolveFromHints(context.Background(), types.ResolutionHints{Name: "Unknown"})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestResolver_CourtIncomplete(t *testing.T) {
	r0 := NewResolver(&fakeCatalog{}, &recordingWriter{}, testStateMaps())
	assert.False(t, r0.State().CourtIncomplete, "no selection means nothing to flag")

	incomplete := metroCourt()
	incomplete.Street = ""
	incomplete.PostalCode = ""

	r := NewResolver(&fakeCatalog{}, &recordingWriter{}, testStateMaps())
	r.SelectExisting(incomplete)
	assert.True(t, r.State().CourtIncomplete)

	r.SelectExisting(metroCourt())
	assert.False(t, r.State().CourtIncomplete)
}

func TestResolver_OpenCreateDraftNormalizesState(t *testing.T) {
	cases := []struct {
		hint     string
		expected string
	}{
		{"CA", "CA"},
		{"ca", "CA"},
		{"California", "CA"},
		{"  texas ", "TX"},
		{"Atlantis", ""},
		{"", ""},
	}

	for _, tc := range cases {
		r := NewResolver(&fakeCatalog{}, &recordingWriter{}, testStateMaps())
		r.OpenCreateDraft("Metro Court", "555-0100", "Metro", "Metroville", tc.hint)

		state := r.State()
		assert.True(t, state.EditorOpen)
		assert.Equal(t, types.CourtEditorModeCreate, state.EditorMode)
		assert.Equal(t, tc.expected, state.Draft.StateCode, "hint %q", tc.hint)
	}
}

func TestResolver_OpenCreateDraftClearsSelectionOnly(t *testing.T) {
	writer := &recordingWriter{}
	r := NewResolver(&fakeCatalog{}, writer, testStateMaps())
	r.SelectExisting(metroCourt())

	r.OpenCreateDraft("Metro Court", "555-0100", "Metro", "Metroville", "CA")
	assert.Equal(t, "", r.SelectedID())
	assert.Equal(t, 0, writer.clears, "the linked values seed the draft and must not be wiped")
}

func TestResolver_SaveValidation(t *testing.T) {
	r := NewResolver(&fakeCatalog{}, &recordingWriter{}, testStateMaps())
	r.OpenCreateDraft("", "", "", "", "")

	_, err := r.Save(context.Background())
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ValidationError, appErr.Type)
}

func TestResolver_SaveCreateSelectsRecord(t *testing.T) {
	created := metroCourt()
	catalog := &fakeCatalog{
		createFn: func(_ context.Context, draft types.Court) (types.CourtSaveResult, error) {
			assert.Equal(t, "Metro County Court", draft.Name)
			return types.CourtSaveResult{Status: types.CourtSaveCreated, Record: &created}, nil
		},
	}
	r := NewResolver(catalog, &recordingWriter{}, testStateMaps())
	r.OpenCreateDraft("Metro County Court", "555-0100", "Metro", "Metroville", "CA")

	result, err := r.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.CourtSaveCreated, result.Status)
	assert.Equal(t, "crt-1", r.SelectedID())
	assert.False(t, r.State().EditorOpen, "a successful save closes the editor")
}

func TestResolver_DuplicateConflictFlow(t *testing.T) {
	dup := metroCourt()
	catalog := &fakeCatalog{
		createFn: func(_ context.Context, _ types.Court) (types.CourtSaveResult, error) {
			return types.CourtSaveResult{Status: types.CourtSaveDuplicate, DuplicateRecord: &dup}, nil
		},
	}
	writer := &recordingWriter{}
	r := NewResolver(catalog, writer, testStateMaps())
	r.OpenCreateDraft("Metro County Court", "555-0911", "Metro", "Metroville", "CA")

	result, err := r.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.CourtSaveDuplicate, result.Status)

	state := r.State()
	require.NotNil(t, state.Duplicate)
	assert.True(t, state.EditorOpen, "conflict keeps the editor open")

	diff := r.Diff()
	require.NotEmpty(t, diff)
	var phoneChange *types.FieldChange
	for i := range diff {
		if diff[i].Field == "Phone" {
			phoneChange = &diff[i]
		}
	}
	require.NotNil(t, phoneChange)
	assert.Equal(t, "555-0100", phoneChange.OldValue)
	assert.Equal(t, "555-0911", phoneChange.NewValue)

	// goBack returns to the editor keeping the draft.
	r.GoBack()
	state = r.State()
	assert.Nil(t, state.Duplicate)
	assert.True(t, state.EditorOpen)
	assert.Equal(t, "555-0911", state.Draft.Phone)
}

func TestResolver_UseExistingMatchesSelectExisting(t *testing.T) {
	dup := metroCourt()
	catalog := &fakeCatalog{
		createFn: func(_ context.Context, _ types.Court) (types.CourtSaveResult, error) {
			return types.CourtSaveResult{Status: types.CourtSaveDuplicate, DuplicateRecord: &dup}, nil
		},
	}

	// Resolve the conflict by keeping the existing record. The create seed
	// carries no street or postal code, so the draft is completed first to
	// match the duplicate exactly.
	conflicted := NewResolver(catalog, &recordingWriter{}, testStateMaps())
	conflicted.OpenCreateDraft(dup.Name, dup.Phone, dup.County, dup.City, dup.StateCode)
	draft := conflicted.State().Draft
	draft.Street = dup.Street
	draft.PostalCode = dup.PostalCode
	conflicted.UpdateDraft(draft)
	_, err := conflicted.Save(context.Background())
	require.NoError(t, err)
	assert.Empty(t, conflicted.Diff(), "identical draft yields an empty diff")
	require.NoError(t, conflicted.UseExisting())

	// Select the same record directly.
	direct := NewResolver(&fakeCatalog{}, &recordingWriter{}, testStateMaps())
	direct.SelectExisting(dup)

	assert.Equal(t, direct.SelectedID(), conflicted.SelectedID())
	assert.Equal(t, direct.SelectedName(), conflicted.SelectedName())
	assert.False(t, conflicted.State().EditorOpen)
}

func TestResolver_UpdateAndUse(t *testing.T) {
	dup := metroCourt()
	updated := dup
	updated.Phone = "555-0911"

	catalog := &fakeCatalog{
		createFn: func(_ context.Context, _ types.Court) (types.CourtSaveResult, error) {
			return types.CourtSaveResult{Status: types.CourtSaveDuplicate, DuplicateRecord: &dup}, nil
		},
		updateFn: func(_ context.Context, id string, draft types.Court) (types.CourtSaveResult, error) {
			assert.Equal(t, "crt-1", id, "edits apply onto the duplicate's identity")
			assert.Equal(t, "555-0911", draft.Phone)
			return types.CourtSaveResult{Status: types.CourtSaveUpdated, Record: &updated}, nil
		},
	}
	r := NewResolver(catalog, &recordingWriter{}, testStateMaps())
	r.OpenCreateDraft(dup.Name, "555-0911", dup.County, dup.City, dup.StateCode)

	_, err := r.Save(context.Background())
	require.NoError(t, err)

	result, err := r.UpdateAndUse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.CourtSaveUpdated, result.Status)
	assert.Equal(t, "crt-1", r.SelectedID())
	assert.Nil(t, r.State().Duplicate)
}

func TestResolver_OpenEditDraftRequiresSelection(t *testing.T) {
	r := NewResolver(&fakeCatalog{}, &recordingWriter{}, testStateMaps())
	assert.ErrorIs(t, r.OpenEditDraft(), ErrNoSelection)

	r.SelectExisting(metroCourt())
	require.NoError(t, r.OpenEditDraft())

	state := r.State()
	assert.Equal(t, types.CourtEditorModeEdit, state.EditorMode)
	assert.Equal(t, "Metro County Court", state.Draft.Name)

	// Draft edits never change the record identity.
	edited := state.Draft
	edited.ID = "spoofed"
	edited.Phone = "555-0222"
	r.UpdateDraft(edited)
	assert.Equal(t, "crt-1", r.State().Draft.ID)
}
