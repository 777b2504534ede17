package postgres

import (
	"context"
	"testing"

	"github.com/TicketWorks/ticket-review-backend/store"
	"github.com/TicketWorks/ticket-review-backend/types"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var courtCols = []string{"id", "name", "phone", "county", "street", "city", "state_code", "postal_code"}

func courtRow(rows *pgxmock.Rows, c types.Court) *pgxmock.Rows {
	return rows.AddRow(c.ID, c.Name, c.Phone, c.County, c.Street, c.City, c.StateCode, c.PostalCode)
}

func testCourt() types.Court {
	return types.Court{
		ID:         "a0B000001",
		Name:       "Metro County Court",
		Phone:      "555-0100",
		County:     "Metro",
		Street:     "1 Main St",
		City:       "Metroville",
		StateCode:  "CA",
		PostalCode: "90001",
	}
}

func setupCourtStore(t *testing.T) (pgxmock.PgxPoolIface, store.CatalogStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgCourtStore(mock)
}

func TestPgCourtStore_SearchCourtsPage(t *testing.T) {
	mock, s := setupCourtStore(t)

	rows := pgxmock.NewRows(courtCols)
	courtRow(rows, testCourt())
	mock.ExpectQuery("FROM courts").
		WithArgs("metro", searchPageSize, 0).
		WillReturnRows(rows)

	result, err := s.SearchCourts(context.Background(), "metro", 0, nil)
	require.NoError(t, err)
	require.Len(t, result.Courts, 1)
	assert.Equal(t, "Metro County Court", result.Courts[0].Name)
	assert.Nil(t, result.PreselectedCourt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCourtStore_SearchCourtsByHints(t *testing.T) {
	t.Run("best match becomes the pre-selection", func(t *testing.T) {
		mock, s := setupCourtStore(t)

		rows := pgxmock.NewRows(courtCols)
		courtRow(rows, testCourt())
		mock.ExpectQuery("FROM courts").
			WithArgs("Metro County Court", "555-0100", "Metro").
			WillReturnRows(rows)

		result, err := s.SearchCourts(context.Background(), "", 0,
			&types.ResolutionHints{Name: "Metro County Court", Phone: "555-0100", County: "Metro"})
		require.NoError(t, err)
		require.NotNil(t, result.PreselectedCourt)
		assert.Equal(t, "a0B000001", result.PreselectedCourt.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no candidate is not an error", func(t *testing.T) {
		mock, s := setupCourtStore(t)

		mock.ExpectQuery("FROM courts").
			WithArgs("Nowhere Court", "", "").
			WillReturnError(pgx.ErrNoRows)

		result, err := s.SearchCourts(context.Background(), "", 0, &types.ResolutionHints{Name: "Nowhere Court"})
		require.NoError(t, err)
		assert.Nil(t, result.PreselectedCourt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgCourtStore_CreateCourt(t *testing.T) {
	t.Run("inserts when no collision", func(t *testing.T) {
		mock, s := setupCourtStore(t)
		draft := testCourt()
		draft.ID = ""

		mock.ExpectQuery("FROM courts").
			WithArgs(draft.Name, draft.StateCode, "").
			WillReturnError(pgx.ErrNoRows)

		rows := pgxmock.NewRows(courtCols)
		courtRow(rows, testCourt())
		mock.ExpectQuery("INSERT INTO courts").
			WithArgs(draft.Name, draft.Phone, draft.County, draft.Street, draft.City, draft.StateCode, draft.PostalCode).
			WillReturnRows(rows)

		result, err := s.CreateCourt(context.Background(), draft)
		require.NoError(t, err)
		assert.Equal(t, types.CourtSaveCreated, result.Status)
		require.NotNil(t, result.Record)
		assert.Equal(t, "a0B000001", result.Record.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("same name and state collides", func(t *testing.T) {
		mock, s := setupCourtStore(t)
		draft := testCourt()
		draft.ID = ""
		draft.Phone = "555-0911"

		rows := pgxmock.NewRows(courtCols)
		courtRow(rows, testCourt())
		mock.ExpectQuery("FROM courts").
			WithArgs(draft.Name, draft.StateCode, "").
			WillReturnRows(rows)

		result, err := s.CreateCourt(context.Background(), draft)
		require.NoError(t, err, "a duplicate is a resolvable state, not an error")
		assert.Equal(t, types.CourtSaveDuplicate, result.Status)
		require.NotNil(t, result.DuplicateRecord)
		assert.Equal(t, "a0B000001", result.DuplicateRecord.ID)
		assert.Nil(t, result.Record)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgCourtStore_UpdateCourt(t *testing.T) {
	t.Run("updates and returns the record", func(t *testing.T) {
		mock, s := setupCourtStore(t)
		draft := testCourt()
		draft.Phone = "555-0911"

		mock.ExpectQuery("FROM courts").
			WithArgs(draft.Name, draft.StateCode, draft.ID).
			WillReturnError(pgx.ErrNoRows)

		rows := pgxmock.NewRows(courtCols)
		courtRow(rows, draft)
		mock.ExpectQuery("UPDATE courts").
			WithArgs(draft.ID, draft.Name, draft.Phone, draft.County, draft.Street, draft.City, draft.StateCode, draft.PostalCode).
			WillReturnRows(rows)

		result, err := s.UpdateCourt(context.Background(), draft.ID, draft)
		require.NoError(t, err)
		assert.Equal(t, types.CourtSaveUpdated, result.Status)
		assert.Equal(t, "555-0911", result.Record.Phone)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing record", func(t *testing.T) {
		mock, s := setupCourtStore(t)
		draft := testCourt()

		mock.ExpectQuery("FROM courts").
			WithArgs(draft.Name, draft.StateCode, "gone").
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery("UPDATE courts").
			WithArgs("gone", draft.Name, draft.Phone, draft.County, draft.Street, draft.City, draft.StateCode, draft.PostalCode).
			WillReturnError(pgx.ErrNoRows)

		_, err := s.UpdateCourt(context.Background(), "gone", draft)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty id is rejected", func(t *testing.T) {
		_, s := setupCourtStore(t)
		_, err := s.UpdateCourt(context.Background(), "", testCourt())
		assert.Error(t, err)
	})
}

func TestPgCourtStore_StateMaps(t *testing.T) {
	mock, s := setupCourtStore(t)

	rows := pgxmock.NewRows([]string{"code", "name"}).
		AddRow("CA", "California").
		AddRow("TX", "Texas")
	mock.ExpectQuery("FROM states").WillReturnRows(rows)

	maps, err := s.StateMaps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "CA", maps.NameToCode["California"])
	assert.Equal(t, "Texas", maps.CodeToName["TX"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
