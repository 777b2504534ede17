// Package postgres implements the court catalog on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/TicketWorks/ticket-review-backend/errors"
	"github.com/TicketWorks/ticket-review-backend/logger"
	"github.com/TicketWorks/ticket-review-backend/store"
	"github.com/TicketWorks/ticket-review-backend/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// searchPageSize is the fixed catalog page size; a full page tells the caller
// more results may exist.
const searchPageSize = 10

// PGXQuerier is the subset of pgxpool.Pool the store needs. It is what the
// pgxmock pool implements in tests.
type PGXQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ PGXQuerier = (*pgxpool.Pool)(nil)

// Ensure pgCourtStore implements store.CatalogStore.
var _ store.CatalogStore = (*pgCourtStore)(nil)

type pgCourtStore struct {
	db PGXQuerier
}

// NewPgCourtStore creates a PostgreSQL-backed court catalog.
func NewPgCourtStore(db PGXQuerier) store.CatalogStore {
	return &pgCourtStore{db: db}
}

const courtColumns = `id, name, phone, county, street, city, state_code, postal_code`

// SearchCourts returns one page of name/county matches. With hints it instead
// runs the best-effort pre-selection lookup, scoring name, phone, and county
// agreement and returning the single best candidate.
func (s *pgCourtStore) SearchCourts(ctx context.Context, term string, offset int, hints *types.ResolutionHints) (types.CourtSearchResult, error) {
	if hints != nil {
		return s.searchByHints(ctx, hints)
	}

	query := fmt.Sprintf(`
        SELECT %s
        FROM courts
        WHERE ($1 = '' OR name ILIKE '%%' || $1 || '%%' OR county ILIKE '%%' || $1 || '%%')
        ORDER BY name
        LIMIT $2 OFFSET $3`, courtColumns)

	rows, err := s.db.Query(ctx, query, term, searchPageSize, offset)
	if err != nil {
		return types.CourtSearchResult{}, apperrors.NewDatabaseError(err)
	}
	defer rows.Close()

	courts, err := scanCourts(rows)
	if err != nil {
		return types.CourtSearchResult{}, apperrors.NewDatabaseError(err)
	}
	return types.CourtSearchResult{Courts: courts}, nil
}

// searchByHints scores candidates on agreement with the reconciled hints. A
// phone match outweighs a name match, which outweighs county alone. No
// candidate scoring above zero means no pre-selection.
func (s *pgCourtStore) searchByHints(ctx context.Context, hints *types.ResolutionHints) (types.CourtSearchResult, error) {
	query := fmt.Sprintf(`
        SELECT %s
        FROM courts
        WHERE (
            (CASE WHEN $1 <> '' AND lower(name) = lower($1) THEN 4
                  WHEN $1 <> '' AND name ILIKE '%%' || $1 || '%%' THEN 2
                  ELSE 0 END) +
            (CASE WHEN $2 <> '' AND regexp_replace(phone, '\D', '', 'g') = regexp_replace($2, '\D', '', 'g') THEN 3
                  ELSE 0 END) +
            (CASE WHEN $3 <> '' AND lower(county) = lower($3) THEN 1
                  ELSE 0 END)
        ) > 0
        ORDER BY (
            (CASE WHEN $1 <> '' AND lower(name) = lower($1) THEN 4
                  WHEN $1 <> '' AND name ILIKE '%%' || $1 || '%%' THEN 2
                  ELSE 0 END) +
            (CASE WHEN $2 <> '' AND regexp_replace(phone, '\D', '', 'g') = regexp_replace($2, '\D', '', 'g') THEN 3
                  ELSE 0 END) +
            (CASE WHEN $3 <> '' AND lower(county) = lower($3) THEN 1
                  ELSE 0 END)
        ) DESC, name
        LIMIT 1`, courtColumns)

	row := s.db.QueryRow(ctx, query, hints.Name, hints.Phone, hints.County)
	court, err := scanCourt(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.CourtSearchResult{}, nil
		}
		return types.CourtSearchResult{}, apperrors.NewDatabaseError(err)
	}
	return types.CourtSearchResult{PreselectedCourt: &court}, nil
}

// CreateCourt inserts the draft unless a court with the same name already
// exists in the same state, in which case the collision is returned for the
// duplicate-conflict flow instead of an error.
func (s *pgCourtStore) CreateCourt(ctx context.Context, draft types.Court) (types.CourtSaveResult, error) {
	dup, err := s.findDuplicate(ctx, draft, "")
	if err != nil {
		return types.CourtSaveResult{}, err
	}
	if dup != nil {
		logger.GetLogger().Infow("Court create collided with existing record",
			"name", draft.Name, "phone", logger.MaskPhone(draft.Phone), "duplicateId", dup.ID)
		return types.CourtSaveResult{Status: types.CourtSaveDuplicate, DuplicateRecord: dup}, nil
	}

	query := fmt.Sprintf(`
        INSERT INTO courts (name, phone, county, street, city, state_code, postal_code)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING %s`, courtColumns)

	row := s.db.QueryRow(ctx, query,
		draft.Name, draft.Phone, draft.County, draft.Street, draft.City, draft.StateCode, draft.PostalCode)
	created, err := scanCourt(row)
	if err != nil {
		return types.CourtSaveResult{}, apperrors.NewDatabaseError(err)
	}
	return types.CourtSaveResult{Status: types.CourtSaveCreated, Record: &created}, nil
}

// UpdateCourt applies the draft onto an existing record. Renaming onto another
// record's name within the same state surfaces as a duplicate collision.
func (s *pgCourtStore) UpdateCourt(ctx context.Context, id string, draft types.Court) (types.CourtSaveResult, error) {
	if id == "" {
		return types.CourtSaveResult{}, apperrors.ValidationFailed("Court id is required", "Cannot update a court without an id")
	}

	dup, err := s.findDuplicate(ctx, draft, id)
	if err != nil {
		return types.CourtSaveResult{}, err
	}
	if dup != nil {
		return types.CourtSaveResult{Status: types.CourtSaveDuplicate, DuplicateRecord: dup}, nil
	}

	query := fmt.Sprintf(`
        UPDATE courts
        SET name = $2, phone = $3, county = $4, street = $5, city = $6,
            state_code = $7, postal_code = $8, updated_at = now()
        WHERE id = $1
        RETURNING %s`, courtColumns)

	row := s.db.QueryRow(ctx, query, id,
		draft.Name, draft.Phone, draft.County, draft.Street, draft.City, draft.StateCode, draft.PostalCode)
	updated, err := scanCourt(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.CourtSaveResult{}, store.ErrNotFound
		}
		return types.CourtSaveResult{}, apperrors.NewDatabaseError(err)
	}
	return types.CourtSaveResult{Status: types.CourtSaveUpdated, Record: &updated}, nil
}

// StateMaps loads the state code/name conversion tables.
func (s *pgCourtStore) StateMaps(ctx context.Context) (types.StateMaps, error) {
	rows, err := s.db.Query(ctx, `SELECT code, name FROM states ORDER BY code`)
	if err != nil {
		return types.StateMaps{}, apperrors.NewDatabaseError(err)
	}
	defer rows.Close()

	maps := types.StateMaps{
		NameToCode: make(map[string]string),
		CodeToName: make(map[string]string),
	}
	for rows.Next() {
		var code, name string
		if err := rows.Scan(&code, &name); err != nil {
			return types.StateMaps{}, apperrors.NewDatabaseError(err)
		}
		maps.NameToCode[name] = code
		maps.CodeToName[code] = name
	}
	if err := rows.Err(); err != nil {
		return types.StateMaps{}, apperrors.NewDatabaseError(err)
	}
	return maps, nil
}

// findDuplicate looks for another court with the same name in the same state.
// excludeID keeps an update from colliding with the record being updated.
func (s *pgCourtStore) findDuplicate(ctx context.Context, draft types.Court, excludeID string) (*types.Court, error) {
	query := fmt.Sprintf(`
        SELECT %s
        FROM courts
        WHERE lower(name) = lower($1)
          AND state_code = $2
          AND ($3 = '' OR id::text <> $3)
        LIMIT 1`, courtColumns)

	row := s.db.QueryRow(ctx, query, draft.Name, draft.StateCode, excludeID)
	dup, err := scanCourt(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	return &dup, nil
}

func scanCourt(row pgx.Row) (types.Court, error) {
	var c types.Court
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.County, &c.Street, &c.City, &c.StateCode, &c.PostalCode)
	return c, err
}

func scanCourts(rows pgx.Rows) ([]types.Court, error) {
	var courts []types.Court
	for rows.Next() {
		var c types.Court
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.County, &c.Street, &c.City, &c.StateCode, &c.PostalCode); err != nil {
			return nil, err
		}
		courts = append(courts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return courts, nil
}
