package postgres

import (
	"context"

	apperrors "github.com/TicketWorks/ticket-review-backend/errors"
	"github.com/TicketWorks/ticket-review-backend/logger"
	"github.com/TicketWorks/ticket-review-backend/store"
	"github.com/TicketWorks/ticket-review-backend/types"
)

// Ensure pgAuditStore implements store.AuditStore.
var _ store.AuditStore = (*pgAuditStore)(nil)

type pgAuditStore struct {
	db PGXQuerier
}

// NewPgAuditStore creates a PostgreSQL-backed extraction audit store.
func NewPgAuditStore(db PGXQuerier) store.AuditStore {
	return &pgAuditStore{db: db}
}

// SaveAuditTrail persists one row per reviewed field for the created record.
func (s *pgAuditStore) SaveAuditTrail(ctx context.Context, caseRef, recordRef, sourceRef string, entries []types.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	for _, e := range entries {
		_, err := s.db.Exec(ctx, `
            INSERT INTO extraction_audits (
                case_ref, record_ref, source_ref, field_name,
                extracted_value, expected_value, is_accurate, reviewer_note, rationale
            )
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			caseRef, recordRef, sourceRef, e.FieldName,
			e.ExtractedValue, e.ExpectedValue, e.IsAccurate, e.ReviewerNote, e.Rationale)
		if err != nil {
			return apperrors.NewDatabaseError(err)
		}
	}

	logger.GetLogger().Infow("Extraction audit trail saved",
		"recordRef", recordRef, "entries", len(entries))
	return nil
}
