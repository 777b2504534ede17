// Package store defines the persistence interfaces the review workflow
// consumes. The catalog and the audit trail have PostgreSQL implementations
// in store/postgres; the remaining collaborators are owned by other systems
// and only their contracts live here.
package store

import (
	"context"

	"github.com/TicketWorks/ticket-review-backend/types"
)

// CatalogStore is the court catalog: paginated free-text search, hint-based
// best-effort lookup, and create/update with duplicate detection.
type CatalogStore interface {
	// SearchCourts returns one page of matches for term at offset. When hints
	// is non-nil the result may also carry a pre-selected best match.
	SearchCourts(ctx context.Context, term string, offset int, hints *types.ResolutionHints) (types.CourtSearchResult, error)
	CreateCourt(ctx context.Context, draft types.Court) (types.CourtSaveResult, error)
	UpdateCourt(ctx context.Context, id string, draft types.Court) (types.CourtSaveResult, error)
	StateMaps(ctx context.Context) (types.StateMaps, error)
}

// CaseStore serves the primary record feed.
type CaseStore interface {
	GetCase(ctx context.Context, caseID string) (*types.CaseRecord, error)
}

// DocumentStore serves the scanned-file feed with its OCR payloads.
type DocumentStore interface {
	GetDocuments(ctx context.Context, caseID string) (*types.DocumentSet, error)
}

// OptionStore serves the enumerated fields' option lists, one subscription
// per field.
type OptionStore interface {
	GetOptions(ctx context.Context, fieldName string) ([]types.Option, error)
}

// AuditStore persists the per-field extraction audit trail once the final
// record exists.
type AuditStore interface {
	SaveAuditTrail(ctx context.Context, caseRef, recordRef, sourceRef string, entries []types.AuditEntry) error
}

// TicketStore creates the final ticket record from the committed field map.
type TicketStore interface {
	CreateTicket(ctx context.Context, fields map[string]string) (string, error)
}
