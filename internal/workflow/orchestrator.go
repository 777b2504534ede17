// Package workflow drives a review session's state machine. A session is
// created in Loading, waits on the readiness barrier, routes to a review or
// manual-processing path, and ends either by a successful record save or by
// being closed. All transitions go through the session; collaborators only
// observe it.
package workflow

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/TicketWorks/ticket-review-backend/errors"
	"github.com/TicketWorks/ticket-review-backend/internal/barrier"
	"github.com/TicketWorks/ticket-review-backend/internal/court"
	"github.com/TicketWorks/ticket-review-backend/internal/reconcile"
	"github.com/TicketWorks/ticket-review-backend/logger"
	"github.com/TicketWorks/ticket-review-backend/services"
	"github.com/TicketWorks/ticket-review-backend/store"
	"github.com/TicketWorks/ticket-review-backend/types"
	"go.uber.org/zap"
)

// DefaultSaveErrorClearAfter is how long an inline save failure stays visible
// before it auto-clears.
const DefaultSaveErrorClearAfter = 8 * time.Second

// Dependencies holds the collaborators a session calls out to.
type Dependencies struct {
	Catalog    store.CatalogStore
	Cases      store.CaseStore
	Documents  store.DocumentStore
	Options    store.OptionStore
	Audit      store.AuditStore
	Tickets    store.TicketStore
	Coverage   services.CoverageService
	Processing services.ProcessingService
}

// Config carries the session tuning knobs.
type Config struct {
	// ManualProcessingEnabled gates the on-demand extraction path when a case
	// has no processed documents.
	ManualProcessingEnabled bool
	// SaveErrorClearAfter is the auto-clear delay for inline save failures.
	// Zero means DefaultSaveErrorClearAfter.
	SaveErrorClearAfter time.Duration
	// FieldAllowlist overrides the default reviewable field set.
	FieldAllowlist []string
}

// optionFeeds maps each enumeration feed to the field it serves.
var optionFeeds = map[types.FeedKey]string{
	types.FeedViolationOptions: types.FieldViolationCategory,
	types.FeedAccidentOptions:  types.FieldAccident,
	types.FeedLicenseTypeOpts:  types.FieldDriversLicenseType,
}

// Snapshot is the session's externally visible state.
type Snapshot struct {
	ID             string                    `json:"id"`
	CaseID         string                    `json:"caseId"`
	State          types.SessionState        `json:"state"`
	ErrorMessage   string                    `json:"errorMessage,omitempty"`
	Messages       []string                  `json:"messages,omitempty"`
	Fields         []types.ReviewField       `json:"fields"`
	Warnings       []reconcile.Warning       `json:"warnings,omitempty"`
	Court          *court.State              `json:"court,omitempty"`
	Unprocessed    []types.UnprocessedSource `json:"unprocessed,omitempty"`
	Summary        []types.ProcessingResult  `json:"summary,omitempty"`
	FormValues     map[string]string         `json:"formValues,omitempty"`
	SaveError      string                    `json:"saveError,omitempty"`
	PriorRecordRef string                    `json:"priorRecordRef,omitempty"`
}

// Session is one review session's orchestrator.
type Session struct {
	id     string
	caseID string
	log    *zap.SugaredLogger
	cfg    Config
	deps   Dependencies

	barrier    *barrier.Barrier
	reconciler *reconcile.Reconciler

	// OnClosed fires when the session ends, for any reason.
	OnClosed func()
	// OnRecordSaved fires after a successful save with the new record id and
	// whether the reviewer asked to continue into a follow-on entity.
	OnRecordSaved func(recordID string, wantsFollowOnEntity bool)
	// OnRequestNewEntity fires when the reviewer hands off entity creation to
	// an external flow, seeded with the current search term.
	OnRequestNewEntity func(initialTerm string)

	mu           sync.Mutex
	ctx          context.Context
	state        types.SessionState
	resolver     *court.Resolver
	forceCreate  bool
	caseRecord   *types.CaseRecord
	docSet       *types.DocumentSet
	errorMessage string
	messages     []string
	unprocessed  []types.UnprocessedSource
	summary      []types.ProcessingResult
	formValues   map[string]string
	saveErr      string
	saveErrSeq   uint64
}

// NewSession creates a session in Loading for one case. Nothing is fetched
// until Start.
func NewSession(id, caseID string, deps Dependencies, cfg Config) *Session {
	if cfg.SaveErrorClearAfter == 0 {
		cfg.SaveErrorClearAfter = DefaultSaveErrorClearAfter
	}
	if len(cfg.FieldAllowlist) == 0 {
		cfg.FieldAllowlist = types.DefaultFieldAllowlist()
	}

	s := &Session{
		id:         id,
		caseID:     caseID,
		log:        logger.GetLogger().Named("review_session").With("sessionId", id, "caseId", caseID),
		cfg:        cfg,
		deps:       deps,
		barrier:    barrier.New(),
		reconciler: reconcile.New(),
		state:      types.SessionStateLoading,
	}

	s.barrier.RegisterFeed(types.FeedCaseRecord)
	s.barrier.RegisterFeed(types.FeedDocuments)
	for key := range optionFeeds {
		s.barrier.RegisterFeed(key)
	}
	s.barrier.OnAllSettled(s.evaluate)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CaseID returns the case under review.
func (s *Session) CaseID() string { return s.caseID }

// Start fetches the state conversion tables, wires the court resolver, and
// kicks off the feed subscriptions. ctx bounds the whole session.
func (s *Session) Start(ctx context.Context) {
	stateMaps, err := s.deps.Catalog.StateMaps(ctx)
	if err != nil {
		// State normalization degrades to pass-through; the session goes on.
		s.log.Warnw("State conversion tables unavailable", "error", err)
		s.appendMessage("State list could not be loaded; state values will not be normalized.")
	}

	s.mu.Lock()
	s.ctx = ctx
	s.resolver = court.NewResolver(s.deps.Catalog, s.reconciler, stateMaps)
	s.mu.Unlock()

	go s.fetchCaseRecord(ctx)
	go s.fetchDocuments(ctx)
	for key, fieldName := range optionFeeds {
		go s.fetchOptions(ctx, key, fieldName)
	}
}

// State returns the current workflow state.
func (s *Session) State() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Courts exposes the session's court resolver. Nil before Start.
func (s *Session) Courts() *court.Resolver {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver
}

// Fields returns the reconciled review fields.
func (s *Session) Fields() []types.ReviewField {
	return s.reconciler.Fields()
}

// EditField updates a review field's current value. Editing a court-linked
// field invalidates the active court selection without touching the other
// linked values.
func (s *Session) EditField(fieldID, newValue string) error {
	s.mu.Lock()
	state := s.state
	resolver := s.resolver
	s.mu.Unlock()

	if state != types.SessionStateReviewing {
		return apperrors.InvalidSessionState(state.String(), "field edit")
	}

	courtLinked, err := s.reconciler.SetFieldValue(fieldID, newValue)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ValidationError, "Unknown review field")
	}
	if courtLinked && resolver != nil {
		resolver.InvalidateSelection()
	}
	return nil
}

// SetReviewerNote attaches a note to a review field.
func (s *Session) SetReviewerNote(fieldID, note string) error {
	if err := s.reconciler.SetReviewerNote(fieldID, note); err != nil {
		return apperrors.Wrap(err, apperrors.ValidationError, "Unknown review field")
	}
	return nil
}

// OpenCourtCreateDraft enters the court editor in create mode, seeding the
// draft from the linked review fields' current values.
func (s *Session) OpenCourtCreateDraft() error {
	s.mu.Lock()
	resolver := s.resolver
	s.mu.Unlock()

	if resolver == nil {
		return apperrors.InvalidSessionState(s.State().String(), "court draft")
	}

	fieldValue := func(name string) string {
		if f, ok := s.reconciler.Field(name); ok {
			return f.CurrentValue
		}
		return ""
	}
	resolver.OpenCreateDraft(
		fieldValue(types.FieldTicketCourt),
		fieldValue(types.FieldCourtPhoneNumber),
		fieldValue(types.FieldTicketCounty),
		fieldValue(types.FieldTicketCity),
		fieldValue(types.FieldTicketState),
	)
	return nil
}

// ForceCreate bypasses the prior-record short-circuit and re-runs the routing
// decision.
func (s *Session) ForceCreate() error {
	s.mu.Lock()
	if s.state != types.SessionStatePriorRecordExists {
		state := s.state
		s.mu.Unlock()
		return apperrors.InvalidSessionState(state.String(), types.SessionStateLoading.String())
	}
	s.state = types.SessionStateLoading
	s.forceCreate = true
	s.mu.Unlock()

	s.evaluate(s.outcomes())
	return nil
}

// TriggerProcessing runs on-demand extraction over the case's unprocessed
// sources and presents the per-file summary.
func (s *Session) TriggerProcessing(ctx context.Context) error {
	s.mu.Lock()
	if s.state != types.SessionStateAwaitingManual {
		state := s.state
		s.mu.Unlock()
		return apperrors.InvalidSessionState(state.String(), types.SessionStateProcessing.String())
	}
	s.state = types.SessionStateProcessing
	s.mu.Unlock()

	results, err := s.deps.Processing.ProcessSourcesNow(ctx, s.caseID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.Errorw("On-demand processing failed", "error", err)
		s.state = types.SessionStateError
		s.errorMessage = apperrors.UserMessage(err)
		return apperrors.Wrap(err, apperrors.ExtractionError, "Processing failed")
	}
	s.summary = results
	s.state = types.SessionStateProcessingSummary
	return nil
}

// ContinueFromSummary leaves the processing summary and re-enters Loading,
// refreshing the document feed. It is gated on at least one processed file
// having succeeded as a ticket; otherwise there is still nothing to review.
func (s *Session) ContinueFromSummary(ctx context.Context) error {
	s.mu.Lock()
	if s.state != types.SessionStateProcessingSummary {
		state := s.state
		s.mu.Unlock()
		return apperrors.InvalidSessionState(state.String(), types.SessionStateLoading.String())
	}
	if !hasSuccessfulTicket(s.summary) {
		s.mu.Unlock()
		return apperrors.ValidationFailed(
			"No ticket was processed successfully",
			"At least one file must process successfully as a Ticket to continue")
	}
	s.state = types.SessionStateLoading
	s.mu.Unlock()

	// The document feed re-settles and the barrier re-runs the decision.
	go s.fetchDocuments(ctx)
	return nil
}

// Commit moves from review into form editing. It is blocked without a court
// selection, and it folds the external coverage computation into the form's
// initial values; a coverage failure aborts the transition without changing
// state.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	state := s.state
	resolver := s.resolver
	record := s.caseRecord
	s.mu.Unlock()

	if state != types.SessionStateReviewing {
		return apperrors.InvalidSessionState(state.String(), types.SessionStateFormEditing.String())
	}
	if resolver == nil || resolver.SelectedID() == "" {
		return apperrors.ValidationFailed(
			"No court selected",
			"Select or create a court before continuing")
	}

	values := s.reconciler.FinalValues()

	var driverRef, agentRef, comments string
	if record != nil {
		driverRef = record.DriverRef
		agentRef = record.AgentRef
		comments = record.CombinedComments()
	}

	coverage, err := s.deps.Coverage.ComputeCoverage(ctx, driverRef, values[types.FieldDateOfTicket])
	if err != nil {
		s.log.Errorw("Coverage computation failed", "error", err)
		return apperrors.Wrap(err, apperrors.FeedError, "Could not compute coverage")
	}

	form := make(map[string]string, len(values)+8)
	for name, value := range values {
		form[name] = value
	}
	form[types.FormFieldCourtID] = resolver.SelectedID()
	form[types.FormFieldDriver] = driverRef
	form[types.FormFieldAgent] = agentRef
	form[types.FormFieldComments] = comments
	form[types.FormFieldCoverageOpportunity] = coverage.OpportunityRef
	form[types.FormFieldCoverageStatus] = coverage.CoverageStatus
	form[types.FormFieldTicketType] = coverage.TypeClassification

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != types.SessionStateReviewing {
		return apperrors.InvalidSessionState(s.state.String(), types.SessionStateFormEditing.String())
	}
	s.formValues = form
	s.state = types.SessionStateFormEditing
	return nil
}

// Back returns from form editing to the review screen, keeping all edits.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != types.SessionStateFormEditing {
		return apperrors.InvalidSessionState(s.state.String(), types.SessionStateReviewing.String())
	}
	s.state = types.SessionStateReviewing
	return nil
}

// SetFormValue updates one form field while in form editing.
func (s *Session) SetFormValue(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != types.SessionStateFormEditing {
		return apperrors.InvalidSessionState(s.state.String(), "form edit")
	}
	s.formValues[key] = value
	return nil
}

// SaveRecord creates the final ticket record. A closed ticket requires an
// outcome; any other status without one defaults to Pending. Failures stay in
// form editing with an inline message that auto-clears; a citation uniqueness
// violation is surfaced with the conflicting record reference.
func (s *Session) SaveRecord(ctx context.Context, wantsFollowOnEntity bool) (string, error) {
	s.mu.Lock()
	if s.state != types.SessionStateFormEditing {
		state := s.state
		s.mu.Unlock()
		return "", apperrors.InvalidSessionState(state.String(), types.SessionStateClosed.String())
	}
	fields := make(map[string]string, len(s.formValues))
	for k, v := range s.formValues {
		fields[k] = v
	}
	record := s.caseRecord
	docSet := s.docSet
	s.mu.Unlock()

	if fields[types.FormFieldTicketStatus] == types.TicketStatusClosed {
		if fields[types.FormFieldTicketOutcome] == "" {
			return "", apperrors.ValidationFailed(
				"Ticket outcome is required",
				"A closed ticket must have an outcome")
		}
	} else if fields[types.FormFieldTicketOutcome] == "" {
		fields[types.FormFieldTicketOutcome] = types.TicketOutcomePending
	}

	recordID, err := s.deps.Tickets.CreateTicket(ctx, fields)
	if err != nil {
		if conflict := apperrors.NewCitationConflict(err); conflict != nil {
			err = conflict
		}
		s.setSaveError(apperrors.UserMessage(err))
		return "", err
	}

	// The audit trail is best-effort: the record already exists.
	sourceRef := ""
	if docSet != nil && len(docSet.Documents) > 0 {
		sourceRef = docSet.Documents[0].ID
	}
	caseRef := s.caseID
	if record != nil && record.CaseID != "" {
		caseRef = record.CaseID
	}
	if err := s.deps.Audit.SaveAuditTrail(ctx, caseRef, recordID, sourceRef, s.reconciler.AuditEntries()); err != nil {
		s.log.Warnw("Audit trail persistence failed", "recordId", recordID, "error", err)
	}

	s.mu.Lock()
	s.state = types.SessionStateClosed
	onSaved := s.OnRecordSaved
	onClosed := s.OnClosed
	s.mu.Unlock()

	s.log.Infow("Record saved, session closed", "recordId", recordID)
	if onSaved != nil {
		onSaved(recordID, wantsFollowOnEntity)
	}
	if onClosed != nil {
		onClosed()
	}
	return recordID, nil
}

// RequestNewEntity hands entity creation off to an external flow, seeded with
// the reviewer's current search term.
func (s *Session) RequestNewEntity(initialTerm string) {
	s.mu.Lock()
	cb := s.OnRequestNewEntity
	s.mu.Unlock()

	if cb != nil {
		cb(initialTerm)
	}
}

// Close ends the session from any state.
func (s *Session) Close() {
	s.mu.Lock()
	s.state = types.SessionStateClosed
	cb := s.OnClosed
	s.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Snapshot returns the session's externally visible state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:           s.id,
		CaseID:       s.caseID,
		State:        s.state,
		ErrorMessage: s.errorMessage,
		Messages:     append([]string(nil), s.messages...),
		Fields:       s.reconciler.Fields(),
		Warnings:     s.reconciler.Warnings(),
		Unprocessed:  append([]types.UnprocessedSource(nil), s.unprocessed...),
		Summary:      append([]types.ProcessingResult(nil), s.summary...),
		SaveError:    s.saveErr,
	}
	if s.resolver != nil {
		state := s.resolver.State()
		snap.Court = &state
	}
	if s.caseRecord != nil {
		snap.PriorRecordRef = s.caseRecord.LinkedTicketRef
	}
	if len(s.formValues) > 0 {
		snap.FormValues = make(map[string]string, len(s.formValues))
		for k, v := range s.formValues {
			snap.FormValues[k] = v
		}
	}
	return snap
}

// evaluate is the barrier's downstream decision. It re-runs on every feed
// re-settlement and only acts while the session is in Loading, which keeps the
// re-runs idempotent.
func (s *Session) evaluate(outcomes map[types.FeedKey]types.FeedOutcome) {
	s.mu.Lock()
	if s.state != types.SessionStateLoading {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	force := s.forceCreate
	resolver := s.resolver
	s.mu.Unlock()

	caseOutcome := outcomes[types.FeedCaseRecord]
	if record, ok := caseOutcome.Payload.(*types.CaseRecord); ok {
		s.mu.Lock()
		s.caseRecord = record
		s.mu.Unlock()

		if record.LinkedTicketRef != "" && !force {
			s.transition(types.SessionStatePriorRecordExists, "")
			return
		}
	} else if caseOutcome.Status == types.FeedFailure {
		// Only the document feed is fatal; the case record degrades to a
		// review without driver and agent details.
		s.appendMessage("Case details could not be loaded; driver and agent information will be missing.")
	}

	docsOutcome := outcomes[types.FeedDocuments]
	if docsOutcome.Status == types.FeedFailure {
		s.transition(types.SessionStateError, apperrors.UserMessage(docsOutcome.Err))
		return
	}
	docSet, _ := docsOutcome.Payload.(*types.DocumentSet)

	if docSet != nil && len(docSet.Documents) > 0 {
		s.mu.Lock()
		s.docSet = docSet
		s.mu.Unlock()

		enumOptions := make(map[string][]types.Option, len(optionFeeds))
		for key, fieldName := range optionFeeds {
			outcome := outcomes[key]
			if options, ok := outcome.Payload.([]types.Option); ok {
				enumOptions[fieldName] = options
			} else if outcome.Status == types.FeedFailure {
				s.appendMessage("Option list " + fieldName + " could not be loaded.")
			}
		}

		hints, err := s.reconciler.Reconcile(
			docSet.Documents, s.cfg.FieldAllowlist, docSet.FieldTypes, docSet.FieldLabels, enumOptions)
		if err != nil {
			// Reconciliation never blocks the workflow; the review screen
			// shows the message instead of fields.
			s.appendMessage(apperrors.UserMessage(err))
			s.transition(types.SessionStateReviewing, "")
			return
		}

		s.transition(types.SessionStateReviewing, "")

		if resolver != nil && (hints.Name != "" || hints.Phone != "" || hints.County != "") {
			go func() {
				if _, err := resolver.ResolveFromHints(ctx, hints); err != nil {
					s.log.Warnw("Court pre-selection failed", "error", err)
					s.appendMessage(apperrors.UserMessage(err))
				}
			}()
		}
		return
	}

	// No processed documents on the case.
	if !s.cfg.ManualProcessingEnabled {
		s.transition(types.SessionStateNoInputAvailable, "")
		return
	}

	sources, err := s.deps.Processing.FetchUnprocessedSources(ctx, s.caseID)
	if err != nil {
		s.log.Errorw("Unprocessed source lookup failed", "error", err)
		s.transition(types.SessionStateError, apperrors.UserMessage(err))
		return
	}
	if len(sources) == 0 {
		s.transition(types.SessionStateNoInputAvailable, "")
		return
	}

	s.mu.Lock()
	s.unprocessed = sources
	s.mu.Unlock()
	s.transition(types.SessionStateAwaitingManual, "")
}

func (s *Session) transition(next types.SessionState, errorMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.IsValidTransition(next) {
		s.log.Errorw("Rejected invalid state transition", "from", s.state, "to", next)
		return
	}
	s.log.Infow("Session state changed", "from", s.state, "to", next)
	s.state = next
	if next == types.SessionStateError {
		s.errorMessage = errorMessage
	}
}

func (s *Session) fetchCaseRecord(ctx context.Context) {
	record, err := s.deps.Cases.GetCase(ctx, s.caseID)
	if err != nil {
		s.barrier.Report(types.FeedCaseRecord, types.FeedOutcome{
			Status: types.FeedFailure,
			Err:    apperrors.FeedFailure(string(types.FeedCaseRecord), err),
		})
		return
	}
	s.barrier.Report(types.FeedCaseRecord, types.FeedOutcome{
		Status:  types.FeedSuccess,
		Payload: record,
	})
}

func (s *Session) fetchDocuments(ctx context.Context) {
	docSet, err := s.deps.Documents.GetDocuments(ctx, s.caseID)
	if err != nil {
		s.barrier.Report(types.FeedDocuments, types.FeedOutcome{
			Status: types.FeedFailure,
			Err:    apperrors.FeedFailure(string(types.FeedDocuments), err),
		})
		return
	}
	s.barrier.Report(types.FeedDocuments, types.FeedOutcome{
		Status:  types.FeedSuccess,
		Payload: docSet,
	})
}

func (s *Session) fetchOptions(ctx context.Context, key types.FeedKey, fieldName string) {
	options, err := s.deps.Options.GetOptions(ctx, fieldName)
	if err != nil {
		s.barrier.Report(key, types.FeedOutcome{
			Status: types.FeedFailure,
			Err:    apperrors.FeedFailure(string(key), err),
		})
		return
	}
	s.barrier.Report(key, types.FeedOutcome{
		Status:  types.FeedSuccess,
		Payload: options,
	})
}

// outcomes rebuilds the current barrier snapshot for a forced re-evaluation.
func (s *Session) outcomes() map[types.FeedKey]types.FeedOutcome {
	snapshot := map[types.FeedKey]types.FeedOutcome{
		types.FeedCaseRecord: s.barrier.Outcome(types.FeedCaseRecord),
		types.FeedDocuments:  s.barrier.Outcome(types.FeedDocuments),
	}
	for key := range optionFeeds {
		snapshot[key] = s.barrier.Outcome(key)
	}
	return snapshot
}

func (s *Session) appendMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// setSaveError installs the inline save failure message and schedules its
// auto-clear. A newer failure supersedes the pending clear.
func (s *Session) setSaveError(msg string) {
	s.mu.Lock()
	s.saveErr = msg
	s.saveErrSeq++
	seq := s.saveErrSeq
	s.mu.Unlock()

	time.AfterFunc(s.cfg.SaveErrorClearAfter, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.saveErrSeq == seq {
			s.saveErr = ""
		}
	})
}

// hasSuccessfulTicket reports whether at least one processed file succeeded
// and was classified as a ticket.
func hasSuccessfulTicket(results []types.ProcessingResult) bool {
	for _, r := range results {
		if r.Success && r.FileType == "Ticket" {
			return true
		}
	}
	return false
}
