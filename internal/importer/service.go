package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// errRunAborted signals the enclosing transaction to roll back the whole
// run under the abort-on-any-error policy. It never escapes Run.
var errRunAborted = errors.New("import run aborted")

var validate = validator.New()

// Service runs import pipelines. The pipeline is strictly sequential: one
// group after another, no internal parallelism; cross-request concurrency is
// the database's problem.
type Service struct {
	logger    *slog.Logger
	lookup    Lookup
	submitter Submitter
	results   *ResultStore
}

// NewService constructs the import service. The result store is optional;
// without it results only live in the response.
func NewService(logger *slog.Logger, lookup Lookup, submitter Submitter, results *ResultStore) *Service {
	return &Service{
		logger:    logger,
		lookup:    lookup,
		submitter: submitter,
		results:   results,
	}
}

// Run executes one import over the raw spreadsheet bytes. The returned
// Result is always non-nil when err is nil, including fully aborted runs;
// reader failures (unreadable file, missing columns) are returned as errors
// because no grouping happened at all.
func (s *Service) Run(ctx context.Context, file []byte, opts Options) (*Result, error) {
	if opts.TrackedLines == "" {
		opts.TrackedLines = TrackedSkip
	}
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("importer: invalid options: %w", err)
	}

	rows, err := ReadWorkbook(file, opts.Sheet, opts.Columns)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:     uuid.NewString(),
		Simulated: opts.Simulate,
	}

	rawGroups, errs := groupRows(rows)
	res.Errors = append(res.Errors, errs...)
	res.GroupsDetected = len(rawGroups)

	prep := &preparer{lookup: s.lookup, opts: opts}
	var groups []*OrderGroup
	lineCounts := make(map[string]int)
	for _, rg := range rawGroups {
		group, groupErrs, err := prep.prepare(ctx, rg)
		if err != nil {
			return nil, fmt.Errorf("importer: prepare group %s: %w", rg.key, err)
		}
		res.Errors = append(res.Errors, groupErrs...)
		if group != nil {
			groups = append(groups, group)
			lineCounts[group.Header.OrderKey] = len(group.Lines)
		}
	}

	if opts.Simulate {
		res.Summary = renderSimulation(res, rawGroups, lineCounts)
		s.store(ctx, res)
		return res, nil
	}

	if opts.BestEffort {
		s.commitBestEffort(ctx, groups, opts, res)
	} else {
		s.commitAtomic(ctx, groups, opts, res)
	}

	res.Summary = renderSummary(res)
	s.store(ctx, res)
	return res, nil
}

// commitAtomic wraps every creation in a single transaction and rolls the
// whole run back as soon as any error, old or new, is on record. Validation
// errors skip submission entirely, so a commit run reports exactly the
// errors a simulation of the same file reported.
func (s *Service) commitAtomic(ctx context.Context, groups []*OrderGroup, opts Options, res *Result) {
	if len(res.Errors) > 0 {
		res.Aborted = true
		return
	}

	created := 0
	err := s.submitter.Atomic(ctx, func(ctx context.Context, c Creator) error {
		for _, group := range groups {
			if !s.submitGroup(ctx, c, group, opts, res) {
				continue
			}
			created++
		}
		if len(res.Errors) > 0 {
			return errRunAborted
		}
		return nil
	})
	switch {
	case err == nil:
		res.OrdersCreated = created
	case errors.Is(err, errRunAborted):
		res.Aborted = true
	default:
		res.Aborted = true
		res.Errors = append(res.Errors, ImportError{Kind: KindSubmissionFailure,
			Message: fmt.Sprintf("import transaction failed: %v", err)})
	}
}

// commitBestEffort submits each validated group in its own transaction and
// keeps going past failures.
func (s *Service) commitBestEffort(ctx context.Context, groups []*OrderGroup, opts Options, res *Result) {
	for _, group := range groups {
		if s.submitGroup(ctx, s.submitter, group, opts, res) {
			res.OrdersCreated++
		}
	}
}

// submitGroup creates one order plus its invoice follow-up. It reports
// failures into res and returns whether the order was created.
func (s *Service) submitGroup(ctx context.Context, c Creator, group *OrderGroup, opts Options, res *Result) bool {
	key := group.Header.OrderKey

	created, err := c.Submit(ctx, Submission{
		OrderKey:     key,
		PartnerID:    group.Header.PartnerID,
		CompanyID:    group.Header.CompanyID,
		OrderDate:    group.Header.OrderDate,
		InvoiceDate:  group.Header.InvoiceDate,
		Lines:        group.Lines,
		TrackedLines: opts.TrackedLines,
		AutoProcess:  true,
	})
	if err != nil {
		res.Errors = append(res.Errors, ImportError{OrderKey: key, Kind: KindSubmissionFailure,
			Message: fmt.Sprintf("order creation failed: %v", err)})
		return false
	}
	for _, note := range created.Notes {
		res.Notes = append(res.Notes, key+": "+note)
	}

	if group.Header.JournalCode != "" && created.InvoiceID != 0 {
		journal, err := s.lookup.JournalByCode(ctx, group.Header.CompanyID, group.Header.JournalCode)
		if err != nil {
			res.Errors = append(res.Errors, ImportError{OrderKey: key, Kind: KindUnresolvedJournal,
				Message: fmt.Sprintf("journal lookup %q failed: %v", group.Header.JournalCode, err)})
			return true
		}
		if journal == nil {
			res.Errors = append(res.Errors, ImportError{OrderKey: key, Kind: KindUnresolvedJournal,
				Message: fmt.Sprintf("journal with code %q not found", group.Header.JournalCode)})
		} else if err := c.SetInvoiceJournal(ctx, created.InvoiceID, journal.ID); err != nil {
			res.Errors = append(res.Errors, ImportError{OrderKey: key, Kind: KindUnresolvedJournal,
				Message: fmt.Sprintf("journal reassignment failed: %v", err)})
		}
	}

	if opts.ValidateInvoice && created.InvoiceID != 0 {
		if err := c.PostInvoice(ctx, created.InvoiceID); err != nil {
			res.Errors = append(res.Errors, ImportError{OrderKey: key, Kind: KindInvoicePostingFailure,
				Message: fmt.Sprintf("invoice posting failed: %v", err)})
		}
	}

	return true
}

func (s *Service) store(ctx context.Context, res *Result) {
	if s.results == nil {
		return
	}
	if err := s.results.Save(ctx, res); err != nil {
		s.logger.Warn("store import result", slog.String("run_id", res.RunID), slog.Any("error", err))
	}
}

// Result fetches a stored run result.
func (s *Service) Result(ctx context.Context, runID string) (*Result, error) {
	if s.results == nil {
		return nil, errors.New("importer: result store not configured")
	}
	return s.results.Get(ctx, runID)
}
