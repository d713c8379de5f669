package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

const (
	defaultBulkLimit = 100
	bulkConcurrency  = 8
)

// ResultStatus is the outcome of validating one token.
type ResultStatus string

const (
	StatusScannable    ResultStatus = "scannable"
	StatusScanned      ResultStatus = "scanned"
	StatusNotScannable ResultStatus = "not_scannable"
	StatusNotFound     ResultStatus = "not_found"
	StatusForbidden    ResultStatus = "forbidden"
	StatusError        ResultStatus = "error" // bulk entry whose lookup failed
)

// Result describes a ticket as seen by a check or a scan. Ticket
// fields are left empty for not_found and forbidden outcomes so that
// nothing about the ticket leaks to a caller who may not see it.
type Result struct {
	Token        string
	Status       ResultStatus
	TicketID     string
	EventID      uint64
	TicketStatus model.TicketStatus
	Reasons      []Reason
	ScannedAt    *time.Time
	ScannedBy    *uint64
}

// Valid reports whether the ticket was scannable, or has just been
// scanned by this request.
func (r Result) Valid() bool {
	return r.Status == StatusScannable || r.Status == StatusScanned
}

// BulkResult holds one Result per input token, in input order.
type BulkResult struct {
	Results    []Result
	ValidCount int
}

// Validator runs the redemption state machine.
type Validator struct {
	ledger    *Ledger
	catalog   *Catalog
	bulkLimit int
}

type ValidatorOption func(*Validator)

// WithBulkLimit caps the number of tokens a single bulk check accepts.
func WithBulkLimit(n int) ValidatorOption {
	return func(v *Validator) {
		if n > 0 {
			v.bulkLimit = n
		}
	}
}

// NewValidator shares the ledger's store, notifier and logger.
func NewValidator(ledger *Ledger, catalog *Catalog, opts ...ValidatorOption) *Validator {
	v := &Validator{ledger: ledger, catalog: catalog, bulkLimit: defaultBulkLimit}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check evaluates whether the ticket behind token could be scanned by
// requester right now. It never mutates anything.
func (v *Validator) Check(ctx context.Context, token string, requester model.Principal) (Result, error) {
	res, _, err := v.evaluate(ctx, token, requester)
	metrics.ScanAttempts.WithLabelValues("check", outcome(res, err)).Inc()
	return res, err
}

// Scan redeems the ticket behind token. Exactly one of any number of
// concurrent scans of the same ticket succeeds; the others fail with
// ErrNotScannable and the already_scanned reason.
func (v *Validator) Scan(ctx context.Context, token string, requester model.Principal) (Result, error) {
	res, err := v.scan(ctx, token, requester)
	metrics.ScanAttempts.WithLabelValues("scan", outcome(res, err)).Inc()
	return res, err
}

func (v *Validator) scan(ctx context.Context, token string, requester model.Principal) (Result, error) {
	res, t, err := v.evaluate(ctx, token, requester)
	if err != nil {
		return res, err
	}

	cur, ok, err := v.ledger.markUsed(ctx, t.ID, requester)
	if err != nil {
		return Result{Token: token}, err
	}
	if !ok {
		// Lost the race: judge the record as it is now.
		reasons := scanReasons(cur)
		if len(reasons) == 0 {
			reasons = []Reason{ReasonAlreadyScanned}
		}
		return notScannable(token, cur, reasons)
	}

	v.ledger.log.InfoContext(ctx, "ticket scanned",
		"ticket_id", cur.ID,
		"event_id", cur.EventID,
		"scanned_by", requester.ID,
		"scanned_at", cur.ScannedAt,
	)
	v.ledger.notifier.TicketScanned(ctx, cur)

	res = resultFor(token, cur)
	res.Status = StatusScanned
	return res, nil
}

// BulkCheck runs Check for every token independently. A failure for
// one token is reported in its entry and does not affect the others.
func (v *Validator) BulkCheck(ctx context.Context, tokens []string, requester model.Principal) (BulkResult, error) {
	if len(tokens) == 0 {
		return BulkResult{}, newError(KindInvalidInput, "no tokens provided")
	}
	if len(tokens) > v.bulkLimit {
		return BulkResult{}, newError(KindInvalidInput, fmt.Sprintf("at most %d tokens per request", v.bulkLimit))
	}

	results := make([]Result, len(tokens))
	var g errgroup.Group
	g.SetLimit(bulkConcurrency)
	for i, token := range tokens {
		g.Go(func() error {
			res, _, err := v.evaluate(ctx, token, requester)
			if err != nil && KindOf(err) == "" {
				v.ledger.log.ErrorContext(ctx, "bulk check entry failed", "token_index", i, "err", err)
				res = Result{Token: strings.TrimSpace(token), Status: StatusError}
			}
			metrics.ScanAttempts.WithLabelValues("bulk", outcome(res, err)).Inc()
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return BulkResult{}, fmt.Errorf("bulk check: %w", err)
	}

	out := BulkResult{Results: results}
	for _, r := range results {
		if r.Valid() {
			out.ValidCount++
		}
	}
	return out, nil
}

// evaluate applies the lookup, authorization and state rules in that
// order. The returned Result always carries a status, even on error.
func (v *Validator) evaluate(ctx context.Context, token string, requester model.Principal) (Result, model.Ticket, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Result{Token: token, Status: StatusNotFound}, model.Ticket{}, newError(KindNotFound, "ticket not found")
	}
	t, err := v.ledger.tickets.GetTicketByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return Result{Token: token, Status: StatusNotFound}, model.Ticket{}, newError(KindNotFound, "ticket not found")
		}
		return Result{Token: token}, model.Ticket{}, fmt.Errorf("lookup ticket: %w", err)
	}

	ok, err := v.catalog.CanManage(ctx, t.EventID, requester)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Result{Token: token, Status: StatusNotFound}, model.Ticket{}, newError(KindNotFound, "ticket not found")
		}
		return Result{Token: token}, model.Ticket{}, err
	}
	if !ok {
		return Result{Token: token, Status: StatusForbidden}, model.Ticket{}, newError(KindForbidden, "not an organizer of this ticket's event")
	}

	if reasons := scanReasons(t); len(reasons) > 0 {
		res, err := notScannable(token, t, reasons)
		return res, t, err
	}
	res := resultFor(token, t)
	res.Status = StatusScannable
	return res, t, nil
}

// scanReasons lists every precondition of a scan that t fails.
func scanReasons(t model.Ticket) []Reason {
	var rs []Reason
	if t.Status != model.TicketPaid {
		rs = append(rs, ReasonWrongStatus)
	}
	if !t.IsValid {
		rs = append(rs, ReasonInvalidated)
	}
	if t.ScannedAt != nil {
		rs = append(rs, ReasonAlreadyScanned)
	}
	return rs
}

func notScannable(token string, t model.Ticket, reasons []Reason) (Result, error) {
	res := resultFor(token, t)
	res.Status = StatusNotScannable
	res.Reasons = reasons
	return res, &Error{Kind: KindNotScannable, Msg: "ticket cannot be scanned", Reasons: reasons}
}

func resultFor(token string, t model.Ticket) Result {
	return Result{
		Token:        token,
		TicketID:     t.ID,
		EventID:      t.EventID,
		TicketStatus: t.Status,
		ScannedAt:    t.ScannedAt,
		ScannedBy:    t.ScannedBy,
	}
}

func outcome(res Result, err error) string {
	if res.Status != "" {
		return string(res.Status)
	}
	if err != nil {
		return "error"
	}
	return "unknown"
}
