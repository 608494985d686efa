package core

// insert.go persists accepted records one at a time.
//
// This is a best-effort batch append, not a transaction: every record gets
// its own write, a failed write is recorded and the next record proceeds,
// and earlier successes are never rolled back. Each attempt produces an
// InsertOutcome; the outcomes are summarized afterwards so the
// continue-on-failure policy stays visible in the control flow.

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BulkInserter writes accepted records through a Persister.
type BulkInserter struct {
	store   Persister
	workers int
}

// NewBulkInserter creates an inserter. workers > 1 writes records in
// parallel and must only be used with a store that supports concurrent
// independent writes; anything else writes sequentially.
func NewBulkInserter(store Persister, workers int) *BulkInserter {
	if workers < 1 {
		workers = 1
	}
	return &BulkInserter{store: store, workers: workers}
}

// Insert attempts every record and summarizes the outcomes.
func (b *BulkInserter) Insert(ctx context.Context, records []StudentRecord) InsertResult {
	return SummarizeOutcomes(b.Attempt(ctx, records))
}

// Attempt persists every record and returns one outcome per record, in
// input order regardless of the number of workers.
func (b *BulkInserter) Attempt(ctx context.Context, records []StudentRecord) []InsertOutcome {
	outcomes := make([]InsertOutcome, len(records))

	if b.workers == 1 {
		for i, rec := range records {
			outcomes[i] = b.attemptOne(ctx, rec)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, rec := range records {
		g.Go(func() error {
			outcomes[i] = b.attemptOne(ctx, rec)
			return nil
		})
	}
	_ = g.Wait() // attempts never return an error; failures live in outcomes

	return outcomes
}

func (b *BulkInserter) attemptOne(ctx context.Context, rec StudentRecord) InsertOutcome {
	id, err := b.store.Persist(ctx, rec)
	return InsertOutcome{Record: rec, ID: id, Err: err}
}

// SummarizeOutcomes counts successes and lists failures by student name.
func SummarizeOutcomes(outcomes []InsertOutcome) InsertResult {
	var result InsertResult
	for _, o := range outcomes {
		if o.Err == nil {
			result.Inserted++
			continue
		}
		result.Failures = append(result.Failures, InsertFailure{
			Name:  o.Record.Name,
			Error: o.Err.Error(),
			Code:  MapError(o.Err).Code,
		})
	}
	return result
}
