// Package memory is the journal used by STORE_DRIVER=memory and by tests.
// Nothing survives a restart.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"loan-ledger/internal/domain/loan"
)

type Journal struct {
	mu       sync.RWMutex
	entries  []loan.Entry
	byLoan   map[string][]int
	seqs     map[uint64]struct{}
	bindings []loan.CollateralBinding
}

func NewJournal() *Journal {
	return &Journal{
		byLoan: make(map[string][]int),
		seqs:   make(map[uint64]struct{}),
	}
}

// Append enforces the same constraints as the SQL schema: unique seq, one
// genesis per loan, and transitions that extend the current head.
func (j *Journal) Append(ctx context.Context, e loan.Entry, b *loan.CollateralBinding) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, dup := j.seqs[e.Seq]; dup {
		return fmt.Errorf("%w: seq %d already journaled", loan.ErrConflict, e.Seq)
	}
	idx := j.byLoan[e.LoanID]
	switch {
	case e.Genesis() && len(idx) > 0:
		return fmt.Errorf("%w: loan %s already opened", loan.ErrConflict, e.LoanID)
	case !e.Genesis() && len(idx) == 0:
		return fmt.Errorf("%w: %s", loan.ErrNotFound, e.LoanID)
	case !e.Genesis() && j.entries[idx[len(idx)-1]].Hash != e.PrevHash:
		return fmt.Errorf("%w: loan %s", loan.ErrConflict, e.LoanID)
	}

	e.ID = uint64(len(j.entries) + 1)
	j.entries = append(j.entries, e)
	j.byLoan[e.LoanID] = append(idx, len(j.entries)-1)
	j.seqs[e.Seq] = struct{}{}
	if b != nil {
		bb := *b
		bb.ID = uint64(len(j.bindings) + 1)
		j.bindings = append(j.bindings, bb)
	}
	return nil
}

func (j *Journal) Entries(_ context.Context, loanID string) ([]loan.Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	idx := j.byLoan[loanID]
	out := make([]loan.Entry, 0, len(idx))
	for _, i := range idx {
		out = append(out, j.entries[i])
	}
	return out, nil
}

// Replay walks a copy of the journal in seq order.
func (j *Journal) Replay(ctx context.Context, fn func(loan.Entry) error) error {
	j.mu.RLock()
	all := slices.Clone(j.entries)
	j.mu.RUnlock()

	slices.SortFunc(all, func(a, b loan.Entry) int { return cmp.Compare(a.Seq, b.Seq) })
	for _, e := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Bindings returns the collateral bindings for digest.
func (j *Journal) Bindings(_ context.Context, digest string) ([]loan.CollateralBinding, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []loan.CollateralBinding
	for _, b := range j.bindings {
		if b.Digest == digest {
			out = append(out, b)
		}
	}
	return out, nil
}
