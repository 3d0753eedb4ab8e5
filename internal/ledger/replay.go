package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"loan-ledger/internal/domain/loan"

	"github.com/sirupsen/logrus"
)

var ErrNotEmpty = errors.New("ledger already holds records")

// Replay rebuilds the ledger from its journal. It must run before the ledger
// serves traffic and fails on the first entry that does not extend its chain.
// It returns the number of entries applied.
func (l *Ledger) Replay(ctx context.Context) (int, error) {
	if l.Len() > 0 || l.seq.Load() > 0 {
		return 0, ErrNotEmpty
	}

	state := make(map[string]*loan.Record)
	var order []string
	var maxSeq uint64
	n := 0
	err := l.journal.Replay(ctx, func(e loan.Entry) error {
		cur := state[e.LoanID]
		next, err := loan.Apply(cur, e)
		if err != nil {
			return err
		}
		if cur == nil {
			order = append(order, e.LoanID)
		}
		state[e.LoanID] = &next
		maxSeq = max(maxSeq, e.Seq)
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("replay journal: %w", err)
	}

	for _, loanID := range order {
		rec := *state[loanID]
		sh := l.shardFor(loanID)
		sl := &slot{}
		sh.mu.Lock()
		sh.slots[loanID] = sl
		sh.mu.Unlock()
		if rec.CollateralDigest != "" {
			l.bindDigest(rec.CollateralDigest, loanID)
		}
		l.commit(func(v uint64) {
			sl.head.Store(&version{rec: rec, commit: v})
		})
	}
	l.seq.Store(maxSeq)

	l.log.WithFields(logrus.Fields{"entries": n, "loans": len(order), "seq": maxSeq}).Info("ledger replayed")
	return n, nil
}

// Audit re-reads the journal of one loan and checks it folds to the record the
// ledger currently serves.
func (l *Ledger) Audit(ctx context.Context, loanID string) error {
	rec, ok := l.Get(loanID)
	if !ok {
		return fmt.Errorf("%w: %s", loan.ErrNotFound, loanID)
	}
	return l.AuditRecord(ctx, rec)
}

// AuditRecord checks rec, typically read from a snapshot, against the journal.
// Entries appended after rec was read are ignored.
func (l *Ledger) AuditRecord(ctx context.Context, rec loan.Record) error {
	entries, err := l.journal.Entries(ctx, rec.LoanID)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	head := slices.IndexFunc(entries, func(e loan.Entry) bool { return e.Hash == rec.HeadHash })
	if head < 0 {
		return fmt.Errorf("%w: loan %s head %s not in journal", loan.ErrTampered, rec.LoanID, rec.HeadHash)
	}
	cur, err := loan.Fold(entries[:head+1])
	if err != nil {
		return err
	}
	if !sameRecord(cur, rec) {
		return fmt.Errorf("%w: loan %s differs from its journal", loan.ErrTampered, rec.LoanID)
	}
	if rec.HasCollateral() {
		return l.auditBinding(ctx, rec)
	}
	return nil
}

// auditBinding checks the collateral binding stored with the genesis entry.
func (l *Ledger) auditBinding(ctx context.Context, rec loan.Record) error {
	bindings, err := l.journal.Bindings(ctx, rec.CollateralDigest)
	if err != nil {
		return fmt.Errorf("read bindings: %w", err)
	}
	if !slices.ContainsFunc(bindings, func(b loan.CollateralBinding) bool { return b.LoanID == rec.LoanID }) {
		return fmt.Errorf("%w: loan %s has no stored binding for %s", loan.ErrTampered, rec.LoanID, rec.CollateralDigest)
	}
	return nil
}

func sameRecord(a, b loan.Record) bool {
	return a.LoanID == b.LoanID &&
		a.Kind == b.Kind &&
		a.Asset == b.Asset &&
		a.Amount.Equal(b.Amount) &&
		a.Borrower == b.Borrower &&
		a.Lender == b.Lender &&
		a.CollateralDigest == b.CollateralDigest &&
		a.Status == b.Status &&
		a.TxRef == b.TxRef &&
		a.Seq == b.Seq
}
