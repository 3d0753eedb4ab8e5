package mysql

import (
	"context"
	"fmt"

	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/domain/uow"
)

// Journal persists ledger entries through a unit of work. A genesis entry and
// its collateral binding commit together; a transition commits only if it
// still extends the stored head.
type Journal struct {
	uow      uow.UnitOfWork
	entries  loan.EntryRepository
	bindings loan.BindingRepository
}

var _ loan.Journal = (*Journal)(nil)

func NewJournal(u uow.UnitOfWork, entries loan.EntryRepository, bindings loan.BindingRepository) *Journal {
	return &Journal{uow: u, entries: entries, bindings: bindings}
}

func (j *Journal) Append(ctx context.Context, e loan.Entry, b *loan.CollateralBinding) error {
	if e.Genesis() {
		return j.uow.WithinTx(ctx, func(r uow.Repos) error {
			if err := r.Entries.Append(ctx, &e); err != nil {
				return fmt.Errorf("append entry: %w", err)
			}
			if b == nil {
				return nil
			}
			bb := *b
			if err := r.Bindings.Create(ctx, &bb); err != nil {
				return fmt.Errorf("bind collateral: %w", err)
			}
			return nil
		})
	}
	if b != nil {
		return fmt.Errorf("%w: collateral is bound at creation only", loan.ErrInvalidInput)
	}
	return j.uow.WithinLoanTx(ctx, e.LoanID, func(r uow.Repos, head *loan.Entry) error {
		if head.Hash != e.PrevHash {
			return fmt.Errorf("%w: loan %s head is %s", loan.ErrConflict, e.LoanID, head.Hash)
		}
		if err := r.Entries.Append(ctx, &e); err != nil {
			return fmt.Errorf("append entry: %w", err)
		}
		return nil
	})
}

func (j *Journal) Entries(ctx context.Context, loanID string) ([]loan.Entry, error) {
	return j.entries.ListByLoanID(ctx, loanID)
}

func (j *Journal) Replay(ctx context.Context, fn func(loan.Entry) error) error {
	return j.entries.Scan(ctx, fn)
}

func (j *Journal) Bindings(ctx context.Context, digest string) ([]loan.CollateralBinding, error) {
	return j.bindings.ListByDigest(ctx, digest)
}
