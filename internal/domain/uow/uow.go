package uow

import (
	"context"

	"loan-ledger/internal/domain/loan"
)

type Repos struct {
	Entries  loan.EntryRepository
	Bindings loan.BindingRepository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// convenience: lock the loan's newest entry first, then pass it in
	WithinLoanTx(ctx context.Context, loanID string, fn func(r Repos, head *loan.Entry) error) error
}
