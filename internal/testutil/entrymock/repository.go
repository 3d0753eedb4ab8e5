package entrymock

import (
	"context"

	"loan-ledger/internal/domain/loan"
)

var _ loan.EntryRepository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies loan.EntryRepository.
// Writes default to success, reads to context.Canceled.
type Repo struct {
	AppendFn       func(ctx context.Context, e *loan.Entry) error
	ListByLoanIDFn func(ctx context.Context, loanID string) ([]loan.Entry, error)
	ScanFn         func(ctx context.Context, fn func(loan.Entry) error) error
}

func (m *Repo) Append(ctx context.Context, e *loan.Entry) error {
	if m.AppendFn != nil {
		return m.AppendFn(ctx, e)
	}
	return nil
}

func (m *Repo) ListByLoanID(ctx context.Context, loanID string) ([]loan.Entry, error) {
	if m.ListByLoanIDFn != nil {
		return m.ListByLoanIDFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *Repo) Scan(ctx context.Context, fn func(loan.Entry) error) error {
	if m.ScanFn != nil {
		return m.ScanFn(ctx, fn)
	}
	return context.Canceled
}
