package ledgermock

import (
	"context"
	"errors"
	"iter"

	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/ledger"
)

var errUnimplemented = errors.New("ledgermock: method not implemented")

// Ledger is a function-backed stand-in for *ledger.Ledger. Unset mutations
// return errUnimplemented, unset reads find nothing.
type Ledger struct {
	CreateFn     func(ctx context.Context, in ledger.CreateInput) (loan.Record, error)
	TransitionFn func(ctx context.Context, loanID string, to loan.Status, opts ...ledger.TransitionOption) (loan.Record, error)
	GetFn        func(loanID string) (loan.Record, bool)
	ListFn       func(f loan.Filter) iter.Seq[loan.Record]
}

func (m *Ledger) Create(ctx context.Context, in ledger.CreateInput) (loan.Record, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, in)
	}
	return loan.Record{}, errUnimplemented
}

func (m *Ledger) Transition(ctx context.Context, loanID string, to loan.Status, opts ...ledger.TransitionOption) (loan.Record, error) {
	if m.TransitionFn != nil {
		return m.TransitionFn(ctx, loanID, to, opts...)
	}
	return loan.Record{}, errUnimplemented
}

func (m *Ledger) Get(loanID string) (loan.Record, bool) {
	if m.GetFn != nil {
		return m.GetFn(loanID)
	}
	return loan.Record{}, false
}

func (m *Ledger) List(f loan.Filter) iter.Seq[loan.Record] {
	if m.ListFn != nil {
		return m.ListFn(f)
	}
	return func(func(loan.Record) bool) {}
}

// Records adapts a slice into the iterator List returns.
func Records(recs ...loan.Record) iter.Seq[loan.Record] {
	return func(yield func(loan.Record) bool) {
		for _, r := range recs {
			if !yield(r) {
				return
			}
		}
	}
}
