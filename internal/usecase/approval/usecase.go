package approval

import (
	"context"
	"fmt"

	"loan-ledger/internal/collateral"
	domainLoan "loan-ledger/internal/domain/loan"
	"loan-ledger/internal/ledger"
	"loan-ledger/internal/wallet"
)

// OutcomeNoCollateral is reported when a loan under review carries no digest.
const OutcomeNoCollateral = "no_collateral"

// Ledger is the part of *ledger.Ledger the review flow touches.
type Ledger interface {
	Get(loanID string) (domainLoan.Record, bool)
	Transition(ctx context.Context, loanID string, to domainLoan.Status, opts ...ledger.TransitionOption) (domainLoan.Record, error)
}

type Usecase struct {
	ledger   Ledger
	verifier *collateral.Verifier
}

// NewUsecase: a nil verifier falls back to the default upload limit.
func NewUsecase(l Ledger, v *collateral.Verifier) *Usecase {
	if v == nil {
		v = collateral.NewVerifier(0)
	}
	return &Usecase{ledger: l, verifier: v}
}

// Submit hands a requested borrow to review. Only its borrower may do so.
func (u *Usecase) Submit(ctx context.Context, id wallet.Identity, loanID string) (domainLoan.Record, error) {
	acct, err := wallet.Require(id)
	if err != nil {
		return domainLoan.Record{}, err
	}
	rec, ok := u.ledger.Get(loanID)
	if !ok {
		return domainLoan.Record{}, fmt.Errorf("%w: %s", domainLoan.ErrNotFound, loanID)
	}
	if rec.Borrower != acct.String() {
		return domainLoan.Record{}, fmt.Errorf("%w: only the borrower submits a request", domainLoan.ErrForbidden)
	}
	return u.ledger.Transition(ctx, loanID, domainLoan.StatusPendingVerification)
}

// Review re-hashes the presented document against the digest the loan was
// created with. A match approves, anything else rejects. A document that
// cannot be read leaves the loan where it is.
func (u *Usecase) Review(ctx context.Context, id wallet.Identity, in ReviewInput) (*ReviewDTO, error) {
	acct, err := wallet.Require(id)
	if err != nil {
		return nil, err
	}
	rec, ok := u.ledger.Get(in.LoanID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainLoan.ErrNotFound, in.LoanID)
	}
	if rec.Borrower == acct.String() {
		return nil, fmt.Errorf("%w: a borrower cannot review their own loan", domainLoan.ErrForbidden)
	}
	// State guard: only pending_verification is reviewable
	if rec.Status != domainLoan.StatusPendingVerification {
		return nil, fmt.Errorf("%w: %s is %s", domainLoan.ErrIllegalTransition, rec.LoanID, rec.Status)
	}

	outcome := OutcomeNoCollateral
	to := domainLoan.StatusRejected
	if rec.HasCollateral() {
		o, err := u.verifier.VerifyReader(in.Document, collateral.Digest(rec.CollateralDigest))
		if err != nil {
			return nil, err
		}
		outcome = string(o)
		if o == collateral.Match {
			to = domainLoan.StatusApproved
		}
	}

	next, err := u.ledger.Transition(ctx, rec.LoanID, to)
	if err != nil {
		return nil, err
	}
	return &ReviewDTO{
		LoanID:     next.LoanID,
		Status:     string(next.Status),
		Outcome:    outcome,
		Reviewer:   acct.String(),
		ReviewedAt: next.UpdatedAt,
	}, nil
}
