package loan

import (
	"context"
	"fmt"
	"iter"

	"loan-ledger/internal/collateral"
	"loan-ledger/internal/domain/asset"
	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/ledger"
	"loan-ledger/internal/wallet"

	"github.com/shopspring/decimal"
)

// Ledger is what the usecase needs from *ledger.Ledger.
type Ledger interface {
	Create(ctx context.Context, in ledger.CreateInput) (loan.Record, error)
	Transition(ctx context.Context, loanID string, to loan.Status, opts ...ledger.TransitionOption) (loan.Record, error)
	Get(loanID string) (loan.Record, bool)
	List(f loan.Filter) iter.Seq[loan.Record]
}

type Usecase struct {
	ledger   Ledger
	verifier *collateral.Verifier
}

func NewUsecase(l Ledger, v *collateral.Verifier) *Usecase {
	if v == nil {
		v = collateral.NewVerifier(0)
	}
	return &Usecase{ledger: l, verifier: v}
}

// Deposit records funds supplied by the connected account. Deposits are
// active at once.
func (u *Usecase) Deposit(ctx context.Context, id wallet.Identity, in DepositInput) (*LoanDTO, error) {
	acct, err := wallet.Require(id)
	if err != nil {
		return nil, err
	}
	a, amount, err := parseAmount(in.Asset, in.Amount)
	if err != nil {
		return nil, err
	}
	rec, err := u.ledger.Create(ctx, ledger.CreateInput{
		Kind:     loan.KindDeposit,
		Asset:    a,
		Amount:   amount,
		Borrower: acct.String(),
	})
	if err != nil {
		return nil, err
	}
	return ToDTO(rec), nil
}

// Borrow requests a loan against a collateral document. The document is
// hashed while it streams in and is not retained.
func (u *Usecase) Borrow(ctx context.Context, id wallet.Identity, in BorrowInput) (*LoanDTO, error) {
	acct, err := wallet.Require(id)
	if err != nil {
		return nil, err
	}
	a, amount, err := parseAmount(in.Asset, in.Amount)
	if err != nil {
		return nil, err
	}
	digest, err := u.verifier.DigestReader(in.Document)
	if err != nil {
		return nil, err
	}
	if in.DeclaredDigest != "" {
		declared, err := collateral.ParseDigest(in.DeclaredDigest)
		if err != nil {
			return nil, err
		}
		if declared != digest {
			return nil, fmt.Errorf("%w: declared digest %s, uploaded %s", collateral.ErrInvalidDocument, declared, digest)
		}
	}
	rec, err := u.ledger.Create(ctx, ledger.CreateInput{
		Kind:             loan.KindBorrow,
		Asset:            a,
		Amount:           amount,
		Borrower:         acct.String(),
		CollateralDigest: digest.String(),
	})
	if err != nil {
		return nil, err
	}
	return ToDTO(rec), nil
}

func (u *Usecase) Get(_ context.Context, loanID string) (*LoanDTO, error) {
	rec, ok := u.ledger.Get(loanID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", loan.ErrNotFound, loanID)
	}
	return ToDTO(rec), nil
}

func (u *Usecase) List(ctx context.Context, in ListInput) ([]LoanDTO, error) {
	var f loan.Filter
	if in.Kind != "" {
		f.Kind = loan.Kind(in.Kind)
		if !f.Kind.Valid() {
			return nil, fmt.Errorf("%w: kind %q", loan.ErrInvalidInput, in.Kind)
		}
	}
	if in.Status != "" {
		st, err := loan.ParseStatus(in.Status)
		if err != nil {
			return nil, err
		}
		f.Statuses = []loan.Status{st}
	}
	if in.Borrower != "" {
		acct, err := wallet.ParseAccount(in.Borrower)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", loan.ErrInvalidInput, err)
		}
		f.Borrower = acct.String()
	}
	if in.Asset != "" {
		a, err := asset.Parse(in.Asset)
		if err != nil {
			return nil, err
		}
		f.Asset = a
	}

	out := []LoanDTO{}
	for rec := range u.ledger.List(f) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, *ToDTO(rec))
	}
	return out, nil
}

// Transition applies a status change on behalf of the connected account.
// Submitting is the borrower's call; taking a borrow active makes the caller
// (or the named lender) its lender, and nobody lends to themselves.
func (u *Usecase) Transition(ctx context.Context, id wallet.Identity, in TransitionInput) (*LoanDTO, error) {
	acct, err := wallet.Require(id)
	if err != nil {
		return nil, err
	}
	to, err := loan.ParseStatus(in.Status)
	if err != nil {
		return nil, err
	}
	rec, ok := u.ledger.Get(in.LoanID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", loan.ErrNotFound, in.LoanID)
	}

	var opts []ledger.TransitionOption
	switch {
	case to == loan.StatusPendingVerification && rec.Borrower != acct.String():
		return nil, fmt.Errorf("%w: only the borrower submits a request", loan.ErrForbidden)
	case to == loan.StatusActive && rec.Kind == loan.KindBorrow:
		lender := acct
		if in.Lender != "" {
			if lender, err = wallet.ParseAccount(in.Lender); err != nil {
				return nil, fmt.Errorf("%w: %v", loan.ErrInvalidInput, err)
			}
		}
		if lender.String() == rec.Borrower {
			return nil, fmt.Errorf("%w: a borrower cannot fund their own loan", loan.ErrForbidden)
		}
		opts = append(opts, ledger.WithLender(lender.String()))
	case in.Lender != "":
		return nil, fmt.Errorf("%w: lender is only set when a borrow becomes active", loan.ErrInvalidInput)
	}

	next, err := u.ledger.Transition(ctx, in.LoanID, to, opts...)
	if err != nil {
		return nil, err
	}
	return ToDTO(next), nil
}

func parseAmount(assetIn, amountIn string) (asset.Asset, decimal.Decimal, error) {
	a, err := asset.Parse(assetIn)
	if err != nil {
		return "", decimal.Zero, err
	}
	amount, err := a.ParseAmount(amountIn)
	if err != nil {
		return "", decimal.Zero, err
	}
	return a, amount, nil
}
