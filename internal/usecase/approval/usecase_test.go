package approval

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"loan-ledger/internal/collateral"
	domainLoan "loan-ledger/internal/domain/loan"
	"loan-ledger/internal/ledger"
	"loan-ledger/internal/testutil/ledgermock"
	"loan-ledger/internal/wallet"
)

const (
	borrower = "0x742d35cc6634c0532925a3b844bc9e7595f0beb3"
	officer  = "0x8ba1f109551bd432803012645ac136ddd64dba72"
	document = "title deed, parcel 88-B, Sleman"
)

func fixture(t *testing.T, rec domainLoan.Record) (*ledgermock.Ledger, *[]domainLoan.Status) {
	t.Helper()
	var moves []domainLoan.Status
	m := &ledgermock.Ledger{
		GetFn: func(id string) (domainLoan.Record, bool) {
			if id != rec.LoanID {
				return domainLoan.Record{}, false
			}
			return rec, true
		},
		TransitionFn: func(_ context.Context, id string, to domainLoan.Status, _ ...ledger.TransitionOption) (domainLoan.Record, error) {
			if !domainLoan.CanTransition(rec.Status, to) {
				return domainLoan.Record{}, domainLoan.ErrIllegalTransition
			}
			moves = append(moves, to)
			next := rec
			next.Status = to
			next.UpdatedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
			return next, nil
		},
	}
	return m, &moves
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	rec := domainLoan.Record{LoanID: "LN-1", Kind: domainLoan.KindBorrow, Borrower: borrower, Status: domainLoan.StatusRequested}

	tests := []struct {
		name    string
		id      wallet.Identity
		loanID  string
		wantErr error
	}{
		{"borrower submits", wallet.Static(borrower), "LN-1", nil},
		{"someone else", wallet.Static(officer), "LN-1", domainLoan.ErrForbidden},
		{"not connected", wallet.Static(""), "LN-1", wallet.ErrNotConnected},
		{"missing loan", wallet.Static(borrower), "LN-9", domainLoan.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, moves := fixture(t, rec)
			got, err := NewUsecase(m, nil).Submit(ctx, tt.id, tt.loanID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
				if len(*moves) != 0 {
					t.Fatalf("no transition expected, got %v", *moves)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if got.Status != domainLoan.StatusPendingVerification {
				t.Fatalf("status = %s", got.Status)
			}
		})
	}
}

func TestReview(t *testing.T) {
	ctx := context.Background()
	v := collateral.NewVerifier(0)
	digest, err := v.Digest([]byte(document))
	if err != nil {
		t.Fatal(err)
	}
	pending := domainLoan.Record{
		LoanID:           "LN-1",
		Kind:             domainLoan.KindBorrow,
		Borrower:         borrower,
		CollateralDigest: digest.String(),
		Status:           domainLoan.StatusPendingVerification,
	}
	bare := pending
	bare.CollateralDigest = ""
	requested := pending
	requested.Status = domainLoan.StatusRequested

	tests := []struct {
		name        string
		rec         domainLoan.Record
		id          wallet.Identity
		doc         io.Reader
		wantErr     error
		wantStatus  domainLoan.Status
		wantOutcome string
	}{
		{"matching document approves", pending, wallet.Static(officer), strings.NewReader(document), nil, domainLoan.StatusApproved, "match"},
		{"altered document rejects", pending, wallet.Static(officer), strings.NewReader(document + "."), nil, domainLoan.StatusRejected, "mismatch"},
		{"no collateral rejects", bare, wallet.Static(officer), nil, nil, domainLoan.StatusRejected, OutcomeNoCollateral},
		{"empty upload changes nothing", pending, wallet.Static(officer), strings.NewReader(""), collateral.ErrInvalidDocument, "", ""},
		{"borrower cannot review", pending, wallet.Static(borrower), strings.NewReader(document), domainLoan.ErrForbidden, "", ""},
		{"not yet submitted", requested, wallet.Static(officer), strings.NewReader(document), domainLoan.ErrIllegalTransition, "", ""},
		{"not connected", pending, nil, strings.NewReader(document), wallet.ErrNotConnected, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, moves := fixture(t, tt.rec)
			dto, err := NewUsecase(m, v).Review(ctx, tt.id, ReviewInput{LoanID: tt.rec.LoanID, Document: tt.doc})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
				if len(*moves) != 0 {
					t.Fatalf("no transition expected, got %v", *moves)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if dto.Status != string(tt.wantStatus) || dto.Outcome != tt.wantOutcome {
				t.Fatalf("got %s/%s, want %s/%s", dto.Status, dto.Outcome, tt.wantStatus, tt.wantOutcome)
			}
			if dto.Reviewer != officer || dto.ReviewedAt.IsZero() {
				t.Fatalf("unexpected dto: %+v", dto)
			}
		})
	}
}

func TestReview_LedgerErrorSurfaces(t *testing.T) {
	boom := errors.New("journal unavailable")
	m := &ledgermock.Ledger{
		GetFn: func(string) (domainLoan.Record, bool) {
			return domainLoan.Record{LoanID: "LN-1", Borrower: borrower, Status: domainLoan.StatusPendingVerification}, true
		},
		TransitionFn: func(context.Context, string, domainLoan.Status, ...ledger.TransitionOption) (domainLoan.Record, error) {
			return domainLoan.Record{}, boom
		},
	}
	if _, err := NewUsecase(m, nil).Review(context.Background(), wallet.Static(officer), ReviewInput{LoanID: "LN-1"}); !errors.Is(err, boom) {
		t.Fatalf("want %v, got %v", boom, err)
	}
}
