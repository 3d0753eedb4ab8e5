package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/domain/uow"
	"loan-ledger/internal/testutil/bindingmock"
	"loan-ledger/internal/testutil/entrymock"
	"loan-ledger/internal/testutil/uowmock"
	"loan-ledger/pkg/id"
)

func newJournal(t *testing.T) (*Journal, *EntryRepository, *BindingRepository) {
	db := openTestDB(t)
	entries, bindings := NewEntryRepository(db), NewBindingRepository(db)
	return NewJournal(NewGormUoW(db), entries, bindings), entries, bindings
}

func TestJournal_GenesisWithBinding(t *testing.T) {
	j, _, bindings := newJournal(t)
	ctx := context.Background()

	loanID := id.NewID32()
	g := loan.NewGenesis(1, makeRecord(loanID, 1))
	b := &loan.CollateralBinding{Digest: "0xabc", LoanID: loanID, BoundAt: time.Now().UTC()}
	if err := j.Append(ctx, g, b); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if b.ID != 0 {
		t.Fatalf("caller's binding must not be mutated")
	}
	got, _ := bindings.ListByDigest(ctx, "0xabc")
	if len(got) != 1 || got[0].LoanID != loanID {
		t.Fatalf("binding = %+v", got)
	}
	// the journal reads back what the genesis transaction stored
	viaJournal, err := j.Bindings(ctx, "0xabc")
	if err != nil || len(viaJournal) != 1 || viaJournal[0].LoanID != loanID {
		t.Fatalf("Journal.Bindings = %+v, %v", viaJournal, err)
	}

	// a second genesis binding for the same loan fails and takes its entry with it
	g2 := loan.NewGenesis(2, makeRecord(loanID+"x", 2))
	dup := &loan.CollateralBinding{Digest: "0xabc", LoanID: loanID, BoundAt: time.Now().UTC()}
	if err := j.Append(ctx, g2, dup); err == nil {
		t.Fatalf("expected binding unique violation")
	}
	if es, _ := j.Entries(ctx, loanID+"x"); len(es) != 0 {
		t.Fatalf("entry must roll back with its binding, got %d", len(es))
	}
}

func TestJournal_TransitionChecksHead(t *testing.T) {
	j, _, _ := newJournal(t)
	ctx := context.Background()

	loanID := id.NewID32()
	g := loan.NewGenesis(1, makeRecord(loanID, 1))
	if err := j.Append(ctx, g, nil); err != nil {
		t.Fatalf("Append genesis: %v", err)
	}
	rec, _ := loan.Fold([]loan.Entry{g})

	next := loan.NewTransition(2, rec, loan.StatusPendingVerification, "", rec.UpdatedAt)
	if err := j.Append(ctx, next, nil); err != nil {
		t.Fatalf("Append transition: %v", err)
	}

	// built from the old head, so it no longer extends the chain
	stale := loan.NewTransition(3, rec, loan.StatusPendingVerification, "", rec.UpdatedAt)
	if err := j.Append(ctx, stale, nil); !errors.Is(err, loan.ErrConflict) {
		t.Fatalf("stale: want ErrConflict, got %v", err)
	}

	withBinding := loan.NewTransition(4, rec, loan.StatusPendingVerification, "", rec.UpdatedAt)
	if err := j.Append(ctx, withBinding, &loan.CollateralBinding{}); !errors.Is(err, loan.ErrInvalidInput) {
		t.Fatalf("binding on transition: want ErrInvalidInput, got %v", err)
	}

	orphan := loan.NewTransition(5, loan.Record{LoanID: "nope", HeadHash: "0x1"}, loan.StatusApproved, "", time.Now())
	if err := j.Append(ctx, orphan, nil); !errors.Is(err, loan.ErrNotFound) {
		t.Fatalf("orphan: want ErrNotFound, got %v", err)
	}

	var seen []uint64
	if err := j.Replay(ctx, func(e loan.Entry) error {
		seen = append(seen, e.Seq)
		return nil
	}); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("Replay seqs = %v", seen)
	}
}

func TestJournal_PropagatesRepositoryErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	entries := &entrymock.Repo{AppendFn: func(context.Context, *loan.Entry) error { return boom }}
	bindings := &bindingmock.Repo{}
	u := uowmock.New().WithWithinTx(func(ctx context.Context, fn func(uow.Repos) error) error {
		return fn(uow.Repos{Entries: entries, Bindings: bindings})
	})
	j := NewJournal(u, entries, bindings)

	g := loan.NewGenesis(1, makeRecord("L1", 1))
	if err := j.Append(ctx, g, nil); !errors.Is(err, boom) {
		t.Fatalf("entry error: want boom, got %v", err)
	}

	entries.AppendFn = nil
	bindings.CreateFn = func(context.Context, *loan.CollateralBinding) error { return boom }
	if err := j.Append(ctx, g, &loan.CollateralBinding{Digest: "0x1", LoanID: "L1"}); !errors.Is(err, boom) {
		t.Fatalf("binding error: want boom, got %v", err)
	}

	bindings.ListByDigestFn = func(context.Context, string) ([]loan.CollateralBinding, error) { return nil, boom }
	if _, err := j.Bindings(ctx, "0x1"); !errors.Is(err, boom) {
		t.Fatalf("bindings read error: want boom, got %v", err)
	}

	// transitions go through WithinLoanTx, which this mock leaves unimplemented
	rec, _ := loan.Fold([]loan.Entry{g})
	if err := j.Append(ctx, loan.NewTransition(2, rec, loan.StatusPendingVerification, "", rec.UpdatedAt), nil); err == nil {
		t.Fatalf("expected error from unimplemented WithinLoanTx")
	}
}
