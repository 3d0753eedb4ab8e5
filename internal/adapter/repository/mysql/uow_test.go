package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/domain/uow"
	"loan-ledger/pkg/id"
)

func TestGormUoW_WithinTx_Commit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	guow := NewGormUoW(db)
	entries := NewEntryRepository(db)
	bindings := NewBindingRepository(db)

	loanID := id.NewID32()
	err := guow.WithinTx(ctx, func(r uow.Repos) error {
		g := loan.NewGenesis(1, makeRecord(loanID, 1))
		if err := r.Entries.Append(ctx, &g); err != nil {
			return err
		}
		return r.Bindings.Create(ctx, &loan.CollateralBinding{Digest: "0xd1", LoanID: loanID, BoundAt: time.Now().UTC()})
	})
	if err != nil {
		t.Fatalf("WithinTx commit err: %v", err)
	}

	if _, err := entries.HeadForUpdate(ctx, loanID); err != nil {
		t.Fatalf("entry not visible after commit: %v", err)
	}
	if got, _ := bindings.ListByDigest(ctx, "0xd1"); len(got) != 1 {
		t.Fatalf("binding not visible after commit: %+v", got)
	}
}

func TestGormUoW_WithinTx_Rollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	guow := NewGormUoW(db)
	entries := NewEntryRepository(db)
	bindings := NewBindingRepository(db)

	sentinel := errors.New("boom")
	loanID := id.NewID32()

	err := guow.WithinTx(ctx, func(r uow.Repos) error {
		g := loan.NewGenesis(1, makeRecord(loanID, 1))
		if err := r.Entries.Append(ctx, &g); err != nil {
			return err
		}
		if err := r.Bindings.Create(ctx, &loan.CollateralBinding{Digest: "0xd2", LoanID: loanID, BoundAt: time.Now().UTC()}); err != nil {
			return err
		}
		return sentinel // force rollback
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("WithinTx: want sentinel, got %v", err)
	}

	if _, err := entries.HeadForUpdate(ctx, loanID); !errors.Is(err, loan.ErrNotFound) {
		t.Fatalf("expected entry not found after rollback, got %v", err)
	}
	if got, _ := bindings.ListByDigest(ctx, "0xd2"); len(got) != 0 {
		t.Fatalf("expected no binding after rollback, got %+v", got)
	}
}

func TestGormUoW_WithinLoanTx_PassesHead(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	guow := NewGormUoW(db)
	entries := NewEntryRepository(db)

	loanID := id.NewID32()
	g := loan.NewGenesis(1, makeRecord(loanID, 1))
	if err := entries.Append(ctx, &g); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := guow.WithinLoanTx(ctx, loanID, func(r uow.Repos, head *loan.Entry) error {
		if head == nil || head.Hash != g.Hash {
			t.Fatalf("unexpected head passed to fn: %+v", head)
		}
		rec, err := loan.Fold([]loan.Entry{*head})
		if err != nil {
			return err
		}
		next := loan.NewTransition(2, rec, loan.StatusPendingVerification, "", rec.UpdatedAt)
		return r.Entries.Append(ctx, &next)
	})
	if err != nil {
		t.Fatalf("WithinLoanTx commit err: %v", err)
	}

	head, err := entries.HeadForUpdate(ctx, loanID)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.Status != loan.StatusPendingVerification {
		t.Fatalf("head status = %s", head.Status)
	}
}

func TestGormUoW_WithinLoanTx_Rollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	guow := NewGormUoW(db)
	entries := NewEntryRepository(db)

	loanID := id.NewID32()
	g := loan.NewGenesis(1, makeRecord(loanID, 1))
	if err := entries.Append(ctx, &g); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sentinel := errors.New("stop")
	_ = guow.WithinLoanTx(ctx, loanID, func(r uow.Repos, head *loan.Entry) error {
		rec, _ := loan.Fold([]loan.Entry{*head})
		next := loan.NewTransition(2, rec, loan.StatusPendingVerification, "", rec.UpdatedAt)
		if err := r.Entries.Append(ctx, &next); err != nil {
			return err
		}
		return sentinel
	})

	list, _ := entries.ListByLoanID(ctx, loanID)
	if len(list) != 1 {
		t.Fatalf("rollback must drop the transition, have %d entries", len(list))
	}
}

func TestGormUoW_WithinLoanTx_UnknownLoan(t *testing.T) {
	guow := NewGormUoW(openTestDB(t))
	called := false
	err := guow.WithinLoanTx(context.Background(), "missing", func(uow.Repos, *loan.Entry) error {
		called = true
		return nil
	})
	if !errors.Is(err, loan.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if called {
		t.Fatalf("fn must not run without a head")
	}
}
