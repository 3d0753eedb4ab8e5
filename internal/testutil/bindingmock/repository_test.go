package bindingmock

import (
	"context"
	"errors"
	"testing"

	"loan-ledger/internal/domain/loan"
)

func TestRepo_Create(t *testing.T) {
	ctx := context.Background()
	b := &loan.CollateralBinding{Digest: "0xd", LoanID: "LN-1"}

	wantErr := errors.New("boom")
	m := &Repo{
		CreateFn: func(_ context.Context, got *loan.CollateralBinding) error {
			if got != b {
				t.Fatalf("arg mismatch")
			}
			return wantErr
		},
	}
	if err := m.Create(ctx, b); !errors.Is(err, wantErr) {
		t.Fatalf("Create: want %v, got %v", wantErr, err)
	}

	m = &Repo{}
	if err := m.Create(ctx, b); err != nil {
		t.Fatalf("Create default: want nil, got %v", err)
	}
}

func TestRepo_ListByDigest(t *testing.T) {
	ctx := context.Background()
	want := []loan.CollateralBinding{{Digest: "0xd", LoanID: "LN-1"}}

	m := &Repo{
		ListByDigestFn: func(_ context.Context, digest string) ([]loan.CollateralBinding, error) {
			if digest != "0xd" {
				t.Fatalf("digest mismatch: got %s", digest)
			}
			return want, nil
		},
	}
	got, err := m.ListByDigest(ctx, "0xd")
	if err != nil || len(got) != 1 || got[0].LoanID != "LN-1" {
		t.Fatalf("ListByDigest: got %+v, %v", got, err)
	}

	m = &Repo{}
	if _, err := m.ListByDigest(ctx, "0xd"); err != context.Canceled {
		t.Fatalf("ListByDigest default: want context.Canceled, got %v", err)
	}
}
