package bindingmock

import (
	"context"

	"loan-ledger/internal/domain/loan"
)

var _ loan.BindingRepository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies loan.BindingRepository.
type Repo struct {
	CreateFn       func(ctx context.Context, b *loan.CollateralBinding) error
	ListByDigestFn func(ctx context.Context, digest string) ([]loan.CollateralBinding, error)
}

func (m *Repo) Create(ctx context.Context, b *loan.CollateralBinding) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, b)
	}
	return nil
}

func (m *Repo) ListByDigest(ctx context.Context, digest string) ([]loan.CollateralBinding, error) {
	if m.ListByDigestFn != nil {
		return m.ListByDigestFn(ctx, digest)
	}
	return nil, context.Canceled
}
