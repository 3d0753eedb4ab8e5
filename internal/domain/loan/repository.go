package loan

import "context"

type EntryRepository interface {
	Append(ctx context.Context, e *Entry) error
	ListByLoanID(ctx context.Context, loanID string) ([]Entry, error)
	// Scan walks every entry in seq order.
	Scan(ctx context.Context, fn func(Entry) error) error
}

type BindingRepository interface {
	Create(ctx context.Context, b *CollateralBinding) error
	ListByDigest(ctx context.Context, digest string) ([]CollateralBinding, error)
}

// Journal is the durable append-only log behind the ledger. Append must be
// all-or-nothing: the entry and its optional binding are stored together.
type Journal interface {
	Append(ctx context.Context, e Entry, b *CollateralBinding) error
	Entries(ctx context.Context, loanID string) ([]Entry, error)
	Replay(ctx context.Context, fn func(Entry) error) error
	// Bindings lists the stored collateral bindings of digest.
	Bindings(ctx context.Context, digest string) ([]CollateralBinding, error)
}
