package loan

import (
	"errors"
	"slices"
	"time"

	"loan-ledger/internal/domain/asset"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidAmount     = asset.ErrInvalidAmount
	ErrInvalidAsset      = asset.ErrUnknown
	ErrNotFound          = errors.New("loan not found")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrAmbiguousMatch    = errors.New("document digest bound to more than one loan")
	ErrTampered          = errors.New("journal does not match ledger record")
	ErrConflict          = errors.New("journal head moved concurrently")
	ErrForbidden         = errors.New("account may not act on this loan")
)

type Kind string

const (
	KindDeposit Kind = "deposit"
	KindBorrow  Kind = "borrow"
)

func (k Kind) Valid() bool { return k == KindDeposit || k == KindBorrow }

// Record is the ledger's view of one deposit or borrow request.
// Values are immutable once published; mutations produce a new Record.
type Record struct {
	LoanID           string          `json:"loan_id"`
	Kind             Kind            `json:"kind"`
	Asset            asset.Asset     `json:"asset"`
	Amount           decimal.Decimal `json:"amount"`
	Borrower         string          `json:"borrower"`
	Lender           string          `json:"lender,omitempty"`
	CollateralDigest string          `json:"collateral_digest,omitempty"`
	Status           Status          `json:"status"`
	TxRef            string          `json:"tx_ref"`
	Seq              uint64          `json:"seq"`
	HeadHash         string          `json:"head_hash"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// HasCollateral reports whether a document digest was bound at creation.
func (r Record) HasCollateral() bool { return r.CollateralDigest != "" }

// Filter selects records in List. Zero fields match everything.
type Filter struct {
	Kind     Kind
	Statuses []Status
	Borrower string
	Asset    asset.Asset
}

func (f Filter) Match(r Record) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
		return false
	}
	if f.Borrower != "" && r.Borrower != f.Borrower {
		return false
	}
	if f.Asset != "" && r.Asset != f.Asset {
		return false
	}
	return true
}

// CollateralBinding records which loan a document digest was bound to.
type CollateralBinding struct {
	ID      uint64    `gorm:"primaryKey;column:id" json:"-"`
	Digest  string    `gorm:"column:digest;size:66;not null;index:idx_collateral_bindings_digest" json:"digest"`
	LoanID  string    `gorm:"column:loan_id;size:32;not null;uniqueIndex:ux_collateral_bindings_loan" json:"loan_id"`
	BoundAt time.Time `gorm:"column:bound_at;precision:6;not null" json:"bound_at"`
}

func (CollateralBinding) TableName() string { return "collateral_bindings" }
