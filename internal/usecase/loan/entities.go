package loan

import (
	"io"
	"time"

	"loan-ledger/internal/domain/loan"
)

type DepositInput struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

// BorrowInput carries the collateral document as a stream; only its digest
// is kept. DeclaredDigest, when the client sends one, must match the upload.
type BorrowInput struct {
	Asset          string
	Amount         string
	Document       io.Reader
	DeclaredDigest string
}

type TransitionInput struct {
	LoanID string
	Status string
	Lender string
}

type ListInput struct {
	Kind     string
	Status   string
	Borrower string
	Asset    string
}

type LoanDTO struct {
	LoanID           string    `json:"loan_id"`
	Kind             string    `json:"kind"`
	Asset            string    `json:"asset"`
	Amount           string    `json:"amount"`
	Borrower         string    `json:"borrower"`
	Lender           string    `json:"lender,omitempty"`
	CollateralDigest string    `json:"collateral_digest,omitempty"`
	Status           string    `json:"status"`
	TxRef            string    `json:"tx_ref"`
	Seq              uint64    `json:"seq"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func ToDTO(r loan.Record) *LoanDTO {
	return &LoanDTO{
		LoanID:           r.LoanID,
		Kind:             string(r.Kind),
		Asset:            string(r.Asset),
		Amount:           r.Amount.String(),
		Borrower:         r.Borrower,
		Lender:           r.Lender,
		CollateralDigest: r.CollateralDigest,
		Status:           string(r.Status),
		TxRef:            r.TxRef,
		Seq:              r.Seq,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}
