package approval

import (
	"io"
	"time"
)

type ReviewInput struct {
	LoanID   string
	Document io.Reader // the collateral presented for review; never stored
}

type ReviewDTO struct {
	LoanID     string    `json:"loan_id"`
	Status     string    `json:"status"`
	Outcome    string    `json:"outcome"` // match | mismatch | no_collateral
	Reviewer   string    `json:"reviewer"`
	ReviewedAt time.Time `json:"reviewed_at"`
}
