package loan

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"loan-ledger/internal/domain/asset"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

// Entry is one row of the append-only journal. The first entry of a loan
// carries every field; later entries carry the new status (and the lender
// when it gets matched). Entries of one loan are hash-chained.
type Entry struct {
	ID               uint64      `gorm:"primaryKey;column:id" json:"-"`
	Seq              uint64      `gorm:"column:seq;not null;uniqueIndex:ux_ledger_entries_seq" json:"seq"`
	LoanID           string      `gorm:"column:loan_id;size:32;not null;index:idx_ledger_entries_loan" json:"loan_id"`
	Status           Status      `gorm:"column:status;size:32;not null" json:"status"`
	Kind             Kind        `gorm:"column:kind;size:16" json:"kind,omitempty"`
	Asset            asset.Asset `gorm:"column:asset;size:8" json:"asset,omitempty"`
	Amount           string      `gorm:"column:amount;size:80" json:"amount,omitempty"`
	Borrower         string      `gorm:"column:borrower;size:42" json:"borrower,omitempty"`
	Lender           string      `gorm:"column:lender;size:42" json:"lender,omitempty"`
	CollateralDigest string      `gorm:"column:collateral_digest;size:66" json:"collateral_digest,omitempty"`
	At               time.Time   `gorm:"column:at;precision:6;not null" json:"at"`
	PrevHash         string      `gorm:"column:prev_hash;size:66" json:"prev_hash,omitempty"`
	Hash             string      `gorm:"column:hash;size:66;not null;uniqueIndex:ux_ledger_entries_hash" json:"hash"`
}

func (Entry) TableName() string { return "ledger_entries" }

// Genesis reports whether e opens a loan's chain.
func (e Entry) Genesis() bool { return e.PrevHash == "" }

type canonicalEntry struct {
	Seq              uint64 `json:"seq"`
	LoanID           string `json:"loan_id"`
	Status           Status `json:"status"`
	Kind             Kind   `json:"kind"`
	Asset            string `json:"asset"`
	Amount           string `json:"amount"`
	Borrower         string `json:"borrower"`
	Lender           string `json:"lender"`
	CollateralDigest string `json:"collateral_digest"`
	At               int64  `json:"at"`
}

// ComputeHash returns keccak256(prev_hash || canonical(entry)) as 0x-hex.
// Hash and ID do not take part.
func (e Entry) ComputeHash() string {
	payload, _ := json.Marshal(canonicalEntry{
		Seq:              e.Seq,
		LoanID:           e.LoanID,
		Status:           e.Status,
		Kind:             e.Kind,
		Asset:            string(e.Asset),
		Amount:           e.Amount,
		Borrower:         e.Borrower,
		Lender:           e.Lender,
		CollateralDigest: e.CollateralDigest,
		At:               e.At.UTC().UnixNano(),
	})
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(e.PrevHash))
	h.Write(payload)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// Seal sets Hash from the entry's content.
func (e *Entry) Seal() { e.Hash = e.ComputeHash() }

// NewGenesis builds the creation entry for a record.
func NewGenesis(seq uint64, r Record) Entry {
	e := Entry{
		Seq:              seq,
		LoanID:           r.LoanID,
		Status:           r.Status,
		Kind:             r.Kind,
		Asset:            r.Asset,
		Amount:           r.Amount.String(),
		Borrower:         r.Borrower,
		Lender:           r.Lender,
		CollateralDigest: r.CollateralDigest,
		At:               r.CreatedAt,
	}
	e.Seal()
	return e
}

// NewTransition builds the entry moving r to status to.
func NewTransition(seq uint64, r Record, to Status, lender string, at time.Time) Entry {
	e := Entry{
		Seq:      seq,
		LoanID:   r.LoanID,
		Status:   to,
		Lender:   lender,
		At:       at,
		PrevHash: r.HeadHash,
	}
	e.Seal()
	return e
}

// Apply folds e onto cur and returns the resulting record. cur is nil for
// the genesis entry. The hash link, the stored hash and the status edge are
// all checked, so a fold only succeeds over an untampered chain.
func Apply(cur *Record, e Entry) (Record, error) {
	if got := e.ComputeHash(); got != e.Hash {
		return Record{}, fmt.Errorf("%w: entry %d hash %s, recomputed %s", ErrTampered, e.Seq, e.Hash, got)
	}
	if cur == nil {
		if !e.Genesis() {
			return Record{}, fmt.Errorf("%w: loan %s has no genesis entry", ErrTampered, e.LoanID)
		}
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil {
			return Record{}, fmt.Errorf("%w: entry %d amount %q", ErrTampered, e.Seq, e.Amount)
		}
		if e.Status != InitialStatus(e.Kind) {
			return Record{}, fmt.Errorf("%w: entry %d opens in %s", ErrTampered, e.Seq, e.Status)
		}
		return Record{
			LoanID:           e.LoanID,
			Kind:             e.Kind,
			Asset:            e.Asset,
			Amount:           amount,
			Borrower:         e.Borrower,
			Lender:           e.Lender,
			CollateralDigest: e.CollateralDigest,
			Status:           e.Status,
			TxRef:            e.Hash,
			Seq:              e.Seq,
			HeadHash:         e.Hash,
			CreatedAt:        e.At,
			UpdatedAt:        e.At,
		}, nil
	}
	if e.Genesis() || e.PrevHash != cur.HeadHash || e.LoanID != cur.LoanID {
		return Record{}, fmt.Errorf("%w: entry %d does not extend loan %s", ErrTampered, e.Seq, cur.LoanID)
	}
	if !CanTransition(cur.Status, e.Status) {
		return Record{}, fmt.Errorf("%w: entry %d moves %s -> %s", ErrTampered, e.Seq, cur.Status, e.Status)
	}
	next := *cur
	next.Status = e.Status
	if e.Lender != "" {
		next.Lender = e.Lender
	}
	next.HeadHash = e.Hash
	next.UpdatedAt = e.At
	return next, nil
}

// Fold replays the entries of one loan, in order.
func Fold(entries []Entry) (Record, error) {
	if len(entries) == 0 {
		return Record{}, ErrNotFound
	}
	var cur *Record
	for _, e := range entries {
		next, err := Apply(cur, e)
		if err != nil {
			return Record{}, err
		}
		cur = &next
	}
	return *cur, nil
}
