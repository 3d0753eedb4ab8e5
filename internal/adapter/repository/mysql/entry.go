package mysql

import (
	"context"
	"errors"

	"loan-ledger/internal/domain/loan"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const scanBatch = 500

type EntryRepository struct{ db *gorm.DB }

func NewEntryRepository(db *gorm.DB) *EntryRepository { return &EntryRepository{db: db} }

// Migrate creates the journal tables. MySQL deployments may manage the schema
// themselves; SQLite always goes through here.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&loan.Entry{}, &loan.CollateralBinding{})
}

func (r *EntryRepository) Append(ctx context.Context, e *loan.Entry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// HeadForUpdate locks the newest entry of a loan until the transaction ends.
// SQLite ignores the locking clause; its writer lock serialises instead.
func (r *EntryRepository) HeadForUpdate(ctx context.Context, loanID string) (*loan.Entry, error) {
	return r.head(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), loanID)
}

func (r *EntryRepository) head(db *gorm.DB, loanID string) (*loan.Entry, error) {
	var out loan.Entry
	res := db.Where("loan_id = ?", loanID).Order("seq DESC").First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, loan.ErrNotFound
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return &out, nil
}

func (r *EntryRepository) ListByLoanID(ctx context.Context, loanID string) ([]loan.Entry, error) {
	var out []loan.Entry
	res := r.db.WithContext(ctx).Where("loan_id = ?", loanID).Order("seq ASC").Find(&out)
	return out, res.Error
}

// Scan pages through the journal by seq so memory stays bounded.
func (r *EntryRepository) Scan(ctx context.Context, fn func(loan.Entry) error) error {
	var last uint64
	for {
		var batch []loan.Entry
		res := r.db.WithContext(ctx).
			Where("seq > ?", last).
			Order("seq ASC").
			Limit(scanBatch).
			Find(&batch)
		if res.Error != nil {
			return res.Error
		}
		for _, e := range batch {
			if err := fn(e); err != nil {
				return err
			}
			last = e.Seq
		}
		if len(batch) < scanBatch {
			return nil
		}
	}
}
