package mysql

import (
	"context"

	"loan-ledger/internal/domain/loan"

	"gorm.io/gorm"
)

type BindingRepository struct{ db *gorm.DB }

func NewBindingRepository(db *gorm.DB) *BindingRepository { return &BindingRepository{db: db} }

func (r *BindingRepository) Create(ctx context.Context, b *loan.CollateralBinding) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BindingRepository) ListByDigest(ctx context.Context, digest string) ([]loan.CollateralBinding, error) {
	var out []loan.CollateralBinding
	res := r.db.WithContext(ctx).
		Where("digest = ?", digest).
		Order("id ASC").
		Find(&out)
	return out, res.Error
}
