// Package dashboard derives read-only aggregates from ledger snapshots.
package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"loan-ledger/internal/domain/asset"
	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/ledger"

	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Totals are the four headline figures. Sums run over raw amounts, so the
// portfolio-wide Stats mixes units; ByAsset keeps them apart.
type Totals struct {
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	ActiveLoanValue  decimal.Decimal `json:"active_loan_value"`
	TotalRepayments  decimal.Decimal `json:"total_repayments"`
	LiquidationValue decimal.Decimal `json:"liquidation_value"`
}

func (t *Totals) add(r loan.Record) {
	switch {
	case r.Kind == loan.KindDeposit:
		t.TotalDeposits = t.TotalDeposits.Add(r.Amount)
	case r.Status == loan.StatusActive:
		t.ActiveLoanValue = t.ActiveLoanValue.Add(r.Amount)
	case r.Status == loan.StatusRepaid:
		t.TotalRepayments = t.TotalRepayments.Add(r.Amount)
	case r.Status == loan.StatusLiquidated:
		t.LiquidationValue = t.LiquidationValue.Add(r.Amount)
	}
}

type Stats struct {
	Totals
	Records    int                               `json:"records"`
	Counts     map[loan.Kind]map[loan.Status]int `json:"counts"`
	ByAsset    map[asset.Asset]Totals            `json:"by_asset"`
	Version    uint64                            `json:"snapshot_version"`
	ComputedAt time.Time                         `json:"computed_at"`
}

type Page struct {
	Items      []loan.Record `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// Source hands out consistent read views; *ledger.Ledger satisfies it.
type Source interface {
	Snapshot() ledger.Snapshot
}

type Aggregator struct {
	src Source
	now func() time.Time
}

func NewAggregator(src Source) *Aggregator {
	return &Aggregator{src: src, now: time.Now}
}

// Stats sums one snapshot, so the figures are mutually consistent. A
// cancelled ctx abandons the walk.
func (a *Aggregator) Stats(ctx context.Context) (Stats, error) {
	snap := a.src.Snapshot()
	st := Stats{
		Counts:  make(map[loan.Kind]map[loan.Status]int),
		ByAsset: make(map[asset.Asset]Totals),
		Version: snap.Version(),
	}
	for r := range snap.All() {
		if err := ctx.Err(); err != nil {
			return Stats{}, err
		}
		st.Records++
		st.Totals.add(r)

		per := st.ByAsset[r.Asset]
		per.add(r)
		st.ByAsset[r.Asset] = per

		if st.Counts[r.Kind] == nil {
			st.Counts[r.Kind] = make(map[loan.Status]int)
		}
		st.Counts[r.Kind][r.Status]++
	}
	st.ComputedAt = a.now().UTC()
	return st, nil
}

// History pages newest-first. cursor is the NextCursor of the previous page;
// records created after the first page was served do not shift later pages.
func (a *Aggregator) History(ctx context.Context, limit int, cursor string) (Page, error) {
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	var before uint64
	if cursor != "" {
		n, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil || n == 0 {
			return Page{}, fmt.Errorf("%w: cursor %q", loan.ErrInvalidInput, cursor)
		}
		before = n
	}

	page := Page{Items: make([]loan.Record, 0, limit)}
	for r := range a.src.Snapshot().Reverse() {
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		if before != 0 && r.Seq >= before {
			continue
		}
		if len(page.Items) == limit {
			page.NextCursor = strconv.FormatUint(page.Items[limit-1].Seq, 10)
			break
		}
		page.Items = append(page.Items, r)
	}
	return page, nil
}
