package asset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknown       = errors.New("unknown asset")
	ErrInvalidAmount = errors.New("invalid amount")
)

// Asset is the ticker of a supported asset. The set is closed.
type Asset string

const (
	ETH  Asset = "ETH"
	USDC Asset = "USDC"
	USDT Asset = "USDT"
	DAI  Asset = "DAI"
	WBTC Asset = "WBTC"
)

// decimals is the on-chain precision of each asset.
var decimals = map[Asset]int32{
	ETH:  18,
	USDC: 6,
	USDT: 6,
	DAI:  18,
	WBTC: 8,
}

// All returns the supported assets in display order.
func All() []Asset { return []Asset{ETH, USDC, USDT, DAI, WBTC} }

// Parse accepts a ticker in any case ("eth", "Eth") and returns the canonical Asset.
func Parse(s string) (Asset, error) {
	a := Asset(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknown, s)
	}
	return a, nil
}

func (a Asset) Valid() bool {
	_, ok := decimals[a]
	return ok
}

func (a Asset) Symbol() string { return string(a) }

// Decimals returns the asset precision, or -1 for an unknown asset.
func (a Asset) Decimals() int32 {
	d, ok := decimals[a]
	if !ok {
		return -1
	}
	return d
}

// ValidateAmount checks that amount is strictly positive and representable
// at the asset's precision without rounding.
func (a Asset) ValidateAmount(amount decimal.Decimal) error {
	d := a.Decimals()
	if d < 0 {
		return fmt.Errorf("%w: %q", ErrUnknown, string(a))
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if !amount.Equal(amount.Truncate(d)) {
		return fmt.Errorf("%w: %s has more than %d decimal places for %s", ErrInvalidAmount, amount.String(), d, a)
	}
	return nil
}

// ParseAmount parses a decimal string and validates it for the asset.
func (a Asset) ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, s)
	}
	if err := a.ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}
