package http

import (
	"errors"

	"loan-ledger/internal/collateral"
	"loan-ledger/internal/domain/asset"
	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/wallet"
	"loan-ledger/pkg/id"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Reusable error payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
}

type CustomValidator struct{ v *validator.Validate }

func NewValidator() *CustomValidator {
	v := validator.New()

	// loan ids
	_ = v.RegisterValidation("hex32", func(fl validator.FieldLevel) bool {
		return id.Valid(fl.Field().String())
	})
	_ = v.RegisterValidation("asset", func(fl validator.FieldLevel) bool {
		_, err := asset.Parse(fl.Field().String())
		return err == nil
	})
	// positive decimal string; per-asset precision is the usecase's call
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && d.IsPositive()
	})
	_ = v.RegisterValidation("address", func(fl validator.FieldLevel) bool {
		_, err := wallet.ParseAccount(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("digest", func(fl validator.FieldLevel) bool {
		_, err := collateral.ParseDigest(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		_, err := loan.ParseStatus(fl.Field().String())
		return err == nil
	})

	return &CustomValidator{v: v}
}

func (cv *CustomValidator) Validate(i any) error { return cv.v.Struct(i) }

// Map validator.ValidationErrors → []FieldError with readable messages.
func ToFieldErrors(err error) []FieldError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out = append(out, FieldError{Field: field, Message: "is required"})
		case "hex32":
			out = append(out, FieldError{Field: field, Message: "must be 32-char lowercase hex"})
		case "asset":
			out = append(out, FieldError{Field: field, Message: "must be one of ETH, USDC, USDT, DAI, WBTC"})
		case "amount":
			out = append(out, FieldError{Field: field, Message: "must be a positive decimal"})
		case "address":
			out = append(out, FieldError{Field: field, Message: "must be a 0x-prefixed 20-byte address"})
		case "digest":
			out = append(out, FieldError{Field: field, Message: "must be a 32-byte hex digest"})
		case "status":
			out = append(out, FieldError{Field: field, Message: "must be a known loan status"})
		case "oneof":
			out = append(out, FieldError{Field: field, Message: "must be one of " + e.Param()})
		case "gte":
			out = append(out, FieldError{Field: field, Message: "must be greater than or equal to " + e.Param()})
		case "lte":
			out = append(out, FieldError{Field: field, Message: "must be less than or equal to " + e.Param()})
		default:
			out = append(out, FieldError{Field: field, Message: e.Tag() + " validation failed"})
		}
	}
	return out
}
