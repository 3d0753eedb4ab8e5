package http

import (
	"mime/multipart"
	"net/http"

	mw "loan-ledger/internal/adapter/middleware"
	"loan-ledger/internal/usecase/loan"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// CollateralField is the multipart field carrying an uploaded document.
const CollateralField = "collateral"

type LoanHandler struct {
	uc  *loan.Usecase
	log logrus.FieldLogger
}

func NewLoanHandler(uc *loan.Usecase, log logrus.FieldLogger) *LoanHandler {
	return &LoanHandler{uc: uc, log: log}
}

type depositReq struct {
	Asset  string `json:"asset"  validate:"required,asset"`
	Amount string `json:"amount" validate:"required,amount"`
}

// borrowReq is read from multipart form values; the document is a file part.
type borrowReq struct {
	Asset  string `validate:"required,asset"`
	Amount string `validate:"required,amount"`
	Digest string `validate:"omitempty,digest"`
}

type loanPath struct {
	LoanID string `validate:"required,hex32"`
}

type listReq struct {
	Kind     string `query:"kind"     validate:"omitempty,oneof=deposit borrow"`
	Status   string `query:"status"   validate:"omitempty,status"`
	Borrower string `query:"borrower" validate:"omitempty,address"`
	Asset    string `query:"asset"    validate:"omitempty,asset"`
}

type transitionReq struct {
	Status string `json:"status" validate:"required,status"`
	Lender string `json:"lender" validate:"omitempty,address"`
}

func (h *LoanHandler) Deposit(c echo.Context) error {
	var req depositReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}
	dto, err := h.uc.Deposit(c.Request().Context(), mw.Identity(c), loan.DepositInput(req))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) Borrow(c echo.Context) error {
	req := borrowReq{
		Asset:  c.FormValue("asset"),
		Amount: c.FormValue("amount"),
		Digest: c.FormValue("collateral_digest"),
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}
	doc, err := openUpload(c, CollateralField)
	if err != nil {
		return badRequest(c, "missing collateral document")
	}
	defer doc.Close()

	dto, err := h.uc.Borrow(c.Request().Context(), mw.Identity(c), loan.BorrowInput{
		Asset:          req.Asset,
		Amount:         req.Amount,
		Document:       doc,
		DeclaredDigest: req.Digest,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	p := loanPath{LoanID: c.Param("loan_id")}
	if err := c.Validate(&p); err != nil {
		return validationFailed(c, err)
	}
	dto, err := h.uc.Get(c.Request().Context(), p.LoanID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) ListLoans(c echo.Context) error {
	var req listReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid query")
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}
	list, err := h.uc.List(c.Request().Context(), loan.ListInput(req))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": list, "count": len(list)})
}

func (h *LoanHandler) Transition(c echo.Context) error {
	p := loanPath{LoanID: c.Param("loan_id")}
	if err := c.Validate(&p); err != nil {
		return validationFailed(c, err)
	}
	var req transitionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}
	dto, err := h.uc.Transition(c.Request().Context(), mw.Identity(c), loan.TransitionInput{
		LoanID: p.LoanID,
		Status: req.Status,
		Lender: req.Lender,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

// openUpload returns the named file part, or an error when it is absent.
func openUpload(c echo.Context, field string) (multipart.File, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}
	return fh.Open()
}
