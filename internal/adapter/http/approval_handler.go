package http

import (
	"io"
	"net/http"

	mw "loan-ledger/internal/adapter/middleware"
	"loan-ledger/internal/usecase/approval"
	"loan-ledger/internal/usecase/loan"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type ApprovalHandler struct {
	uc  *approval.Usecase
	log logrus.FieldLogger
}

func NewApprovalHandler(uc *approval.Usecase, log logrus.FieldLogger) *ApprovalHandler {
	return &ApprovalHandler{uc: uc, log: log}
}

func (h *ApprovalHandler) Submit(c echo.Context) error {
	p := loanPath{LoanID: c.Param("loan_id")}
	if err := c.Validate(&p); err != nil {
		return validationFailed(c, err)
	}
	rec, err := h.uc.Submit(c.Request().Context(), mw.Identity(c), p.LoanID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, loan.ToDTO(rec))
}

// Review takes the collateral as a multipart file. It may be omitted for a
// loan that has none, which is rejected either way.
func (h *ApprovalHandler) Review(c echo.Context) error {
	p := loanPath{LoanID: c.Param("loan_id")}
	if err := c.Validate(&p); err != nil {
		return validationFailed(c, err)
	}
	var doc io.Reader
	if f, err := openUpload(c, CollateralField); err == nil {
		defer f.Close()
		doc = f
	}
	dto, err := h.uc.Review(c.Request().Context(), mw.Identity(c), approval.ReviewInput{
		LoanID:   p.LoanID,
		Document: doc,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}
