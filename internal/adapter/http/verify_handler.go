package http

import (
	"io"
	"net/http"

	"loan-ledger/internal/verification"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// DocumentField is the multipart field of verify-by-document uploads.
const DocumentField = "document"

type VerifyHandler struct {
	svc *verification.Service
	log logrus.FieldLogger
}

func NewVerifyHandler(svc *verification.Service, log logrus.FieldLogger) *VerifyHandler {
	return &VerifyHandler{svc: svc, log: log}
}

type hintReq struct {
	LoanID string `validate:"omitempty,hex32"`
}

// ByID answers 200 for every verdict; an invalid loan is not an HTTP error.
// A malformed id is refused like it is on GET /loans/:loan_id.
func (h *VerifyHandler) ByID(c echo.Context) error {
	p := loanPath{LoanID: c.Param("loan_id")}
	if err := c.Validate(&p); err != nil {
		return validationFailed(c, err)
	}
	res, err := h.svc.VerifyByID(c.Request().Context(), p.LoanID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *VerifyHandler) ByDocument(c echo.Context) error {
	hint := hintReq{LoanID: c.FormValue("loan_id")}
	if err := c.Validate(&hint); err != nil {
		return validationFailed(c, err)
	}
	// a missing file is judged like an empty one
	var doc io.Reader
	if f, err := openUpload(c, DocumentField); err == nil {
		defer f.Close()
		doc = f
	}
	res, err := h.svc.VerifyByDocument(c.Request().Context(), doc, hint.LoanID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}
