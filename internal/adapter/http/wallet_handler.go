package http

import (
	"net/http"
	"time"

	mw "loan-ledger/internal/adapter/middleware"
	"loan-ledger/internal/wallet"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type WalletHandler struct {
	sessions *wallet.Sessions
	log      logrus.FieldLogger
}

func NewWalletHandler(s *wallet.Sessions, log logrus.FieldLogger) *WalletHandler {
	return &WalletHandler{sessions: s, log: log}
}

// An empty address is the user declining the wallet prompt.
type connectReq struct {
	Address string `json:"address" validate:"omitempty,address"`
}

type sessionResp struct {
	Token     string    `json:"token,omitempty"`
	Account   string    `json:"account"`
	Short     string    `json:"short"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

func (h *WalletHandler) Connect(c echo.Context) error {
	var req connectReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}
	// A live bearer is already connected; it gets its own session back
	// and the address is not prompted for again.
	presented := mw.Bearer(c)
	token, sess, err := h.sessions.Open(c.Request().Context(), presented, wallet.AddressProvider(req.Address))
	if err != nil {
		return writeError(c, h.log, err)
	}
	status := http.StatusCreated
	if presented != "" && token == presented {
		status = http.StatusOK
	}
	return c.JSON(status, sessionResp{
		Token:     token,
		Account:   sess.Account.String(),
		Short:     sess.Account.Short(),
		ExpiresAt: sess.ExpiresAt,
	})
}

func (h *WalletHandler) Current(c echo.Context) error {
	acct, err := wallet.Require(mw.Identity(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, sessionResp{Account: acct.String(), Short: acct.Short()})
}

func (h *WalletHandler) Disconnect(c echo.Context) error {
	if err := h.sessions.Close(c.Request().Context(), mw.Token(c)); err != nil {
		return writeError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
