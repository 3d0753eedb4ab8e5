package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"loan-ledger/internal/wallet"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	accountKey = "wallet.account"
	tokenKey   = "wallet.token"
)

// SessionResolver is satisfied by *wallet.Sessions.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (wallet.Session, error)
}

// SessionAuth requires "Authorization: Bearer <token>" naming a live wallet
// session and stores the session's account on the echo context.
func SessionAuth(sessions SessionResolver, log logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearer(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": wallet.ErrNotConnected.Error()})
			}
			sess, err := sessions.Resolve(c.Request().Context(), token)
			if errors.Is(err, wallet.ErrNotConnected) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": wallet.ErrNotConnected.Error()})
			}
			if err != nil {
				log.WithError(err).Warn("session lookup failed")
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "session store unavailable"})
			}
			c.Set(accountKey, sess.Account)
			c.Set(tokenKey, token)
			return next(c)
		}
	}
}

// Identity returns the account SessionAuth resolved, or a disconnected
// identity on routes it does not guard.
func Identity(c echo.Context) wallet.Identity {
	return wallet.Static(account(c))
}

// Token returns the raw session token of an authenticated request.
func Token(c echo.Context) string {
	t, _ := c.Get(tokenKey).(string)
	return t
}

// Bearer returns the bearer token a request presents, whether or not the
// route is guarded by SessionAuth.
func Bearer(c echo.Context) string {
	t, _ := bearer(c.Request().Header.Get(echo.HeaderAuthorization))
	return t
}

func account(c echo.Context) wallet.Account {
	a, _ := c.Get(accountKey).(wallet.Account)
	return a
}

func bearer(h string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
