package wallet

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNoProvider   = errors.New("no wallet provider")
	ErrUserRejected = errors.New("user rejected the connection request")
	ErrNotConnected = errors.New("wallet not connected")
	ErrInvalidAddr  = errors.New("invalid wallet address")
)

// Account is a wallet address in canonical (lower case) form.
type Account string

var reAddress = regexp.MustCompile(`^0x[a-f0-9]{40}$`)

// ParseAccount accepts checksummed or lower case 0x addresses.
func ParseAccount(s string) (Account, error) {
	a := strings.ToLower(strings.TrimSpace(s))
	if !reAddress.MatchString(a) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddr, s)
	}
	return Account(a), nil
}

func (a Account) String() string { return string(a) }

// Short renders 0x742d...beb3 the way wallets display it.
func (a Account) Short() string {
	if len(a) < 10 {
		return string(a)
	}
	return string(a[:6]) + "..." + string(a[len(a)-4:])
}

// Identity is what mutating operations consult before they run.
type Identity interface {
	Current() (Account, bool)
}

// Static is an Identity already resolved by the caller, e.g. from a session token.
type Static Account

func (s Static) Current() (Account, bool) { return Account(s), s != "" }

// Require returns the connected account or ErrNotConnected.
func Require(id Identity) (Account, error) {
	if id == nil {
		return "", ErrNotConnected
	}
	a, ok := id.Current()
	if !ok || a == "" {
		return "", ErrNotConnected
	}
	return a, nil
}
