// Package collateral fingerprints uploaded collateral documents so a loan can
// be bound to a document without the engine ever storing the document.
package collateral

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

var ErrInvalidDocument = errors.New("invalid document")

// DefaultMaxBytes bounds a single upload.
const DefaultMaxBytes int64 = 10 << 20

// Digest is a keccak256 fingerprint rendered as 0x + 64 lowercase hex.
type Digest string

func (d Digest) String() string { return string(d) }

type Outcome string

const (
	Match    Outcome = "match"
	Mismatch Outcome = "mismatch"
)

var reDigest = regexp.MustCompile(`^0x[a-f0-9]{64}$`)

// ParseDigest normalises a client supplied digest ("0xABC…" or bare hex).
func ParseDigest(s string) (Digest, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	if !reDigest.MatchString(s) {
		return "", fmt.Errorf("%w: malformed digest %q", ErrInvalidDocument, s)
	}
	return Digest(s), nil
}

// Verifier holds no state besides its upload limit; a zero Verifier uses DefaultMaxBytes.
type Verifier struct {
	maxBytes int64
}

func NewVerifier(maxBytes int64) *Verifier {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Verifier{maxBytes: maxBytes}
}

func (v *Verifier) limit() int64 {
	if v == nil || v.maxBytes <= 0 {
		return DefaultMaxBytes
	}
	return v.maxBytes
}

// Digest fingerprints document. Empty input is rejected rather than hashed.
func (v *Verifier) Digest(document []byte) (Digest, error) {
	if len(document) == 0 {
		return "", fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}
	if int64(len(document)) > v.limit() {
		return "", fmt.Errorf("%w: document exceeds %d bytes", ErrInvalidDocument, v.limit())
	}
	return sum(document), nil
}

// DigestReader hashes an upload stream without buffering it.
func (v *Verifier) DigestReader(r io.Reader) (Digest, error) {
	if r == nil {
		return "", fmt.Errorf("%w: no document", ErrInvalidDocument)
	}
	h := sha3.NewLegacyKeccak256()
	n, err := io.Copy(h, io.LimitReader(r, v.limit()+1))
	if err != nil {
		return "", fmt.Errorf("%w: read: %v", ErrInvalidDocument, err)
	}
	switch {
	case n == 0:
		return "", fmt.Errorf("%w: empty document", ErrInvalidDocument)
	case n > v.limit():
		return "", fmt.Errorf("%w: document exceeds %d bytes", ErrInvalidDocument, v.limit())
	}
	return Digest("0x" + hex.EncodeToString(h.Sum(nil))), nil
}

// Verify re-hashes document and compares it with expected.
func (v *Verifier) Verify(document []byte, expected Digest) (Outcome, error) {
	want, err := ParseDigest(string(expected))
	if err != nil {
		return "", err
	}
	got, err := v.Digest(document)
	if err != nil {
		return "", err
	}
	if got != want {
		return Mismatch, nil
	}
	return Match, nil
}

// VerifyReader is Verify for an upload stream.
func (v *Verifier) VerifyReader(r io.Reader, expected Digest) (Outcome, error) {
	want, err := ParseDigest(string(expected))
	if err != nil {
		return "", err
	}
	got, err := v.DigestReader(r)
	if err != nil {
		return "", err
	}
	if got != want {
		return Mismatch, nil
	}
	return Match, nil
}

func sum(b []byte) Digest {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return Digest("0x" + hex.EncodeToString(h.Sum(nil)))
}
