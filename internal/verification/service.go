// Package verification answers "is this loan, or this document, backed by a
// valid ledger record?". It only reads the ledger.
package verification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"loan-ledger/internal/collateral"
	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/ledger"
	"loan-ledger/internal/metrics"

	"github.com/sirupsen/logrus"
)

type Reason string

const (
	ReasonNotFound        Reason = "not_found"
	ReasonAmbiguousMatch  Reason = "ambiguous_match"
	ReasonRejected        Reason = "rejected"
	ReasonHintMismatch    Reason = "hint_mismatch"
	ReasonTampered        Reason = "tampered"
	ReasonInvalidDocument Reason = "invalid_document"
)

// Result is a verdict, not an error: an invalid loan is a normal answer.
type Result struct {
	Valid      bool         `json:"valid"`
	Reason     Reason       `json:"reason,omitempty"`
	Digest     string       `json:"digest,omitempty"`
	Record     *loan.Record `json:"record,omitempty"`
	Candidates []string     `json:"candidates,omitempty"`
	Version    uint64       `json:"snapshot_version"`
	CheckedAt  time.Time    `json:"checked_at"`
}

// Reader is the slice of the ledger verification needs.
type Reader interface {
	Snapshot() ledger.Snapshot
	AuditRecord(ctx context.Context, rec loan.Record) error
}

type Service struct {
	ledger   Reader
	verifier *collateral.Verifier
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(r Reader, v *collateral.Verifier, log logrus.FieldLogger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{ledger: r, verifier: v, log: log, metrics: m, now: time.Now}
}

// VerifyByID checks one loan as of a single snapshot.
func (s *Service) VerifyByID(ctx context.Context, loanID string) (Result, error) {
	snap := s.ledger.Snapshot()
	res := Result{Version: snap.Version(), CheckedAt: s.now().UTC()}

	rec, ok := snap.Get(loanID)
	if !ok {
		return s.done("id", res, ReasonNotFound), nil
	}
	res.Record = &rec
	res.Digest = rec.CollateralDigest
	return s.judge(ctx, "id", res, rec)
}

// VerifyByDocument fingerprints document and looks the digest up. hint, when
// set, is the loan id the caller expects the document to belong to.
func (s *Service) VerifyByDocument(ctx context.Context, document io.Reader, hint string) (Result, error) {
	res := Result{CheckedAt: s.now().UTC()}

	digest, err := s.verifier.DigestReader(document)
	if errors.Is(err, collateral.ErrInvalidDocument) {
		return s.done("document", res, ReasonInvalidDocument), nil
	}
	if err != nil {
		return Result{}, err
	}
	res.Digest = digest.String()

	snap := s.ledger.Snapshot()
	res.Version = snap.Version()
	matches := snap.ByDigest(digest.String())
	switch len(matches) {
	case 0:
		return s.done("document", res, ReasonNotFound), nil
	case 1:
	default:
		for _, m := range matches {
			res.Candidates = append(res.Candidates, m.LoanID)
		}
		return s.done("document", res, ReasonAmbiguousMatch), nil
	}

	rec := matches[0]
	res.Record = &rec
	if hint != "" && hint != rec.LoanID {
		return s.done("document", res, ReasonHintMismatch), nil
	}
	return s.judge(ctx, "document", res, rec)
}

// judge applies the checks shared by both modes to a located record.
func (s *Service) judge(ctx context.Context, mode string, res Result, rec loan.Record) (Result, error) {
	if rec.Status == loan.StatusRejected {
		return s.done(mode, res, ReasonRejected), nil
	}
	err := s.ledger.AuditRecord(ctx, rec)
	switch {
	case errors.Is(err, loan.ErrTampered):
		s.log.WithError(err).WithField("loan_id", rec.LoanID).Warn("journal audit failed")
		return s.done(mode, res, ReasonTampered), nil
	case err != nil:
		return Result{}, fmt.Errorf("audit %s: %w", rec.LoanID, err)
	}
	res.Valid = true
	return s.done(mode, res, ""), nil
}

func (s *Service) done(mode string, res Result, reason Reason) Result {
	res.Reason = reason
	verdict := "invalid"
	if res.Valid {
		verdict = "valid"
	}
	s.metrics.Verified(mode, verdict, string(reason))
	return res
}
