// Package ledger is the authoritative in-memory store of loan records.
//
// Records live in slots spread over a fixed number of shards. Each slot holds
// a chain of immutable versions tagged with the commit that produced them.
// Writers to one loan serialise on the slot's mutex; writers to different
// loans never share a lock once the slot exists. Readers take a snapshot of
// the commit watermark and pick, per slot, the newest version at or below it,
// so a reader never observes a half-applied change and never blocks a writer.
package ledger

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"loan-ledger/internal/collateral"
	"loan-ledger/internal/domain/asset"
	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/metrics"
	"loan-ledger/pkg/id"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const shardCount = 64

type version struct {
	rec    loan.Record
	commit uint64
	prev   *version
}

type slot struct {
	mu   sync.Mutex // one writer per loan
	head atomic.Pointer[version]
}

// at returns the record as of commit v, or false when the loan did not exist yet.
func (s *slot) at(v uint64) (loan.Record, bool) {
	for p := s.head.Load(); p != nil; p = p.prev {
		if p.commit <= v {
			return p.rec, true
		}
	}
	return loan.Record{}, false
}

type shard struct {
	mu      sync.RWMutex
	slots   map[string]*slot
	digests map[string][]string
}

type Ledger struct {
	journal loan.Journal
	log     logrus.FieldLogger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string

	shards [shardCount]shard

	seq       atomic.Uint64 // last journal sequence handed out
	version   atomic.Uint64 // last commit version handed out
	watermark atomic.Uint64 // every commit <= watermark is published
}

type Option func(*Ledger)

func WithLogger(l logrus.FieldLogger) Option { return func(x *Ledger) { x.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(x *Ledger) { x.metrics = m } }

func WithClock(now func() time.Time) Option { return func(x *Ledger) { x.now = now } }

// WithIDs overrides loan id generation (tests force collisions with it).
func WithIDs(gen func() string) Option { return func(x *Ledger) { x.newID = gen } }

func New(journal loan.Journal, opts ...Option) *Ledger {
	l := &Ledger{
		journal: journal,
		log:     logrus.StandardLogger(),
		now:     time.Now,
		newID:   id.NewID32,
	}
	for i := range l.shards {
		l.shards[i].slots = make(map[string]*slot)
		l.shards[i].digests = make(map[string][]string)
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Ledger) shardFor(key string) *shard {
	return &l.shards[xxhash.Sum64String(key)%shardCount]
}

func (l *Ledger) lookup(loanID string) *slot {
	sh := l.shardFor(loanID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.slots[loanID]
}

// clock returns journal time: UTC at microsecond precision, which survives a
// round trip through MySQL DATETIME(6).
func (l *Ledger) clock() time.Time {
	return l.now().UTC().Truncate(time.Microsecond)
}

// commit hands out the next version, lets publish install it, then advances
// the watermark. Watermark moves happen in version order, so a snapshot
// never sees commit n+1 without commit n.
func (l *Ledger) commit(publish func(v uint64)) {
	v := l.version.Add(1)
	publish(v)
	for !l.watermark.CompareAndSwap(v-1, v) {
		runtime.Gosched()
	}
}

type CreateInput struct {
	Kind             loan.Kind
	Asset            asset.Asset
	Amount           decimal.Decimal
	Borrower         string
	CollateralDigest string
}

func (in CreateInput) validate() (string, error) {
	if !in.Kind.Valid() {
		return "", fmt.Errorf("%w: kind %q", loan.ErrInvalidInput, in.Kind)
	}
	if !in.Asset.Valid() {
		return "", fmt.Errorf("%w: %q", loan.ErrInvalidAsset, in.Asset)
	}
	if err := in.Asset.ValidateAmount(in.Amount); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Borrower) == "" {
		return "", fmt.Errorf("%w: borrower is required", loan.ErrInvalidInput)
	}
	if in.CollateralDigest == "" {
		return "", nil
	}
	if in.Kind == loan.KindDeposit {
		return "", fmt.Errorf("%w: deposits carry no collateral", loan.ErrInvalidInput)
	}
	d, err := collateral.ParseDigest(in.CollateralDigest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", loan.ErrInvalidInput, err)
	}
	return d.String(), nil
}

// Create appends a new record. The record is invisible to every reader until
// its journal entry is durable and its commit is published.
func (l *Ledger) Create(ctx context.Context, in CreateInput) (loan.Record, error) {
	digest, err := in.validate()
	if err != nil {
		return loan.Record{}, err
	}

	loanID, sl := l.reserve()
	sl.mu.Lock()
	defer sl.mu.Unlock()

	now := l.clock()
	rec := loan.Record{
		LoanID:           loanID,
		Kind:             in.Kind,
		Asset:            in.Asset,
		Amount:           in.Amount,
		Borrower:         in.Borrower,
		CollateralDigest: digest,
		Status:           loan.InitialStatus(in.Kind),
		Seq:              l.seq.Add(1),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	entry := loan.NewGenesis(rec.Seq, rec)
	rec.TxRef = entry.Hash
	rec.HeadHash = entry.Hash

	var binding *loan.CollateralBinding
	if digest != "" {
		binding = &loan.CollateralBinding{Digest: digest, LoanID: loanID, BoundAt: now}
	}
	if err := l.append(ctx, entry, binding); err != nil {
		l.release(loanID)
		return loan.Record{}, err
	}

	if digest != "" {
		l.bindDigest(digest, loanID)
	}
	l.commit(func(v uint64) {
		sl.head.Store(&version{rec: rec, commit: v})
	})

	l.metrics.LoanCreated(string(rec.Kind), string(rec.Asset))
	l.log.WithFields(logrus.Fields{
		"loan_id": rec.LoanID,
		"kind":    rec.Kind,
		"asset":   rec.Asset,
		"seq":     rec.Seq,
	}).Info("loan created")
	return rec, nil
}

// reserve claims an unused id with an empty slot. Empty slots are skipped by
// every read path.
func (l *Ledger) reserve() (string, *slot) {
	for {
		loanID := l.newID()
		sh := l.shardFor(loanID)
		sh.mu.Lock()
		if _, taken := sh.slots[loanID]; taken {
			sh.mu.Unlock()
			continue
		}
		sl := &slot{}
		sh.slots[loanID] = sl
		sh.mu.Unlock()
		return loanID, sl
	}
}

func (l *Ledger) release(loanID string) {
	sh := l.shardFor(loanID)
	sh.mu.Lock()
	delete(sh.slots, loanID)
	sh.mu.Unlock()
}

func (l *Ledger) bindDigest(digest, loanID string) {
	sh := l.shardFor(digest)
	sh.mu.Lock()
	sh.digests[digest] = append(sh.digests[digest], loanID)
	sh.mu.Unlock()
}

func (l *Ledger) digestIDs(digest string) []string {
	sh := l.shardFor(digest)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return append([]string(nil), sh.digests[digest]...)
}

// append writes to the journal. Once started it is not abandoned when the
// caller goes away.
func (l *Ledger) append(ctx context.Context, e loan.Entry, b *loan.CollateralBinding) error {
	start := time.Now()
	err := l.journal.Append(context.WithoutCancel(ctx), e, b)
	l.metrics.ObserveAppend(time.Since(start))
	if err != nil {
		l.log.WithError(err).WithField("loan_id", e.LoanID).Error("journal append failed")
		return fmt.Errorf("journal append: %w", err)
	}
	return nil
}

type transitionOptions struct {
	lender string
}

type TransitionOption func(*transitionOptions)

// WithLender records the matched lender. Only the approved -> active edge
// accepts it, and only while no lender is set.
func WithLender(addr string) TransitionOption {
	return func(o *transitionOptions) { o.lender = addr }
}

// Transition moves a record along the status graph. On any error the record
// is left unchanged.
func (l *Ledger) Transition(ctx context.Context, loanID string, to loan.Status, opts ...TransitionOption) (loan.Record, error) {
	var o transitionOptions
	for _, fn := range opts {
		fn(&o)
	}
	if !to.Valid() {
		return loan.Record{}, fmt.Errorf("%w: status %q", loan.ErrInvalidInput, to)
	}

	sl := l.lookup(loanID)
	if sl == nil {
		return loan.Record{}, fmt.Errorf("%w: %s", loan.ErrNotFound, loanID)
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()

	head := sl.head.Load()
	if head == nil {
		return loan.Record{}, fmt.Errorf("%w: %s", loan.ErrNotFound, loanID)
	}
	cur := head.rec
	if !loan.CanTransition(cur.Status, to) {
		l.metrics.TransitionRefused(string(cur.Status), string(to))
		return loan.Record{}, fmt.Errorf("%w: %s -> %s", loan.ErrIllegalTransition, cur.Status, to)
	}
	if o.lender != "" {
		switch {
		case cur.Status != loan.StatusApproved || to != loan.StatusActive:
			return loan.Record{}, fmt.Errorf("%w: lender is only set when a loan becomes active", loan.ErrInvalidInput)
		case cur.Lender != "":
			return loan.Record{}, fmt.Errorf("%w: lender already set", loan.ErrInvalidInput)
		case strings.EqualFold(o.lender, cur.Borrower):
			return loan.Record{}, fmt.Errorf("%w: borrower cannot lend to itself", loan.ErrInvalidInput)
		}
	}

	at := l.clock()
	if at.Before(cur.UpdatedAt) {
		at = cur.UpdatedAt
	}
	entry := loan.NewTransition(l.seq.Add(1), cur, to, o.lender, at)
	next, err := loan.Apply(&cur, entry)
	if err != nil {
		return loan.Record{}, err
	}
	if err := l.append(ctx, entry, nil); err != nil {
		return loan.Record{}, err
	}
	l.commit(func(v uint64) {
		sl.head.Store(&version{rec: next, commit: v, prev: head})
	})

	l.metrics.Transitioned(string(cur.Status), string(to))
	l.log.WithFields(logrus.Fields{
		"loan_id": loanID,
		"from":    cur.Status,
		"to":      to,
		"seq":     entry.Seq,
	}).Info("loan transitioned")
	return next, nil
}

// Get returns the latest published state of a record.
func (l *Ledger) Get(loanID string) (loan.Record, bool) {
	sl := l.lookup(loanID)
	if sl == nil {
		return loan.Record{}, false
	}
	head := sl.head.Load()
	if head == nil {
		return loan.Record{}, false
	}
	return head.rec, true
}

// Len is the number of visible records.
func (l *Ledger) Len() int {
	n := 0
	for i := range l.shards {
		sh := &l.shards[i]
		sh.mu.RLock()
		for _, sl := range sh.slots {
			if sl.head.Load() != nil {
				n++
			}
		}
		sh.mu.RUnlock()
	}
	return n
}
