package ledger

import (
	"cmp"
	"iter"
	"slices"

	"loan-ledger/internal/domain/loan"
)

// Snapshot is a consistent read view: it sees every commit up to its
// version and nothing after. Snapshots are values and may be shared.
type Snapshot struct {
	l  *Ledger
	at uint64
}

func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{l: l, at: l.watermark.Load()}
}

func (s Snapshot) Version() uint64 { return s.at }

func (s Snapshot) Get(loanID string) (loan.Record, bool) {
	sl := s.l.lookup(loanID)
	if sl == nil {
		return loan.Record{}, false
	}
	return sl.at(s.at)
}

type entryRef struct {
	seq  uint64
	slot *slot
}

// refs collects the slots visible in the snapshot, ordered by creation.
// Creation seq never changes, so it is read from the oldest version.
func (s Snapshot) refs() []entryRef {
	var out []entryRef
	for i := range s.l.shards {
		sh := &s.l.shards[i]
		sh.mu.RLock()
		for _, sl := range sh.slots {
			if rec, ok := sl.at(s.at); ok {
				out = append(out, entryRef{seq: rec.Seq, slot: sl})
			}
		}
		sh.mu.RUnlock()
	}
	slices.SortFunc(out, func(a, b entryRef) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

// All yields every record in creation order. The set of records is fixed when
// All is called; iterating again yields the same records.
func (s Snapshot) All() iter.Seq[loan.Record] {
	refs := s.refs()
	return func(yield func(loan.Record) bool) {
		for _, r := range refs {
			rec, _ := r.slot.at(s.at)
			if !yield(rec) {
				return
			}
		}
	}
}

// Reverse yields records newest first.
func (s Snapshot) Reverse() iter.Seq[loan.Record] {
	refs := s.refs()
	return func(yield func(loan.Record) bool) {
		for i := len(refs) - 1; i >= 0; i-- {
			rec, _ := refs[i].slot.at(s.at)
			if !yield(rec) {
				return
			}
		}
	}
}

// ByDigest returns the records bound to a collateral digest, in creation order.
func (s Snapshot) ByDigest(digest string) []loan.Record {
	var out []loan.Record
	for _, loanID := range s.l.digestIDs(digest) {
		if rec, ok := s.Get(loanID); ok {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b loan.Record) int { return cmp.Compare(a.Seq, b.Seq) })
	return out
}

// List yields the records matching f, oldest first, from a fresh snapshot.
func (l *Ledger) List(f loan.Filter) iter.Seq[loan.Record] {
	all := l.Snapshot().All()
	return func(yield func(loan.Record) bool) {
		for rec := range all {
			if f.Match(rec) && !yield(rec) {
				return
			}
		}
	}
}
