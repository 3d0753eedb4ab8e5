package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.LoanCreated("deposit", "ETH")
	m.Transitioned("requested", "pending_verification")
	m.TransitionRefused("active", "rejected")
	m.Verified("id", "valid", "")
	m.ObserveAppend(time.Millisecond)
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.LoanCreated("borrow", "ETH")
	m.LoanCreated("borrow", "ETH")
	m.TransitionRefused("active", "rejected")

	if got := testutil.ToFloat64(m.LoansCreated.WithLabelValues("borrow", "ETH")); got != 2 {
		t.Fatalf("loans created = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.IllegalTransitions.WithLabelValues("active", "rejected")); got != 1 {
		t.Fatalf("illegal transitions = %v, want 1", got)
	}
}
