package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterDefaultIsIdempotent(t *testing.T) {
	RegisterDefault()
	RegisterDefault()
	Plans.WithLabelValues("greedy", "succeeded").Inc()
	if got := testutil.ToFloat64(Plans.WithLabelValues("greedy", "succeeded")); got < 1 {
		t.Fatalf("plans counter = %v", got)
	}
	n, err := testutil.GatherAndCount(Registry, "plans_total")
	if err != nil || n == 0 {
		t.Fatalf("plans_total not gathered: n=%d err=%v", n, err)
	}
}
