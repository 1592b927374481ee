package internaldefs

import (
	"testing"

	goRecovery "github.com/agriskills/goRecovery"
)

func TestEveryCounterHasADefinition(t *testing.T) {
	seen := map[goRecovery.MetricID]bool{}
	names := map[string]bool{}
	for _, def := range CounterDefs {
		if seen[def.ID] {
			t.Fatalf("metric %d defined twice", def.ID)
		}
		if names[def.Name] {
			t.Fatalf("name %s used twice", def.Name)
		}
		seen[def.ID] = true
		names[def.Name] = true
	}
	for _, def := range HistogramDefs {
		seen[def.ID] = true
	}

	for id := goRecovery.MetricFlowStarted; id <= goRecovery.MetricProviderLatency; id++ {
		if !seen[id] {
			t.Fatalf("metric %d has no definition", id)
		}
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [BucketCount]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}
