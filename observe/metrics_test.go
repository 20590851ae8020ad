package observe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*metricsImpl, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := newMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

// TestMetrics_CallCounterIncrements verifies gateway.provider.calls is incremented.
func TestMetrics_CallCounterIncrements(t *testing.T) {
	m, reader := newTestMetrics(t)

	meta := OpMeta{Op: "fetch_all", Collection: "stations", Provider: "baserow"}
	m.RecordProviderCall(context.Background(), meta, 100*time.Millisecond, nil)

	rm := collect(t, reader)
	found := findMetric(rm, "gateway.provider.calls")
	if found == nil {
		t.Fatal("gateway.provider.calls metric not found")
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if sum.DataPoints[0].Value != 1 {
		t.Errorf("expected count 1, got %d", sum.DataPoints[0].Value)
	}
}

// TestMetrics_ErrorCounterOnFailure verifies errors counter incremented on failure.
func TestMetrics_ErrorCounterOnFailure(t *testing.T) {
	m, reader := newTestMetrics(t)

	meta := OpMeta{Op: "fetch_by_id", Provider: "dynamo"}
	m.RecordProviderCall(context.Background(), meta, 50*time.Millisecond, errors.New("provider unavailable"))

	rm := collect(t, reader)
	found := findMetric(rm, "gateway.provider.errors")
	if found == nil {
		t.Fatal("gateway.provider.errors metric not found")
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if sum.DataPoints[0].Value != 1 {
		t.Errorf("expected errors count 1, got %d", sum.DataPoints[0].Value)
	}
}

// TestMetrics_ErrorCounterOnSuccess verifies errors counter NOT incremented on success.
func TestMetrics_ErrorCounterOnSuccess(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordProviderCall(context.Background(), OpMeta{Op: "fetch_all"}, 50*time.Millisecond, nil)

	rm := collect(t, reader)
	found := findMetric(rm, "gateway.provider.errors")
	if found == nil {
		return // No errors recorded at all
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		return
	}
	if len(sum.DataPoints) > 0 && sum.DataPoints[0].Value != 0 {
		t.Errorf("expected errors count 0, got %d", sum.DataPoints[0].Value)
	}
}

// TestMetrics_DurationHistogramRecords verifies duration is recorded.
func TestMetrics_DurationHistogramRecords(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordProviderCall(context.Background(), OpMeta{Op: "fetch_all"}, 50*time.Millisecond, nil)

	rm := collect(t, reader)
	found := findMetric(rm, "gateway.provider.duration_ms")
	if found == nil {
		t.Fatal("gateway.provider.duration_ms metric not found")
	}

	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", found.Data)
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}

	dp := hist.DataPoints[0]
	if dp.Sum < 40 || dp.Sum > 60 {
		t.Errorf("expected duration ~50ms, got %f", dp.Sum)
	}
}

// TestMetrics_LabelsApplied verifies labels include operation metadata.
func TestMetrics_LabelsApplied(t *testing.T) {
	m, reader := newTestMetrics(t)

	meta := OpMeta{Op: "fetch_all", Collection: "stations", Provider: "baserow"}
	m.RecordProviderCall(context.Background(), meta, 10*time.Millisecond, nil)

	rm := collect(t, reader)
	found := findMetric(rm, "gateway.provider.calls")
	if found == nil {
		t.Fatal("gateway.provider.calls metric not found")
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}

	want := map[string]string{
		"content.op":         "fetch_all",
		"content.collection": "stations",
		"content.provider":   "baserow",
	}
	got := make(map[string]string)
	for iter := sum.DataPoints[0].Attributes.Iter(); iter.Next(); {
		kv := iter.Attribute()
		got[string(kv.Key)] = kv.Value.AsString()
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("expected %s=%q, got %q", k, v, got[k])
		}
	}
}

// TestMetrics_CacheResults verifies cache lookup outcomes are labeled.
func TestMetrics_CacheResults(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordCacheResult(context.Background(), "stations", "fresh")
	m.RecordCacheResult(context.Background(), "stations", "fresh")
	m.RecordCacheResult(context.Background(), "stations", "miss")

	rm := collect(t, reader)
	found := findMetric(rm, "gateway.cache.results")
	if found == nil {
		t.Fatal("gateway.cache.results metric not found")
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}

	byResult := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		for iter := dp.Attributes.Iter(); iter.Next(); {
			kv := iter.Attribute()
			if string(kv.Key) == "cache.result" {
				byResult[kv.Value.AsString()] = dp.Value
			}
		}
	}
	if byResult["fresh"] != 2 {
		t.Errorf("expected 2 fresh lookups, got %d", byResult["fresh"])
	}
	if byResult["miss"] != 1 {
		t.Errorf("expected 1 miss, got %d", byResult["miss"])
	}
}

// TestMetrics_RefreshOutcomes verifies refresh outcomes are labeled.
func TestMetrics_RefreshOutcomes(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordRefresh(context.Background(), "stations", nil)
	m.RecordRefresh(context.Background(), "stations", errors.New("boom"))

	rm := collect(t, reader)
	found := findMetric(rm, "gateway.refresh.total")
	if found == nil {
		t.Fatal("gateway.refresh.total metric not found")
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}

	byOutcome := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		for iter := dp.Attributes.Iter(); iter.Next(); {
			kv := iter.Attribute()
			if string(kv.Key) == "refresh.outcome" {
				byOutcome[kv.Value.AsString()] = dp.Value
			}
		}
	}
	if byOutcome["ok"] != 1 || byOutcome["error"] != 1 {
		t.Errorf("expected 1 ok and 1 error, got %v", byOutcome)
	}
}

// TestMetrics_CircuitTransitions verifies transitions carry provider and states.
func TestMetrics_CircuitTransitions(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordCircuitTransition(context.Background(), "baserow", "closed", "open")

	rm := collect(t, reader)
	found := findMetric(rm, "gateway.circuit.transitions")
	if found == nil {
		t.Fatal("gateway.circuit.transitions metric not found")
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}

	got := make(map[string]string)
	for iter := sum.DataPoints[0].Attributes.Iter(); iter.Next(); {
		kv := iter.Attribute()
		got[string(kv.Key)] = kv.Value.AsString()
	}
	if got["content.provider"] != "baserow" || got["circuit.from"] != "closed" || got["circuit.to"] != "open" {
		t.Errorf("unexpected attributes %v", got)
	}
}

// TestMetrics_ConcurrentRecording verifies thread safety.
func TestMetrics_ConcurrentRecording(t *testing.T) {
	m, reader := newTestMetrics(t)

	meta := OpMeta{Op: "fetch_all"}
	const numGoroutines = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			m.RecordProviderCall(context.Background(), meta, time.Millisecond, nil)
		}()
	}

	wg.Wait()

	rm := collect(t, reader)
	found := findMetric(rm, "gateway.provider.calls")
	if found == nil {
		t.Fatal("gateway.provider.calls metric not found")
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if sum.DataPoints[0].Value != numGoroutines {
		t.Errorf("expected count %d, got %d", numGoroutines, sum.DataPoints[0].Value)
	}
}

// findMetric searches for a metric by name in ResourceMetrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}
