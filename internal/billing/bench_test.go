package billing

import (
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func benchItems(n int) []LineItem {
	items := make([]LineItem, n)
	for i := range items {
		items[i] = NewLineItem("Line "+strconv.Itoa(i), strconv.Itoa(i%7+1), "1234.5678")
	}
	return items
}

func benchInvoices(n int) []fakeInvoice {
	out := make([]fakeInvoice, n)
	for i := range out {
		out[i] = fakeInvoice{status: allStatuses[i%len(allStatuses)], total: decimal.NewFromInt(int64(i))}
	}
	return out
}

func BenchmarkComputeTotals(b *testing.B) {
	items := benchItems(50)
	tax := TaxConfig{Mode: TaxPercentage, Rate: decimal.RequireFromString("18")}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ComputeTotals(items, tax)
	}
}

func BenchmarkAggregate(b *testing.B) {
	invoices := benchInvoices(1000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Aggregate(invoices)
	}
}

func TestComputeTotalsLatencyBudget(t *testing.T) {
	items := benchItems(200)
	tax := TaxConfig{Mode: TaxPercentage, Rate: decimal.RequireFromString("18")}

	samples := make([]time.Duration, 50)
	for i := range samples {
		start := time.Now()
		ComputeTotals(items, tax)
		samples[i] = time.Since(start)
	}
	if p95 := percentile95(samples); p95 > 50*time.Millisecond {
		t.Fatalf("totals latency regression: p95=%s", p95)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[int(float64(len(sorted)-1)*0.95)]
}
