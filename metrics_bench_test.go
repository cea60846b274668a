package sphereauth

import (
	"testing"
	"time"
)

// verifyLatencies spans every histogram bucket so Observe exercises the whole switch.
var verifyLatencies = [...]time.Duration{
	8 * time.Millisecond,
	22 * time.Millisecond,
	45 * time.Millisecond,
	90 * time.Millisecond,
	180 * time.Millisecond,
	400 * time.Millisecond,
	900 * time.Millisecond,
	2 * time.Second,
}

// BenchmarkMetricsLoginPath records what one successful Verify records.
func BenchmarkMetricsLoginPath(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricLoginSuccess)
		m.Observe(MetricVerifyLatency, verifyLatencies[i&7])
	}
}

func BenchmarkMetricsLoginPathDisabled(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricLoginSuccess)
		m.Observe(MetricVerifyLatency, verifyLatencies[i&7])
	}
}

// BenchmarkMetricsLoginStormParallel models a burst of failed logins from many
// clients, the pattern the throttle counters see under attack.
func BenchmarkMetricsLoginStormParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			m.Inc(MetricLoginFailure)
			if i%5 == 4 {
				m.Inc(MetricLoginRateLimited)
				m.Inc(MetricRateLimitHit)
			}
			m.Observe(MetricVerifyLatency, verifyLatencies[i&7])
			i++
		}
	})
}

// BenchmarkMetricsResetRoundTripParallel records a reset request followed by a
// successful confirmation.
func BenchmarkMetricsResetRoundTripParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricPasswordResetRequest)
			m.Inc(MetricResetMailQueued)
			m.Inc(MetricPasswordResetConfirmSuccess)
		}
	})
}

func BenchmarkMetricsSnapshot(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	for id := MetricID(0); id < metricIDCount; id++ {
		m.Inc(id)
	}
	for _, d := range verifyLatencies {
		m.Observe(MetricVerifyLatency, d)
	}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		s := m.Snapshot()
		if s.Counters[MetricLoginSuccess] != 1 {
			b.Fatalf("unexpected login counter %d", s.Counters[MetricLoginSuccess])
		}
	}
}
