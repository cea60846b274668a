package sphereauth

import (
	"sync/atomic"
	"time"
)

// MetricID indexes a counter in Metrics.
type MetricID uint16

const (
	// MetricRegisterSuccess counts registrations that created a user and profile.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterFailure counts registrations rejected for input, policy or store errors.
	MetricRegisterFailure
	// MetricRegisterDuplicate counts registrations rejected because the email exists.
	MetricRegisterDuplicate
	// MetricRegisterRateLimited counts registrations rejected by the per-IP throttle.
	MetricRegisterRateLimited
	// MetricLoginSuccess counts verifications that returned an identity.
	MetricLoginSuccess
	// MetricLoginFailure counts verifications rejected for unknown identifier, wrong role or wrong password.
	MetricLoginFailure
	// MetricLoginRateLimited counts verifications refused by the login throttle.
	MetricLoginRateLimited
	// MetricPasswordUpgraded counts stored hashes replaced on login because their parameters were outdated.
	MetricPasswordUpgraded
	// MetricPasswordResetRequest counts accepted reset requests, including those for unknown emails.
	MetricPasswordResetRequest
	// MetricPasswordResetConfirmSuccess counts reset confirmations that replaced the password.
	MetricPasswordResetConfirmSuccess
	// MetricPasswordResetConfirmFailure counts reset confirmations rejected for any reason.
	MetricPasswordResetConfirmFailure
	// MetricPasswordResetExpired counts confirmations that presented an expired code.
	MetricPasswordResetExpired
	// MetricPasswordResetAttemptsExceeded counts confirmations refused by the confirm throttle.
	MetricPasswordResetAttemptsExceeded
	// MetricResetMailQueued counts reset messages accepted by the mail queue.
	MetricResetMailQueued
	// MetricResetMailDropped counts reset messages dropped because the mail queue was full.
	MetricResetMailDropped
	// MetricStudentRecordUpdated counts academic record writes by teachers.
	MetricStudentRecordUpdated
	// MetricAccessTokenIssued counts access tokens signed after login.
	MetricAccessTokenIssued
	// MetricAccessTokenRejected counts access tokens that failed parsing or validation.
	MetricAccessTokenRejected
	// MetricRateLimitHit counts any throttle refusal across all flows.
	MetricRateLimitHit
	// MetricVerifyLatency is the latency histogram for credential verification.
	MetricVerifyLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and the verify latency histogram.
//
// A disabled Metrics accepts every call and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and the verify latency
// buckets.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the verify latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricVerifyLatency has a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricVerifyLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current counter for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the verify latency buckets.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
	}

	return s
}

// Buckets are sized for Argon2id verification, which dominates login latency.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 10:
		return 0
	case ms <= 25:
		return 1
	case ms <= 50:
		return 2
	case ms <= 100:
		return 3
	case ms <= 250:
		return 4
	case ms <= 500:
		return 5
	case ms <= 1000:
		return 6
	default:
		return 7
	}
}
