package internaldefs

import (
	"github.com/elimusphere/sphereauth"
)

// CounterDef defines a public type used by sphereauth APIs.
type CounterDef struct {
	ID   sphereauth.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by sphereauth APIs.
type HistogramDef struct {
	ID   sphereauth.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: sphereauth.MetricRegisterSuccess, Name: "sphereauth_register_success_total", Help: "Registrations that created a user and profile."},
	{ID: sphereauth.MetricRegisterFailure, Name: "sphereauth_register_failure_total", Help: "Registrations rejected for input, policy or store errors."},
	{ID: sphereauth.MetricRegisterDuplicate, Name: "sphereauth_register_duplicate_total", Help: "Registrations rejected because the email is taken."},
	{ID: sphereauth.MetricRegisterRateLimited, Name: "sphereauth_register_rate_limited_total", Help: "Rate-limited registration attempts."},
	{ID: sphereauth.MetricLoginSuccess, Name: "sphereauth_login_success_total", Help: "Successful credential verifications."},
	{ID: sphereauth.MetricLoginFailure, Name: "sphereauth_login_failure_total", Help: "Failed credential verifications."},
	{ID: sphereauth.MetricLoginRateLimited, Name: "sphereauth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: sphereauth.MetricPasswordUpgraded, Name: "sphereauth_password_upgraded_total", Help: "Stored hashes rehashed on login."},
	{ID: sphereauth.MetricPasswordResetRequest, Name: "sphereauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: sphereauth.MetricPasswordResetConfirmSuccess, Name: "sphereauth_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: sphereauth.MetricPasswordResetConfirmFailure, Name: "sphereauth_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: sphereauth.MetricPasswordResetExpired, Name: "sphereauth_password_reset_expired_total", Help: "Reset confirmations with an expired code."},
	{ID: sphereauth.MetricPasswordResetAttemptsExceeded, Name: "sphereauth_password_reset_attempts_exceeded_total", Help: "Reset requests or confirmations denied by throttling."},
	{ID: sphereauth.MetricResetMailQueued, Name: "sphereauth_reset_mail_queued_total", Help: "Reset emails handed to the mail dispatcher."},
	{ID: sphereauth.MetricResetMailDropped, Name: "sphereauth_reset_mail_dropped_total", Help: "Reset emails dropped because the mail queue was full."},
	{ID: sphereauth.MetricStudentRecordUpdated, Name: "sphereauth_student_record_updated_total", Help: "Student record updates."},
	{ID: sphereauth.MetricAccessTokenIssued, Name: "sphereauth_access_token_issued_total", Help: "Issued access tokens."},
	{ID: sphereauth.MetricAccessTokenRejected, Name: "sphereauth_access_token_rejected_total", Help: "Rejected access tokens."},
	{ID: sphereauth.MetricRateLimitHit, Name: "sphereauth_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs is an exported constant or variable used by the authentication engine.
var HistogramDefs = []HistogramDef{
	{ID: sphereauth.MetricVerifyLatency, Name: "sphereauth_verify_latency_seconds", Help: "Credential verification latency histogram."},
}

// HistogramBounds lists upper bounds matching the engine's verify latency buckets.
var HistogramBounds = []string{
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the authentication engine.
var HistogramBoundSuffix = []string{
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
