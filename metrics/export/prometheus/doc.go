// Package prometheus renders sphereauth metrics in Prometheus text exposition format.
//
// [NewPrometheusExporter] accepts a [sphereauth.Engine] and exposes an [http.Handler].
// Counter names are prefixed sphereauth_*_total; the single histogram is
// sphereauth_verify_latency_seconds.
//
// Nothing is registered in a global registry; callers mount the Handler.
package prometheus
