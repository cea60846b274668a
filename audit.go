package sphereauth

import (
	"io"

	"github.com/elimusphere/sphereauth/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one security-relevant record emitted by the Engine.
type AuditEvent = audit.Event

// AuditSink receives audit events from the Engine's background dispatcher.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel, mostly for tests.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// ZapSink writes each audit event as a structured log entry.
type ZapSink = audit.ZapSink

// MultiSink fans events out to several sinks.
type MultiSink = audit.MultiSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewZapSink returns a sink logging through logger under the "audit" name.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return audit.NewZapSink(logger)
}
