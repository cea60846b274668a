package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidMessage is returned by senders when a message has no recipient.
var ErrInvalidMessage = errors.New("mail: message requires a recipient")

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a single message. Implementations must honour ctx cancellation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// ResetMessage builds the reset code email sent to name at to. The validity window is
// rendered in whole minutes.
func ResetMessage(subject, to, name, code string, ttl time.Duration) Message {
	minutes := int(ttl / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", name)
	fmt.Fprintf(&b, "Your password reset OTP is: %s\n", code)
	fmt.Fprintf(&b, "It will expire in %d minutes.\n\n", minutes)
	b.WriteString("If you did not request this, please ignore this email.")

	return Message{
		To:      to,
		Subject: subject,
		Body:    b.String(),
	}
}
