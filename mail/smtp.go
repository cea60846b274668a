package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
)

const defaultSMTPTimeout = 15 * time.Second

// SMTPConfig holds the relay settings for SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// Timeout bounds a whole delivery when the caller's context has no earlier
	// deadline. Zero means 15s.
	Timeout time.Duration
}

// Configured reports whether enough settings are present to reach a relay.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.Username != "" && c.Password != ""
}

// SMTPSender sends messages through an SMTP relay with PLAIN authentication.
// Delivery runs on the caller's goroutine and stops once ctx ends.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	timeout  time.Duration

	// send is swapped in tests.
	send func(ctx context.Context, m *gomail.Msg) error
}

// NewSMTPSender validates cfg and returns a sender. Port defaults to 587 and From
// defaults to Username.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if !cfg.Configured() {
		return nil, errors.New("mail: smtp host, username and password are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("mail: invalid smtp port %d", cfg.Port)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("mail: invalid smtp timeout %s", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}

	s := &SMTPSender{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		timeout:  cfg.Timeout,
	}
	s.send = s.deliver
	return s, nil
}

// Send delivers msg and returns when the relay accepts it, refuses it, or ctx ends.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrInvalidMessage
	}
	if containsLineBreak(msg.To) || containsLineBreak(msg.Subject) {
		return ErrInvalidMessage
	}

	m, err := s.compose(msg)
	if err != nil {
		return err
	}
	if err := s.send(ctx, m); err != nil {
		return fmt.Errorf("mail: smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) compose(msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("mail: from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return m, nil
}

// deliver opens one relay connection per message. Every read and write on the
// connection is bounded by ctx's deadline (or the sender timeout), and the
// connection is closed before deliver returns.
func (s *SMTPSender) deliver(ctx context.Context, m *gomail.Msg) error {
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return context.DeadlineExceeded
	}

	var conn net.Conn
	dial := func(dialCtx context.Context, network, addr string) (net.Conn, error) {
		var d net.Dialer
		c, err := d.DialContext(dialCtx, network, addr)
		if err != nil {
			return nil, err
		}
		if err := c.SetDeadline(deadline); err != nil {
			_ = c.Close()
			return nil, err
		}
		conn = c
		return c, nil
	}

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTimeout(remaining),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithDialContextFunc(dial),
	)
	if err != nil {
		return err
	}

	err = client.DialAndSendWithContext(ctx, m)
	if conn != nil {
		_ = conn.Close()
	}
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func containsLineBreak(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}
