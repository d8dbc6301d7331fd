package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the SMTP relay settings. All four of Host, Port,
// Username and Password are required.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// SMTPSender delivers mail through an authenticated SMTP relay.
//
// CIRCUIT BREAKER:
// Every send goes through a gobreaker.CircuitBreaker. After five
// consecutive failures the breaker opens and sends fail immediately with
// ErrUnavailable for 30 seconds, then a single trial send decides whether
// to close it again. A dead relay therefore costs one fast error per
// request instead of a full dial timeout.
type SMTPSender struct {
	cfg     SMTPConfig
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger

	// deliver does the network work; tests replace it.
	deliver func(ctx context.Context, msg *mail.Msg) error
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender validates cfg and returns a sender. No connection is made
// until the first Send.
func NewSMTPSender(cfg SMTPConfig, logger *slog.Logger) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.Port == 0 || cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("mailer: SMTP host, port, user and password are all required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	s := &SMTPSender{cfg: cfg, logger: logger}
	s.deliver = s.dialAndSend
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("mail circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return s, nil
}

// Send builds msg and delivers it through the circuit breaker.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := buildMsg(msg)
	if err != nil {
		return err
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.deliver(ctx, m)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrUnavailable
	}
	if err != nil {
		return fmt.Errorf("mailer: sending: %w", err)
	}
	return nil
}

// buildMsg renders msg with go-mail. FromFormat and AddToFormat quote or
// encode the display name as needed and reject malformed mailboxes.
func buildMsg(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(msg.From.Name, msg.From.Address); err != nil {
		return nil, fmt.Errorf("mailer: invalid from address: %w", err)
	}
	if err := m.AddToFormat(msg.To.Name, msg.To.Address); err != nil {
		return nil, fmt.Errorf("mailer: invalid to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

func (s *SMTPSender) dialAndSend(ctx context.Context, m *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
		mail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, m)
}
