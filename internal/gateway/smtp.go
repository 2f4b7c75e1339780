package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

const defaultSMTPTimeout = 30 * time.Second

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPGateway sends through a plain SMTP relay.
type SMTPGateway struct {
	from    string
	timeout time.Duration
	send    func(m ...*gomail.Message) error
}

func NewSMTPGateway(cfg SMTPConfig) (*SMTPGateway, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("smtp port must be positive")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &SMTPGateway{
		from:    cfg.From,
		timeout: timeout,
		send:    dialer.DialAndSend,
	}, nil
}

func (g *SMTPGateway) Send(ctx context.Context, msg OutboundMessage) (*SendResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	m := newMIMEMessage(g.from, msg)
	done := make(chan error, 1)
	go func() {
		done <- g.send(m)
	}()

	select {
	case <-ctx.Done():
		return nil, &SendError{
			Message:   "smtp send interrupted",
			Transient: !errors.Is(ctx.Err(), context.Canceled),
			Cause:     ctx.Err(),
		}
	case err := <-done:
		if err != nil {
			return nil, smtpError(err)
		}
	}

	result := &SendResult{}
	if ids := m.GetHeader("Message-ID"); len(ids) > 0 {
		result.MessageID = ids[0]
	}
	return result, nil
}

// smtpError treats 4xx replies and connection failures as transient.
func smtpError(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return &SendError{
			StatusCode: protoErr.Code,
			Message:    "smtp server rejected message",
			Transient:  protoErr.Code >= 400 && protoErr.Code < 500,
			Cause:      err,
		}
	}
	return &SendError{Message: "smtp send failed", Transient: true, Cause: err}
}
