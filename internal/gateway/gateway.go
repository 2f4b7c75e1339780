// Package gateway delivers rendered messages through the connected mailbox.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/drip-engine/internal/domain"
	"gopkg.in/gomail.v2"
)

// Gateway is the outbound email delivery port. A failed Send always returns
// a non-nil error; callers never retry inside one call.
type Gateway interface {
	Send(ctx context.Context, msg OutboundMessage) (*SendResult, error)
}

type OutboundMessage struct {
	To       string
	Subject  string
	HTMLBody string
}

func (m OutboundMessage) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: recipient is required", domain.ErrValidation)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: subject is required", domain.ErrValidation)
	}
	return nil
}

// SendResult carries provider metadata of an accepted message.
type SendResult struct {
	MessageID string
}

func newMIMEMessage(from string, msg OutboundMessage) *gomail.Message {
	m := gomail.NewMessage()
	if from != "" {
		m.SetHeader("From", from)
	}
	m.SetHeader("To", strings.TrimSpace(msg.To))
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)
	return m
}

// encodeMIME renders msg as an RFC 5322 message.
func encodeMIME(from string, msg OutboundMessage) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := newMIMEMessage(from, msg).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return buf.Bytes(), nil
}
