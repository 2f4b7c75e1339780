// Package composer renders sequence step templates for a lead.
package composer

import (
	"errors"
	"fmt"
	"html"
	"math/rand"
	"regexp"
	"strings"

	"github.com/kursadbilgin/drip-engine/internal/domain"
	"github.com/kursadbilgin/drip-engine/internal/tracking"
)

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Message is a rendered email ready for a gateway.
type Message struct {
	To         string
	Subject    string
	Body       string
	TrackingID *string
}

// Render replaces every {{field}} token in tmpl with the matching value from
// fields. Tokens without a value render as the empty string.
func Render(tmpl string, fields map[string]string) string {
	return render(tmpl, fields, nil)
}

func render(tmpl string, fields map[string]string, escape func(string) string) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(token string) string {
		name := placeholderPattern.FindStringSubmatch(token)[1]
		value := fields[name]
		if escape != nil {
			value = escape(value)
		}
		return value
	})
}

type Composer struct {
	trackingBaseURL string
	newToken        func() string
	randIntn        func(n int) int
}

func New(trackingBaseURL string) (*Composer, error) {
	trackingBaseURL = strings.TrimRight(strings.TrimSpace(trackingBaseURL), "/")
	if trackingBaseURL == "" {
		return nil, errors.New("tracking base url is required")
	}

	return &Composer{
		trackingBaseURL: trackingBaseURL,
		newToken:        tracking.NewToken,
		randIntn:        rand.Intn,
	}, nil
}

// Compose renders step for lead. With track set, a fresh tracking token is
// minted and a pixel referencing it is appended to the body.
func (c *Composer) Compose(step domain.SequenceStep, lead domain.Lead, track bool) (*Message, error) {
	if !lead.Sendable() {
		return nil, fmt.Errorf("%w: lead %s has no email", domain.ErrValidation, lead.ID)
	}

	fields := lead.Fields()
	return c.ComposeRaw(strings.TrimSpace(*lead.Email), render(step.Subject, fields, nil), render(step.Body, fields, html.EscapeString), track), nil
}

// ComposeRaw wraps an already rendered subject and body for delivery.
func (c *Composer) ComposeRaw(to string, subject string, body string, track bool) *Message {
	msg := &Message{
		To:      to,
		Subject: subject,
		Body:    body,
	}
	if track {
		token := c.newToken()
		msg.TrackingID = &token
		msg.Body += c.pixelTag(token)
	}
	return msg
}

// PixelURL is the public address of the tracking pixel for token.
func (c *Composer) PixelURL(token string) string {
	return fmt.Sprintf("%s/track/%s?r=%d", c.trackingBaseURL, token, c.randIntn(1_000_000_000))
}

func (c *Composer) pixelTag(token string) string {
	return fmt.Sprintf(`<img src="%s" width="1" height="1" alt="" style="display:none" />`, c.PixelURL(token))
}
