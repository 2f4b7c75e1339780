package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// ErrorReporter forwards errors to Sentry. A reporter built without a DSN
// drops everything, so callers never need to nil-check it.
type ErrorReporter struct {
	hub *sentry.Hub
}

func NewErrorReporter(cfg SentryConfig) (*ErrorReporter, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return &ErrorReporter{}, nil
	}
	return newErrorReporter(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		AttachStacktrace: true,
	})
}

func newErrorReporter(opts sentry.ClientOptions) (*ErrorReporter, error) {
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &ErrorReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Capture reports err with tags. Context cancellation is not reported.
func (r *ErrorReporter) Capture(ctx context.Context, err error, tags map[string]string) {
	if r == nil || r.hub == nil || err == nil || errors.Is(err, context.Canceled) {
		return
	}

	r.hub.WithScope(func(scope *sentry.Scope) {
		for _, field := range ScopeFields(ctx) {
			scope.SetTag(field.Key, field.String)
		}
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		r.hub.CaptureException(err)
	})
}

func (r *ErrorReporter) Flush(timeout time.Duration) bool {
	if r == nil || r.hub == nil {
		return true
	}
	return r.hub.Flush(timeout)
}
