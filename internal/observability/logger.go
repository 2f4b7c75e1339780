package observability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "drip-engine"

// NewLogger builds the JSON production logger. Sampling is off: a pass logs
// one line per skipped or failed lead and none of them may be dropped.
func NewLogger(level string) (*zap.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsedLevel)
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	cfg.InitialFields = map[string]any{"service": serviceName}

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		return zapcore.InfoLevel, nil
	}

	var parsed zapcore.Level
	if err := parsed.UnmarshalText([]byte(normalized)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return parsed, nil
}

// deliveryScope is what a context knows about the send it is serving.
type deliveryScope struct {
	runID      string
	campaignID string
	leadID     string
}

type deliveryScopeKey struct{}

func scopeFrom(ctx context.Context) deliveryScope {
	if ctx == nil {
		return deliveryScope{}
	}
	scope, _ := ctx.Value(deliveryScopeKey{}).(deliveryScope)
	return scope
}

func withScope(ctx context.Context, scope deliveryScope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, deliveryScopeKey{}, scope)
}

// WithRunID tags ctx with the campaign pass it belongs to.
func WithRunID(ctx context.Context, runID string) context.Context {
	scope := scopeFrom(ctx)
	scope.runID = strings.TrimSpace(runID)
	return withScope(ctx, scope)
}

// WithPair narrows ctx to one (campaign, lead) pair of a pass.
func WithPair(ctx context.Context, campaignID string, leadID string) context.Context {
	scope := scopeFrom(ctx)
	scope.campaignID = campaignID
	scope.leadID = leadID
	return withScope(ctx, scope)
}

func RunIDFromContext(ctx context.Context) (string, bool) {
	runID := scopeFrom(ctx).runID
	return runID, runID != ""
}

// ScopeFields returns the zap fields for whatever scope ctx carries.
func ScopeFields(ctx context.Context) []zap.Field {
	scope := scopeFrom(ctx)

	fields := make([]zap.Field, 0, 3)
	if scope.runID != "" {
		fields = append(fields, zap.String("runId", scope.runID))
	}
	if scope.campaignID != "" {
		fields = append(fields, zap.String("campaignId", scope.campaignID))
	}
	if scope.leadID != "" {
		fields = append(fields, zap.String("leadId", scope.leadID))
	}
	return fields
}

func WithContextLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		return nil
	}

	fields := ScopeFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
