package queue

import (
	"context"
	"time"

	"github.com/kursadbilgin/drip-engine/internal/domain"
	"github.com/kursadbilgin/drip-engine/internal/observability"
	"go.uber.org/zap"
)

// Notifier turns message log changes into published delivery events.
// Publish failures are logged and never surface to the send path.
type Notifier struct {
	publisher EventPublisher
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewNotifier(publisher EventPublisher, logger *zap.Logger) *Notifier {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{publisher: publisher, logger: logger, now: time.Now}
}

func (n *Notifier) SetMetrics(metrics *observability.Metrics) {
	n.metrics = metrics
}

func (n *Notifier) MessageSent(ctx context.Context, log domain.MessageLog) {
	n.publish(ctx, EventMessageSent, log)
}

func (n *Notifier) MessageFailed(ctx context.Context, log domain.MessageLog) {
	n.publish(ctx, EventMessageFailed, log)
}

func (n *Notifier) MessageOpened(ctx context.Context, log domain.MessageLog) {
	n.publish(ctx, EventMessageOpened, log)
}

func (n *Notifier) publish(ctx context.Context, t EventType, log domain.MessageLog) {
	event := NewDeliveryEvent(t, log, n.now())
	if runID, ok := observability.RunIDFromContext(ctx); ok {
		event.RunID = runID
	}

	err := n.publisher.Publish(ctx, event)
	n.metrics.IncEventPublished(string(t), err)
	if err != nil {
		observability.WithContextLogger(n.logger, ctx).Warn("failed to publish delivery event",
			zap.String("event", string(t)),
			zap.String("messageLogId", log.ID),
			zap.Error(err),
		)
	}
}
