package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/drip-engine/internal/composer"
	"github.com/kursadbilgin/drip-engine/internal/domain"
	"github.com/kursadbilgin/drip-engine/internal/observability"
	"github.com/kursadbilgin/drip-engine/internal/ratelimit"
	"github.com/kursadbilgin/drip-engine/internal/repository"
	"github.com/kursadbilgin/drip-engine/internal/sequence"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minRunnerConcurrency   = 1
	defaultRunInterval     = 15 * time.Minute
	defaultPairLockTTL     = 2 * time.Minute
	pairLockReleaseTimeout = 5 * time.Second
)

// PassSummary describes the outcome of one campaign pass.
type PassSummary struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Campaigns  int       `json:"campaigns"`
	Visited    int       `json:"visited"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Duplicates int       `json:"duplicates"`
	Errors     int       `json:"errors"`
}

type pairOutcome int

const (
	outcomeSent pairOutcome = iota
	outcomeSentDuplicate
	outcomeFailed
	outcomeNoEmail
	outcomeNotDue
	outcomeExhausted
	outcomeLocked
	outcomeQuota
	outcomeError
)

var skipReasons = map[pairOutcome]string{
	outcomeNoEmail:   "no_email",
	outcomeNotDue:    "not_due",
	outcomeExhausted: "exhausted",
	outcomeLocked:    "locked",
	outcomeQuota:     "quota_exhausted",
}

type RunnerOptions struct {
	Concurrency int
	Interval    time.Duration
	LockTTL     time.Duration
}

// CampaignRunner walks every active campaign, asks the scheduler which step
// each lead is due for and delivers it. Passes are stateless; all progress
// lives in the delivery ledger.
type CampaignRunner struct {
	campaigns   repository.CampaignRepository
	leads       repository.LeadRepository
	ledger      repository.LedgerRepository
	composer    *composer.Composer
	deliverer   *Deliverer
	locker      ratelimit.Locker
	logger      *zap.Logger
	metrics     *observability.Metrics
	reporter    *observability.ErrorReporter
	concurrency int
	interval    time.Duration
	lockTTL     time.Duration
	now         func() time.Time
	newRunID    func() string
}

func NewCampaignRunner(
	campaigns repository.CampaignRepository,
	leads repository.LeadRepository,
	ledger repository.LedgerRepository,
	messageComposer *composer.Composer,
	deliverer *Deliverer,
	locker ratelimit.Locker,
	opts RunnerOptions,
	logger *zap.Logger,
) (*CampaignRunner, error) {
	if campaigns == nil || leads == nil || ledger == nil {
		return nil, errors.New("campaign, lead and ledger repositories are required")
	}
	if messageComposer == nil {
		return nil, errors.New("composer is required")
	}
	if deliverer == nil {
		return nil, errors.New("deliverer is required")
	}
	if opts.Concurrency < minRunnerConcurrency {
		opts.Concurrency = minRunnerConcurrency
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultRunInterval
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultPairLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CampaignRunner{
		campaigns:   campaigns,
		leads:       leads,
		ledger:      ledger,
		composer:    messageComposer,
		deliverer:   deliverer,
		locker:      locker,
		logger:      logger,
		concurrency: opts.Concurrency,
		interval:    opts.Interval,
		lockTTL:     opts.LockTTL,
		now:         time.Now,
		newRunID:    uuid.NewString,
	}, nil
}

func (r *CampaignRunner) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

func (r *CampaignRunner) SetErrorReporter(reporter *observability.ErrorReporter) {
	if r == nil {
		return
	}
	r.reporter = reporter
}

// Start runs a pass immediately and then once per interval until ctx is done.
func (r *CampaignRunner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("initial campaign pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("campaign pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs one pass. Only failing to list campaigns aborts it; every
// per-lead problem is logged, counted and skipped.
func (r *CampaignRunner) RunOnce(ctx context.Context) (PassSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	runID := r.newRunID()
	ctx = observability.WithRunID(ctx, runID)
	logger := observability.WithContextLogger(r.logger, ctx)

	tally := &passTally{summary: PassSummary{RunID: runID, StartedAt: r.now().UTC()}}
	defer func() {
		r.metrics.ObservePassDuration(r.now().Sub(tally.summary.StartedAt))
	}()

	campaigns, err := r.campaigns.ListActive(ctx)
	if err != nil {
		r.reporter.Capture(ctx, err, map[string]string{"component": "runner"})
		return tally.finish(r.now()), fmt.Errorf("failed to list active campaigns: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i := range campaigns {
		campaign := campaigns[i]
		if !campaign.Active() {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		leads, err := r.leads.ListSendableBySegment(ctx, *campaign.SegmentID)
		if err != nil {
			logger.Error("failed to load campaign leads",
				zap.String("campaignId", campaign.ID),
				zap.Error(err),
			)
			r.reporter.Capture(ctx, err, map[string]string{"campaignId": campaign.ID})
			tally.add(outcomeError)
			continue
		}
		tally.addCampaign()

		for j := range leads {
			lead := leads[j]
			g.Go(func() error {
				tally.add(r.processPair(ctx, &campaign, lead))
				return nil
			})
		}
	}

	_ = g.Wait()

	summary := tally.finish(r.now())
	logger.Info("campaign pass finished",
		zap.Int("campaigns", summary.Campaigns),
		zap.Int("visited", summary.Visited),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("errors", summary.Errors),
	)
	return summary, nil
}

func (r *CampaignRunner) processPair(ctx context.Context, campaign *domain.Campaign, lead domain.Lead) pairOutcome {
	ctx = observability.WithPair(ctx, campaign.ID, lead.ID)
	logger := observability.WithContextLogger(r.logger, ctx)

	outcome := r.deliverNext(ctx, logger, campaign, lead)
	if reason, ok := skipReasons[outcome]; ok {
		r.metrics.IncLeadSkipped(reason)
	}
	return outcome
}

func (r *CampaignRunner) deliverNext(ctx context.Context, logger *zap.Logger, campaign *domain.Campaign, lead domain.Lead) pairOutcome {
	if !lead.Sendable() {
		return outcomeNoEmail
	}

	if r.locker != nil {
		release, err := r.locker.TryLock(ctx, pairLockKey(lead.ID, campaign.ID), r.lockTTL)
		if err != nil {
			logger.Error("failed to acquire pair lock", zap.Error(err))
			r.reporter.Capture(ctx, err, pairTags(campaign.ID, lead.ID, ""))
			return outcomeError
		}
		if release == nil {
			logger.Debug("pair locked by another pass")
			return outcomeLocked
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pairLockReleaseTimeout)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				logger.Warn("failed to release pair lock", zap.Error(err))
			}
		}()
	}

	entries, err := r.ledger.ListForLeadCampaign(ctx, lead.ID, campaign.ID)
	if err != nil {
		logger.Error("failed to load ledger entries", zap.Error(err))
		r.reporter.Capture(ctx, err, pairTags(campaign.ID, lead.ID, ""))
		return outcomeError
	}

	decision := sequence.Decide(campaign.Steps, entries, r.now())
	if decision.Fallback {
		logger.Info("ledger references removed steps, resuming by position",
			zap.Int("completed", decision.Completed),
		)
	}
	if decision.Exhausted() {
		return outcomeExhausted
	}
	if !decision.DueNow {
		return outcomeNotDue
	}

	step := *decision.Step
	msg, err := r.composer.Compose(step, lead, true)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return outcomeNoEmail
		}
		logger.Error("failed to compose message", zap.Error(err))
		return outcomeError
	}

	leadID, campaignID, stepID := lead.ID, campaign.ID, step.ID
	log, err := r.deliverer.Deliver(ctx, msg, deliveryMeta{
		Type:       domain.MessageTypeCampaign,
		LeadID:     &leadID,
		CampaignID: &campaignID,
		StepID:     &stepID,
	})
	if errors.Is(err, ratelimit.ErrQuotaExhausted) {
		logger.Debug("daily send quota exhausted, step deferred", zap.String("stepId", step.ID))
		return outcomeQuota
	}
	if err != nil {
		logger.Warn("step delivery failed, will retry next pass",
			zap.String("stepId", step.ID),
			zap.Int("orderIndex", step.OrderIndex),
			zap.Error(err),
		)
		r.reporter.Capture(ctx, err, pairTags(campaign.ID, lead.ID, step.ID))
		return outcomeFailed
	}

	recorded, err := r.ledger.Record(ctx, &domain.LedgerEntry{
		ID:         uuid.NewString(),
		LeadID:     lead.ID,
		StepID:     step.ID,
		CampaignID: campaign.ID,
		SentAt:     log.CreatedAt,
	})
	if err != nil {
		logger.Error("message sent but ledger entry not recorded",
			zap.String("stepId", step.ID),
			zap.Error(err),
		)
		r.reporter.Capture(ctx, err, pairTags(campaign.ID, lead.ID, step.ID))
		return outcomeSent
	}
	if !recorded {
		r.metrics.IncLedgerDuplicate()
		logger.Info("ledger entry already present", zap.String("stepId", step.ID))
		return outcomeSentDuplicate
	}

	logger.Debug("step delivered",
		zap.String("stepId", step.ID),
		zap.Int("orderIndex", step.OrderIndex),
	)
	return outcomeSent
}

func pairLockKey(leadID string, campaignID string) string {
	return "pair:" + campaignID + ":" + leadID
}

func pairTags(campaignID string, leadID string, stepID string) map[string]string {
	tags := map[string]string{"campaignId": campaignID, "leadId": leadID}
	if stepID != "" {
		tags["stepId"] = stepID
	}
	return tags
}

type passTally struct {
	mu      sync.Mutex
	summary PassSummary
}

func (t *passTally) addCampaign() {
	t.mu.Lock()
	t.summary.Campaigns++
	t.mu.Unlock()
}

func (t *passTally) add(outcome pairOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch outcome {
	case outcomeSent:
		t.summary.Visited++
		t.summary.Sent++
	case outcomeSentDuplicate:
		t.summary.Visited++
		t.summary.Sent++
		t.summary.Duplicates++
	case outcomeFailed:
		t.summary.Visited++
		t.summary.Failed++
	case outcomeError:
		t.summary.Errors++
	default:
		t.summary.Visited++
		t.summary.Skipped++
	}
}

func (t *passTally) finish(now time.Time) PassSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.FinishedAt = now.UTC()
	return t.summary
}
