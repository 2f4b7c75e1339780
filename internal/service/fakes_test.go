package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/drip-engine/internal/composer"
	"github.com/kursadbilgin/drip-engine/internal/domain"
	"github.com/kursadbilgin/drip-engine/internal/gateway"
	"github.com/kursadbilgin/drip-engine/internal/repository"
)

type fakeCampaignRepo struct {
	createFn     func(ctx context.Context, c *domain.Campaign) error
	getByIDFn    func(ctx context.Context, id string) (*domain.Campaign, error)
	listFn       func(ctx context.Context) ([]domain.Campaign, error)
	listActiveFn func(ctx context.Context) ([]domain.Campaign, error)
	updateFn     func(ctx context.Context, c *domain.Campaign) error
	deleteFn     func(ctx context.Context, id string) error
}

func (f *fakeCampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	if f.createFn != nil {
		return f.createFn(ctx, c)
	}
	return nil
}

func (f *fakeCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCampaignRepo) List(ctx context.Context) ([]domain.Campaign, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

func (f *fakeCampaignRepo) ListActive(ctx context.Context) ([]domain.Campaign, error) {
	if f.listActiveFn != nil {
		return f.listActiveFn(ctx)
	}
	return nil, nil
}

func (f *fakeCampaignRepo) Update(ctx context.Context, c *domain.Campaign) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, c)
	}
	return nil
}

func (f *fakeCampaignRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeLeadRepo struct {
	createFn                func(ctx context.Context, lead *domain.Lead) error
	createBatchFn           func(ctx context.Context, leads []*domain.Lead) error
	getByIDFn               func(ctx context.Context, id string) (*domain.Lead, error)
	listFn                  func(ctx context.Context, params repository.LeadListParams) ([]domain.Lead, int64, error)
	listSendableBySegmentFn func(ctx context.Context, segmentID string) ([]domain.Lead, error)
	countFn                 func(ctx context.Context) (int64, error)
	deleteFn                func(ctx context.Context, id string) error
}

func (f *fakeLeadRepo) Create(ctx context.Context, lead *domain.Lead) error {
	if f.createFn != nil {
		return f.createFn(ctx, lead)
	}
	return nil
}

func (f *fakeLeadRepo) CreateBatch(ctx context.Context, leads []*domain.Lead) error {
	if f.createBatchFn != nil {
		return f.createBatchFn(ctx, leads)
	}
	return nil
}

func (f *fakeLeadRepo) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLeadRepo) List(ctx context.Context, params repository.LeadListParams) ([]domain.Lead, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, 0, nil
}

func (f *fakeLeadRepo) ListSendableBySegment(ctx context.Context, segmentID string) ([]domain.Lead, error) {
	if f.listSendableBySegmentFn != nil {
		return f.listSendableBySegmentFn(ctx, segmentID)
	}
	return nil, nil
}

func (f *fakeLeadRepo) Count(ctx context.Context) (int64, error) {
	if f.countFn != nil {
		return f.countFn(ctx)
	}
	return 0, nil
}

func (f *fakeLeadRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeSegmentRepo struct {
	createFn              func(ctx context.Context, s *domain.Segment) error
	getByIDFn             func(ctx context.Context, id string) (*domain.Segment, error)
	listFn                func(ctx context.Context) ([]domain.Segment, error)
	renameFn              func(ctx context.Context, id string, name string) error
	deleteFn              func(ctx context.Context, id string) error
	findOrCreateByNamesFn func(ctx context.Context, names []string) (map[string]string, error)
}

func (f *fakeSegmentRepo) Create(ctx context.Context, s *domain.Segment) error {
	if f.createFn != nil {
		return f.createFn(ctx, s)
	}
	return nil
}

func (f *fakeSegmentRepo) GetByID(ctx context.Context, id string) (*domain.Segment, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return &domain.Segment{ID: id, Name: "segment"}, nil
}

func (f *fakeSegmentRepo) List(ctx context.Context) ([]domain.Segment, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

func (f *fakeSegmentRepo) Rename(ctx context.Context, id string, name string) error {
	if f.renameFn != nil {
		return f.renameFn(ctx, id, name)
	}
	return nil
}

func (f *fakeSegmentRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func (f *fakeSegmentRepo) FindOrCreateByNames(ctx context.Context, names []string) (map[string]string, error) {
	if f.findOrCreateByNamesFn != nil {
		return f.findOrCreateByNamesFn(ctx, names)
	}
	return map[string]string{}, nil
}

// memoryLedger enforces the (lead, step) uniqueness the database provides.
type memoryLedger struct {
	mu      sync.Mutex
	entries []domain.LedgerEntry
	listErr error
}

func (l *memoryLedger) Record(ctx context.Context, entry *domain.LedgerEntry) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.entries {
		if existing.LeadID == entry.LeadID && existing.StepID == entry.StepID {
			return false, nil
		}
	}
	l.entries = append(l.entries, *entry)
	return true, nil
}

func (l *memoryLedger) ListForLeadCampaign(ctx context.Context, leadID string, campaignID string) ([]domain.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listErr != nil {
		return nil, l.listErr
	}
	out := make([]domain.LedgerEntry, 0)
	for _, entry := range l.entries {
		if entry.LeadID == leadID && entry.CampaignID == campaignID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (l *memoryLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type memoryMessageLogs struct {
	mu      sync.Mutex
	logs    []domain.MessageLog
	statsFn func(ctx context.Context, filter repository.MessageStatsFilter) (domain.MessageStats, error)
}

func (m *memoryMessageLogs) Create(ctx context.Context, log *domain.MessageLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *log)
	return nil
}

func (m *memoryMessageLogs) GetByTrackingID(ctx context.Context, trackingID string) (*domain.MessageLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.logs {
		if m.logs[i].TrackingID != nil && *m.logs[i].TrackingID == trackingID {
			log := m.logs[i]
			return &log, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memoryMessageLogs) RecordOpen(ctx context.Context, trackingID string, openedAt time.Time) (*domain.MessageLog, error) {
	return nil, domain.ErrNotFound
}

func (m *memoryMessageLogs) Stats(ctx context.Context, filter repository.MessageStatsFilter) (domain.MessageStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, filter)
	}
	return domain.MessageStats{}, nil
}

func (m *memoryMessageLogs) all() []domain.MessageLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.MessageLog, len(m.logs))
	copy(out, m.logs)
	return out
}

type fakeMailboxRepo struct {
	getFn   func(ctx context.Context, id string) (*domain.MailboxCredential, error)
	saveFn  func(ctx context.Context, c *domain.MailboxCredential) error
	clearFn func(ctx context.Context, id string) error
}

func (f *fakeMailboxRepo) Get(ctx context.Context, id string) (*domain.MailboxCredential, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeMailboxRepo) Save(ctx context.Context, c *domain.MailboxCredential) error {
	if f.saveFn != nil {
		return f.saveFn(ctx, c)
	}
	return nil
}

func (f *fakeMailboxRepo) Clear(ctx context.Context, id string) error {
	if f.clearFn != nil {
		return f.clearFn(ctx, id)
	}
	return nil
}

type fakeGateway struct {
	mu     sync.Mutex
	sent   []gateway.OutboundMessage
	sendFn func(ctx context.Context, msg gateway.OutboundMessage) (*gateway.SendResult, error)
}

func (f *fakeGateway) Send(ctx context.Context, msg gateway.OutboundMessage) (*gateway.SendResult, error) {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return &gateway.SendResult{MessageID: "msg-1"}, nil
}

func (f *fakeGateway) calls() []gateway.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]gateway.OutboundMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, mailbox string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, mailbox string) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, mailbox string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, mailbox)
	}
	return nil
}

type fakeLocker struct {
	tryLockFn func(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

func (f *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	if f.tryLockFn != nil {
		return f.tryLockFn(ctx, key, ttl)
	}
	return func(context.Context) error { return nil }, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	sent   []domain.MessageLog
	failed []domain.MessageLog
}

func (n *recordingNotifier) MessageSent(ctx context.Context, log domain.MessageLog) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, log)
}

func (n *recordingNotifier) MessageFailed(ctx context.Context, log domain.MessageLog) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, log)
}

func newTestComposer(t *testing.T) *composer.Composer {
	t.Helper()
	c, err := composer.New("https://crm.example.com")
	if err != nil {
		t.Fatalf("composer.New() error = %v", err)
	}
	return c
}

func strPtr(s string) *string { return &s }
