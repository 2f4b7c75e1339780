package repository

import (
	"time"

	"github.com/kursadbilgin/drip-engine/internal/domain"
)

// LeadModel is the persistence model for the leads table.
type LeadModel struct {
	ID         string  `gorm:"type:uuid;primaryKey"`
	Name       string  `gorm:"type:varchar(255);not null"`
	Email      *string `gorm:"type:varchar(320)"`
	Phone      *string `gorm:"type:varchar(64)"`
	Website    *string `gorm:"type:text"`
	MapsLink   *string `gorm:"type:text"`
	SearchTerm *string `gorm:"type:varchar(255)"`
	SegmentID  *string `gorm:"type:uuid;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (LeadModel) TableName() string {
	return "leads"
}

type SegmentModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SegmentModel) TableName() string {
	return "segments"
}

type CampaignModel struct {
	ID        string  `gorm:"type:uuid;primaryKey"`
	Name      string  `gorm:"type:varchar(255);not null"`
	SegmentID *string `gorm:"type:uuid;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CampaignModel) TableName() string {
	return "campaigns"
}

// SequenceStepModel is a campaign step; order_index is unique per campaign.
type SequenceStepModel struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	CampaignID string `gorm:"type:uuid;not null;uniqueIndex:idx_sequence_steps_campaign_order,priority:1"`
	OrderIndex int    `gorm:"not null;uniqueIndex:idx_sequence_steps_campaign_order,priority:2"`
	DelayDays  int    `gorm:"not null;default:0"`
	Subject    string `gorm:"type:text;not null"`
	Body       string `gorm:"type:text;not null"`
	CreatedAt  time.Time
}

func (SequenceStepModel) TableName() string {
	return "sequence_steps"
}

// LedgerEntryModel holds one row per (lead, step) send. The unique index is
// what keeps concurrent passes from recording a step twice.
type LedgerEntryModel struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	LeadID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_entries_lead_step,priority:1"`
	StepID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_entries_lead_step,priority:2"`
	CampaignID string    `gorm:"type:uuid;not null;index"`
	SentAt     time.Time `gorm:"type:timestamptz;not null"`
}

func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

type MessageLogModel struct {
	ID             string               `gorm:"type:uuid;primaryKey"`
	TrackingID     *string              `gorm:"type:varchar(64);uniqueIndex"`
	RecipientEmail string               `gorm:"type:varchar(320);not null;index"`
	Subject        string               `gorm:"type:text;not null"`
	Content        string               `gorm:"type:text;not null"`
	Status         domain.MessageStatus `gorm:"type:varchar(10);not null"`
	Type           domain.MessageType   `gorm:"type:varchar(10);not null;index"`
	Error          *string              `gorm:"type:text"`
	LeadID         *string              `gorm:"type:uuid;index"`
	CampaignID     *string              `gorm:"type:uuid;index"`
	StepID         *string              `gorm:"type:uuid"`
	Opened         bool                 `gorm:"not null;default:false"`
	OpenCount      int                  `gorm:"not null;default:0"`
	OpenedAt       *time.Time           `gorm:"type:timestamptz"`
	CreatedAt      time.Time
}

func (MessageLogModel) TableName() string {
	return "message_logs"
}

type MailboxCredentialModel struct {
	ID           string     `gorm:"type:varchar(64);primaryKey"`
	Address      string     `gorm:"type:varchar(320)"`
	AccessToken  string     `gorm:"type:text;not null"`
	RefreshToken *string    `gorm:"type:text"`
	TokenExpiry  *time.Time `gorm:"type:timestamptz"`
	UpdatedAt    time.Time
}

func (MailboxCredentialModel) TableName() string {
	return "mailbox_credentials"
}

func leadModelFromDomain(l *domain.Lead) *LeadModel {
	if l == nil {
		return nil
	}

	return &LeadModel{
		ID:         l.ID,
		Name:       l.Name,
		Email:      l.Email,
		Phone:      l.Phone,
		Website:    l.Website,
		MapsLink:   l.MapsLink,
		SearchTerm: l.SearchTerm,
		SegmentID:  l.SegmentID,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}

func leadModelToDomain(m *LeadModel) *domain.Lead {
	if m == nil {
		return nil
	}

	return &domain.Lead{
		ID:         m.ID,
		Name:       m.Name,
		Email:      m.Email,
		Phone:      m.Phone,
		Website:    m.Website,
		MapsLink:   m.MapsLink,
		SearchTerm: m.SearchTerm,
		SegmentID:  m.SegmentID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func segmentModelToDomain(m *SegmentModel) *domain.Segment {
	if m == nil {
		return nil
	}
	return &domain.Segment{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func campaignModelFromDomain(c *domain.Campaign) *CampaignModel {
	if c == nil {
		return nil
	}
	return &CampaignModel{
		ID:        c.ID,
		Name:      c.Name,
		SegmentID: c.SegmentID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func campaignModelToDomain(m *CampaignModel, steps []SequenceStepModel) *domain.Campaign {
	if m == nil {
		return nil
	}

	campaign := &domain.Campaign{
		ID:        m.ID,
		Name:      m.Name,
		SegmentID: m.SegmentID,
		Steps:     make([]domain.SequenceStep, 0, len(steps)),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	for i := range steps {
		campaign.Steps = append(campaign.Steps, stepModelToDomain(&steps[i]))
	}
	campaign.Steps = domain.SortSteps(campaign.Steps)
	return campaign
}

func stepModelFromDomain(campaignID string, s domain.SequenceStep) SequenceStepModel {
	return SequenceStepModel{
		ID:         s.ID,
		CampaignID: campaignID,
		OrderIndex: s.OrderIndex,
		DelayDays:  s.DelayDays,
		Subject:    s.Subject,
		Body:       s.Body,
		CreatedAt:  s.CreatedAt,
	}
}

func stepModelToDomain(m *SequenceStepModel) domain.SequenceStep {
	return domain.SequenceStep{
		ID:         m.ID,
		CampaignID: m.CampaignID,
		OrderIndex: m.OrderIndex,
		DelayDays:  m.DelayDays,
		Subject:    m.Subject,
		Body:       m.Body,
		CreatedAt:  m.CreatedAt,
	}
}

func ledgerModelToDomain(m *LedgerEntryModel) domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:         m.ID,
		LeadID:     m.LeadID,
		StepID:     m.StepID,
		CampaignID: m.CampaignID,
		SentAt:     m.SentAt,
	}
}

func messageLogModelFromDomain(l *domain.MessageLog) *MessageLogModel {
	if l == nil {
		return nil
	}

	return &MessageLogModel{
		ID:             l.ID,
		TrackingID:     l.TrackingID,
		RecipientEmail: l.RecipientEmail,
		Subject:        l.Subject,
		Content:        l.Content,
		Status:         l.Status,
		Type:           l.Type,
		Error:          l.Error,
		LeadID:         l.LeadID,
		CampaignID:     l.CampaignID,
		StepID:         l.StepID,
		Opened:         l.Opened,
		OpenCount:      l.OpenCount,
		OpenedAt:       l.OpenedAt,
		CreatedAt:      l.CreatedAt,
	}
}

func messageLogModelToDomain(m *MessageLogModel) *domain.MessageLog {
	if m == nil {
		return nil
	}

	return &domain.MessageLog{
		ID:             m.ID,
		TrackingID:     m.TrackingID,
		RecipientEmail: m.RecipientEmail,
		Subject:        m.Subject,
		Content:        m.Content,
		Status:         m.Status,
		Type:           m.Type,
		Error:          m.Error,
		LeadID:         m.LeadID,
		CampaignID:     m.CampaignID,
		StepID:         m.StepID,
		Opened:         m.Opened,
		OpenCount:      m.OpenCount,
		OpenedAt:       m.OpenedAt,
		CreatedAt:      m.CreatedAt,
	}
}

func mailboxModelFromDomain(c *domain.MailboxCredential) *MailboxCredentialModel {
	if c == nil {
		return nil
	}
	return &MailboxCredentialModel{
		ID:           c.ID,
		Address:      c.Address,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenExpiry:  c.TokenExpiry,
		UpdatedAt:    c.UpdatedAt,
	}
}

func mailboxModelToDomain(m *MailboxCredentialModel) *domain.MailboxCredential {
	if m == nil {
		return nil
	}
	return &domain.MailboxCredential{
		ID:           m.ID,
		Address:      m.Address,
		AccessToken:  m.AccessToken,
		RefreshToken: m.RefreshToken,
		TokenExpiry:  m.TokenExpiry,
		UpdatedAt:    m.UpdatedAt,
	}
}
