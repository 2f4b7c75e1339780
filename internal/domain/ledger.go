package domain

import "time"

// LedgerEntry records that a lead was sent a sequence step. Entries are never
// mutated; at most one exists per (lead, step).
type LedgerEntry struct {
	ID         string
	LeadID     string
	StepID     string
	CampaignID string
	SentAt     time.Time
}
