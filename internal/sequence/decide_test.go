package sequence

import (
	"testing"
	"time"

	"github.com/kursadbilgin/drip-engine/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func threeSteps() []domain.SequenceStep {
	return []domain.SequenceStep{
		{ID: "s2", CampaignID: "c1", OrderIndex: 2, DelayDays: 5, Subject: "third", Body: "b"},
		{ID: "s0", CampaignID: "c1", OrderIndex: 0, DelayDays: 0, Subject: "first", Body: "b"},
		{ID: "s1", CampaignID: "c1", OrderIndex: 1, DelayDays: 3, Subject: "second", Body: "b"},
	}
}

func sentAt(stepID string, at time.Time) domain.LedgerEntry {
	return domain.LedgerEntry{LeadID: "l1", StepID: stepID, CampaignID: "c1", SentAt: at}
}

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		steps        []domain.SequenceStep
		entries      []domain.LedgerEntry
		now          time.Time
		wantStepID   string
		wantDue      bool
		wantDueAt    time.Time
		wantFallback bool
	}{
		{
			name:  "no steps",
			steps: nil,
			now:   t0,
		},
		{
			name:       "new lead gets first step immediately",
			steps:      threeSteps(),
			now:        t0,
			wantStepID: "s0",
			wantDue:    true,
			wantDueAt:  t0,
		},
		{
			name:       "first step with delay is still immediate",
			steps:      []domain.SequenceStep{{ID: "a", OrderIndex: 0, DelayDays: 7}},
			now:        t0,
			wantStepID: "a",
			wantDue:    true,
			wantDueAt:  t0,
		},
		{
			name:       "delay not elapsed",
			steps:      threeSteps(),
			entries:    []domain.LedgerEntry{sentAt("s0", t0)},
			now:        t0.Add(72*time.Hour - time.Second),
			wantStepID: "s1",
			wantDue:    false,
			wantDueAt:  t0.Add(72 * time.Hour),
		},
		{
			name:       "delay elapsed exactly",
			steps:      threeSteps(),
			entries:    []domain.LedgerEntry{sentAt("s0", t0)},
			now:        t0.Add(72 * time.Hour),
			wantStepID: "s1",
			wantDue:    true,
			wantDueAt:  t0.Add(72 * time.Hour),
		},
		{
			name:  "delay measured from most recent send",
			steps: threeSteps(),
			entries: []domain.LedgerEntry{
				sentAt("s1", t0.Add(10*24*time.Hour)),
				sentAt("s0", t0),
			},
			now:        t0.Add(14 * 24 * time.Hour),
			wantStepID: "s2",
			wantDue:    false,
			wantDueAt:  t0.Add(15 * 24 * time.Hour),
		},
		{
			name:  "gap in order indexes skips to next higher",
			steps: []domain.SequenceStep{{ID: "a", OrderIndex: 0}, {ID: "b", OrderIndex: 5, DelayDays: 1}},
			entries: []domain.LedgerEntry{
				sentAt("a", t0),
			},
			now:        t0.Add(25 * time.Hour),
			wantStepID: "b",
			wantDue:    true,
			wantDueAt:  t0.Add(24 * time.Hour),
		},
		{
			name:  "all steps sent",
			steps: threeSteps(),
			entries: []domain.LedgerEntry{
				sentAt("s0", t0),
				sentAt("s1", t0.Add(72*time.Hour)),
				sentAt("s2", t0.Add(192*time.Hour)),
			},
			now: t0.Add(1000 * 24 * time.Hour),
		},
		{
			name:  "stale references fall back to ordinal count",
			steps: threeSteps(),
			entries: []domain.LedgerEntry{
				sentAt("old-a", t0),
				sentAt("old-b", t0.Add(24*time.Hour)),
			},
			now:          t0.Add(10 * 24 * time.Hour),
			wantStepID:   "s2",
			wantDue:      true,
			wantDueAt:    t0.Add(6 * 24 * time.Hour),
			wantFallback: true,
		},
		{
			name:  "stale references beyond new step count are exhausted",
			steps: []domain.SequenceStep{{ID: "n0", OrderIndex: 0}},
			entries: []domain.LedgerEntry{
				sentAt("old-a", t0),
				sentAt("old-b", t0),
			},
			now:          t0,
			wantFallback: true,
		},
		{
			name:  "fallback never repeats a surviving sent step",
			steps: threeSteps(),
			entries: []domain.LedgerEntry{
				sentAt("old-a", t0),
				sentAt("s2", t0.Add(24*time.Hour)),
			},
			now:          t0.Add(30 * 24 * time.Hour),
			wantFallback: true,
		},
		{
			name:  "duplicate entries for the same step count once",
			steps: threeSteps(),
			entries: []domain.LedgerEntry{
				sentAt("gone", t0),
				sentAt("gone", t0),
			},
			now:          t0.Add(4 * 24 * time.Hour),
			wantStepID:   "s1",
			wantDue:      true,
			wantDueAt:    t0.Add(3 * 24 * time.Hour),
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Decide(tt.steps, tt.entries, tt.now)

			if tt.wantStepID == "" {
				if !got.Exhausted() {
					t.Fatalf("Decide() step = %s, want none", got.Step.ID)
				}
				if got.DueNow {
					t.Fatal("Decide() DueNow = true for exhausted sequence")
				}
			} else {
				if got.Exhausted() {
					t.Fatalf("Decide() step = none, want %s", tt.wantStepID)
				}
				if got.Step.ID != tt.wantStepID {
					t.Fatalf("Decide() step = %s, want %s", got.Step.ID, tt.wantStepID)
				}
				if got.DueNow != tt.wantDue {
					t.Fatalf("Decide() DueNow = %v, want %v", got.DueNow, tt.wantDue)
				}
				if !got.DueAt.Equal(tt.wantDueAt) {
					t.Fatalf("Decide() DueAt = %s, want %s", got.DueAt, tt.wantDueAt)
				}
			}
			if got.Fallback != tt.wantFallback {
				t.Fatalf("Decide() Fallback = %v, want %v", got.Fallback, tt.wantFallback)
			}
		})
	}
}

func TestDecideNeverGoesBackwards(t *testing.T) {
	t.Parallel()

	steps := threeSteps()
	var entries []domain.LedgerEntry
	now := t0
	highest := -1

	for i := 0; i < 10; i++ {
		d := Decide(steps, entries, now)
		if d.Exhausted() {
			if len(entries) != len(steps) {
				t.Fatalf("exhausted after %d sends, want %d", len(entries), len(steps))
			}
			return
		}
		if d.Step.OrderIndex <= highest {
			t.Fatalf("step %d offered after step %d was sent", d.Step.OrderIndex, highest)
		}
		if !d.DueNow {
			now = d.DueAt
			continue
		}
		entries = append(entries, sentAt(d.Step.ID, now))
		highest = d.Step.OrderIndex
	}

	t.Fatal("sequence did not finish")
}

func TestDecideExhaustedIndefinitely(t *testing.T) {
	t.Parallel()

	entries := []domain.LedgerEntry{sentAt("s0", t0), sentAt("s1", t0), sentAt("s2", t0)}
	for _, offset := range []time.Duration{0, time.Hour, 24 * 365 * time.Hour} {
		d := Decide(threeSteps(), entries, t0.Add(offset))
		if !d.Exhausted() || d.DueNow {
			t.Fatalf("Decide() at +%s = %+v, want exhausted", offset, d)
		}
		if d.Completed != 3 {
			t.Fatalf("Completed = %d, want 3", d.Completed)
		}
	}
}
