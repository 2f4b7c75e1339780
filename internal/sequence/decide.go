// Package sequence decides which campaign step a lead should receive next.
package sequence

import (
	"time"

	"github.com/kursadbilgin/drip-engine/internal/domain"
)

// Decision is the outcome of evaluating one lead against one campaign.
// A nil Step means the lead has received every step.
type Decision struct {
	Step      *domain.SequenceStep
	DueNow    bool
	DueAt     time.Time
	Completed int
	Fallback  bool
}

// Exhausted reports whether there is nothing left to send.
func (d Decision) Exhausted() bool {
	return d.Step == nil
}

// Decide returns the next step for a lead given the campaign steps and the
// lead's ledger entries for that campaign. It has no side effects.
//
// The delay of the next step is measured from the most recent send of any
// step in the campaign. When an entry references a step that is no longer part
// of the campaign, progress is reconstructed from the number of distinct steps
// sent instead of from order indexes.
func Decide(steps []domain.SequenceStep, entries []domain.LedgerEntry, now time.Time) Decision {
	if len(steps) == 0 {
		return Decision{}
	}

	sorted := domain.SortSteps(steps)
	if len(entries) == 0 {
		first := sorted[0]
		return Decision{Step: &first, DueNow: true, DueAt: now}
	}

	byID := make(map[string]domain.SequenceStep, len(sorted))
	for _, step := range sorted {
		byID[step.ID] = step
	}

	sent := make(map[string]struct{}, len(entries))
	highest := -1
	stale := false
	var lastSentAt time.Time
	for _, entry := range entries {
		sent[entry.StepID] = struct{}{}
		if entry.SentAt.After(lastSentAt) {
			lastSentAt = entry.SentAt
		}

		step, ok := byID[entry.StepID]
		if !ok {
			stale = true
			continue
		}
		if step.OrderIndex > highest {
			highest = step.OrderIndex
		}
	}

	decision := Decision{Completed: len(sent), Fallback: stale}

	var next *domain.SequenceStep
	start := 0
	if stale {
		start = len(sent)
	}
	// Steps that still exist and were sent keep the lower bound even in
	// fallback mode, so a step is never offered twice.
	for i := start; i < len(sorted); i++ {
		if sorted[i].OrderIndex > highest {
			step := sorted[i]
			next = &step
			break
		}
	}

	if next == nil {
		return decision
	}

	decision.Step = next
	decision.DueAt = lastSentAt.Add(next.Delay())
	decision.DueNow = !now.Before(decision.DueAt)
	return decision
}
