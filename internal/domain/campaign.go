package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	MaxStepsPerCampaign = 50
	MaxStepDelayDays    = 365
)

// Campaign is a drip email definition bound to at most one segment.
type Campaign struct {
	ID        string
	Name      string
	SegmentID *string
	Steps     []SequenceStep
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the campaign has an audience and something to send.
func (c *Campaign) Active() bool {
	return c != nil && c.SegmentID != nil && *c.SegmentID != "" && len(c.Steps) > 0
}

// SequenceStep is one ordered email template within a campaign.
type SequenceStep struct {
	ID         string
	CampaignID string
	OrderIndex int
	DelayDays  int
	Subject    string
	Body       string
	CreatedAt  time.Time
}

// Delay returns the step delay with day precision.
func (s SequenceStep) Delay() time.Duration {
	return time.Duration(s.DelayDays) * 24 * time.Hour
}

func (c *Campaign) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: campaign is required", ErrValidation)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: campaign name is required", ErrValidation)
	}
	if len(c.Steps) > MaxStepsPerCampaign {
		return fmt.Errorf("%w: campaign exceeds %d steps (got %d)", ErrValidation, MaxStepsPerCampaign, len(c.Steps))
	}

	seen := make(map[int]struct{}, len(c.Steps))
	for i := range c.Steps {
		step := c.Steps[i]
		if step.OrderIndex < 0 {
			return fmt.Errorf("%w: step order index must be non-negative (got %d)", ErrValidation, step.OrderIndex)
		}
		if _, dup := seen[step.OrderIndex]; dup {
			return fmt.Errorf("%w: duplicate step order index %d", ErrValidation, step.OrderIndex)
		}
		seen[step.OrderIndex] = struct{}{}

		if step.DelayDays < 0 || step.DelayDays > MaxStepDelayDays {
			return fmt.Errorf("%w: step %d delay must be between 0 and %d days", ErrValidation, step.OrderIndex, MaxStepDelayDays)
		}
		if strings.TrimSpace(step.Subject) == "" {
			return fmt.Errorf("%w: step %d subject is required", ErrValidation, step.OrderIndex)
		}
		if strings.TrimSpace(step.Body) == "" {
			return fmt.Errorf("%w: step %d body is required", ErrValidation, step.OrderIndex)
		}
	}

	return nil
}

// SortSteps returns a copy of steps ordered ascending by OrderIndex.
func SortSteps(steps []SequenceStep) []SequenceStep {
	sorted := make([]SequenceStep, len(steps))
	copy(sorted, steps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OrderIndex < sorted[j].OrderIndex
	})
	return sorted
}
