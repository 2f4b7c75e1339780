package domain

import (
	"fmt"
	"strings"
	"time"
)

// Segment is a named group of leads used to select campaign membership.
type Segment struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Segment) Validate() error {
	if s == nil || strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: segment name is required", ErrValidation)
	}
	return nil
}
