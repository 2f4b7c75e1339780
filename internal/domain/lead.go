package domain

import (
	"fmt"
	"strings"
	"time"
)

// Lead is a single CRM contact.
type Lead struct {
	ID         string
	Name       string
	Email      *string
	Phone      *string
	Website    *string
	MapsLink   *string
	SearchTerm *string
	SegmentID  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Sendable reports whether the lead has an address the engine can deliver to.
func (l *Lead) Sendable() bool {
	return l != nil && l.Email != nil && strings.TrimSpace(*l.Email) != ""
}

// Fields returns the lead attributes addressable from templates, keyed by
// placeholder name. Absent attributes are omitted.
func (l *Lead) Fields() map[string]string {
	fields := make(map[string]string, 7)
	if l == nil {
		return fields
	}

	fields["id"] = l.ID
	if l.Name != "" {
		fields["name"] = l.Name
	}

	optional := map[string]*string{
		"email":      l.Email,
		"phone":      l.Phone,
		"website":    l.Website,
		"mapsLink":   l.MapsLink,
		"searchTerm": l.SearchTerm,
	}
	for key, value := range optional {
		if value != nil && *value != "" {
			fields[key] = *value
		}
	}

	return fields
}

func (l *Lead) Validate() error {
	if l == nil {
		return fmt.Errorf("%w: lead is required", ErrValidation)
	}
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("%w: lead name is required", ErrValidation)
	}
	return nil
}
