package domain

import (
	"fmt"
	"strings"
	"time"
)

// MailboxCredential holds the persisted OAuth tokens of the connected sending
// mailbox. A fresh credential is read on every gateway call.
type MailboxCredential struct {
	ID           string
	Address      string
	AccessToken  string
	RefreshToken *string
	TokenExpiry  *time.Time
	UpdatedAt    time.Time
}

// Connected reports whether an access token is present.
func (m *MailboxCredential) Connected() bool {
	return m != nil && strings.TrimSpace(m.AccessToken) != ""
}

func (m *MailboxCredential) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: mailbox credential is required", ErrValidation)
	}
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: mailbox id is required", ErrValidation)
	}
	if strings.TrimSpace(m.AccessToken) == "" {
		return fmt.Errorf("%w: access token is required", ErrValidation)
	}
	return nil
}
