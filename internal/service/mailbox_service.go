package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kursadbilgin/drip-engine/internal/domain"
	"github.com/kursadbilgin/drip-engine/internal/repository"
	"go.uber.org/zap"
)

// CredentialChecker verifies stored mailbox credentials against the provider.
type CredentialChecker interface {
	CredentialsValid(ctx context.Context) (bool, error)
}

type MailboxStatus struct {
	MailboxID        string     `json:"mailboxId"`
	Address          string     `json:"address,omitempty"`
	Connected        bool       `json:"connected"`
	CredentialsValid bool       `json:"credentialsValid"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
}

// MailboxTokens are OAuth tokens obtained outside the engine.
type MailboxTokens struct {
	Address      string
	AccessToken  string
	RefreshToken string
	Expiry       *time.Time
}

type MailboxService struct {
	mailboxes repository.MailboxRepository
	checker   CredentialChecker
	mailboxID string
	logger    *zap.Logger
	now       func() time.Time
}

// NewMailboxService manages the single sending mailbox. checker may be nil
// for gateways without stored credentials.
func NewMailboxService(
	mailboxes repository.MailboxRepository,
	checker CredentialChecker,
	mailboxID string,
	logger *zap.Logger,
) (*MailboxService, error) {
	if mailboxes == nil {
		return nil, errors.New("mailbox repository is required")
	}
	if strings.TrimSpace(mailboxID) == "" {
		mailboxID = "default"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MailboxService{
		mailboxes: mailboxes,
		checker:   checker,
		mailboxID: mailboxID,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *MailboxService) Status(ctx context.Context) (MailboxStatus, error) {
	status := MailboxStatus{MailboxID: s.mailboxID}

	credential, err := s.mailboxes.Get(ctx, s.mailboxID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return status, err
	}
	if !credential.Connected() {
		return status, nil
	}

	updatedAt := credential.UpdatedAt
	status.Address = credential.Address
	status.Connected = true
	status.UpdatedAt = &updatedAt

	if s.checker == nil {
		status.CredentialsValid = true
		return status, nil
	}

	valid, err := s.checker.CredentialsValid(ctx)
	if err != nil {
		s.logger.Warn("mailbox credential check failed", zap.String("mailboxId", s.mailboxID), zap.Error(err))
	}
	status.CredentialsValid = valid
	return status, nil
}

func (s *MailboxService) Connect(ctx context.Context, tokens MailboxTokens) (MailboxStatus, error) {
	credential := &domain.MailboxCredential{
		ID:           s.mailboxID,
		Address:      strings.TrimSpace(tokens.Address),
		AccessToken:  strings.TrimSpace(tokens.AccessToken),
		RefreshToken: optional(tokens.RefreshToken),
		TokenExpiry:  tokens.Expiry,
		UpdatedAt:    s.now().UTC(),
	}
	if err := credential.Validate(); err != nil {
		return MailboxStatus{}, err
	}
	if err := s.mailboxes.Save(ctx, credential); err != nil {
		return MailboxStatus{}, err
	}

	s.logger.Info("mailbox connected", zap.String("mailboxId", s.mailboxID), zap.String("address", credential.Address))
	return s.Status(ctx)
}

func (s *MailboxService) Disconnect(ctx context.Context) error {
	if err := s.mailboxes.Clear(ctx, s.mailboxID); err != nil {
		return err
	}
	s.logger.Info("mailbox disconnected", zap.String("mailboxId", s.mailboxID))
	return nil
}
