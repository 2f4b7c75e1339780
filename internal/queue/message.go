package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/drip-engine/internal/domain"
)

// DeliveryEvent is the broker payload describing one message log change.
type DeliveryEvent struct {
	Type           EventType          `json:"type"`
	MessageLogID   string             `json:"messageLogId"`
	MessageType    domain.MessageType `json:"messageType"`
	RecipientEmail string             `json:"recipientEmail"`
	TrackingID     *string            `json:"trackingId,omitempty"`
	LeadID         *string            `json:"leadId,omitempty"`
	CampaignID     *string            `json:"campaignId,omitempty"`
	StepID         *string            `json:"stepId,omitempty"`
	Error          *string            `json:"error,omitempty"`
	OpenCount      int                `json:"openCount,omitempty"`
	RunID          string             `json:"runId,omitempty"`
	OccurredAt     time.Time          `json:"occurredAt"`
}

// NewDeliveryEvent builds an event of type t from a message log entry.
func NewDeliveryEvent(t EventType, log domain.MessageLog, occurredAt time.Time) DeliveryEvent {
	return DeliveryEvent{
		Type:           t,
		MessageLogID:   log.ID,
		MessageType:    log.Type,
		RecipientEmail: log.RecipientEmail,
		TrackingID:     log.TrackingID,
		LeadID:         log.LeadID,
		CampaignID:     log.CampaignID,
		StepID:         log.StepID,
		Error:          log.Error,
		OpenCount:      log.OpenCount,
		OccurredAt:     occurredAt.UTC(),
	}
}

func (e DeliveryEvent) Validate() error {
	if !e.Type.IsValid() {
		return fmt.Errorf("invalid event type %q", e.Type)
	}
	if strings.TrimSpace(e.MessageLogID) == "" {
		return fmt.Errorf("messageLogId is required")
	}
	if !e.MessageType.IsValid() {
		return fmt.Errorf("invalid message type %q", e.MessageType)
	}
	return nil
}
