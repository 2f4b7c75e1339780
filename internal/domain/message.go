package domain

import (
	"fmt"
	"strings"
	"time"
)

// MessageStatus is the delivery outcome of an outbound message.
type MessageStatus string

const (
	MessageStatusSent   MessageStatus = "SENT"
	MessageStatusFailed MessageStatus = "FAILED"
)

func (s MessageStatus) String() string { return string(s) }

func (s MessageStatus) IsValid() bool {
	switch s {
	case MessageStatusSent, MessageStatusFailed:
		return true
	}
	return false
}

// MessageType identifies the send path that produced a message.
type MessageType string

const (
	MessageTypeCampaign MessageType = "CAMPAIGN"
	MessageTypeBulk     MessageType = "BULK"
	MessageTypeSingle   MessageType = "SINGLE"
)

func (t MessageType) String() string { return string(t) }

func (t MessageType) IsValid() bool {
	switch t {
	case MessageTypeCampaign, MessageTypeBulk, MessageTypeSingle:
		return true
	}
	return false
}

func ParseMessageTypeFromString(s string) (MessageType, error) {
	mt := MessageType(strings.ToUpper(strings.TrimSpace(s)))
	if !mt.IsValid() {
		return "", fmt.Errorf("%w: invalid message type %q", ErrValidation, s)
	}
	return mt, nil
}

// MessageLog records a delivery attempt and, when tracked, its open activity.
type MessageLog struct {
	ID             string
	TrackingID     *string
	RecipientEmail string
	Subject        string
	Content        string
	Status         MessageStatus
	Type           MessageType
	Error          *string
	LeadID         *string
	CampaignID     *string
	StepID         *string
	Opened         bool
	OpenCount      int
	OpenedAt       *time.Time
	CreatedAt      time.Time
}

// MessageStats aggregates message logs for reporting.
type MessageStats struct {
	Total      int64
	Sent       int64
	Failed     int64
	Opened     int64
	TotalOpens int64
}

// OpenRate is the percentage of sent messages opened at least once.
func (s MessageStats) OpenRate() float64 {
	if s.Sent == 0 {
		return 0
	}
	return float64(s.Opened) / float64(s.Sent) * 100
}
