package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EmailActionType identifies what kind of recovery email action a row records.
type EmailActionType string

const (
	EmailActionSent EmailActionType = "email_sent"
)

// EmailAction is one recovery email sent for a webhook event.
// Opened, Clicked and Converted only ever move from false to true.
// Click tracking is independent of the open pixel, so Clicked does not imply Opened.
type EmailAction struct {
	ID             string          `json:"id"`
	WebhookEventID string          `json:"webhook_event_id"`
	ActionType     EmailActionType `json:"action_type"`
	CreatedAt      time.Time       `json:"created_at"`
	SentAt         *time.Time      `json:"sent_at,omitempty"`

	Opened      bool       `json:"opened"`
	OpenedAt    *time.Time `json:"opened_at,omitempty"`
	Clicked     bool       `json:"clicked"`
	ClickedAt   *time.Time `json:"clicked_at,omitempty"`
	Converted   bool       `json:"converted"`
	ConvertedAt *time.Time `json:"converted_at,omitempty"`

	// ConversionValue is present only when Converted is true.
	ConversionValue decimal.NullDecimal `json:"conversion_value"`
}
