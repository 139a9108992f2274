package entity

import "time"

type PaymentEvent struct {
	ID uint64

	PaymentID string

	EventType string

	OldStatus *PaymentStatus
	NewStatus PaymentStatus

	PayloadJSON *string

	CreatedAt time.Time
}
