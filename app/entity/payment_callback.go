package entity

import "time"

const (
	PaymentCallbackProcessed int32 = 10
	PaymentCallbackRejected  int32 = 20
)

type PaymentCallback struct {
	ID uint64

	PaymentID *string

	PaymentMethod string
	HTTPMethod    string
	PayloadJSON   string
	Status        int32
	Error         *string

	CreatedAt time.Time
}
