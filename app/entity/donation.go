package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type DonationStatus string

const (
	DonationStatusPending DonationStatus = "pending"
	DonationStatusSuccess DonationStatus = "success"
	DonationStatusFailed  DonationStatus = "failed"
)

type Donation struct {
	ID uint64

	CampaignID uint64
	UserID     uint64
	DonorEmail string

	Amount       decimal.Decimal
	Status       DonationStatus
	ErrorMessage *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
