package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

type Campaign struct {
	ID uint64

	Title      string
	OwnerID    uint64
	OwnerEmail string

	GoalAmount    decimal.Decimal
	CurrentAmount decimal.Decimal
	Status        CampaignStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Campaign) AcceptsDonations() bool {
	return c.Status == CampaignStatusActive
}

// GoalAchieved reports whether amount meets the goal. A zero goal is never achieved.
func GoalAchieved(amount, goal decimal.Decimal) bool {
	return goal.IsPositive() && amount.GreaterThanOrEqual(goal)
}

// AmountRecalculation is the outcome of recomputing a campaign's current amount
// from its successful donations.
type AmountRecalculation struct {
	CampaignID     uint64
	GoalAmount     decimal.Decimal
	PreviousAmount decimal.Decimal
	CurrentAmount  decimal.Decimal
}

func (r *AmountRecalculation) GoalNewlyAchieved() bool {
	return !GoalAchieved(r.PreviousAmount, r.GoalAmount) && GoalAchieved(r.CurrentAmount, r.GoalAmount)
}
