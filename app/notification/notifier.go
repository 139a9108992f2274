package notification

import (
	"context"
	"errors"
)

const (
	TypeDonationSucceeded    = "donation_succeeded"
	TypeDonationFailed       = "donation_failed"
	TypeCampaignGoalAchieved = "campaign_goal_achieved"
)

var ErrUnknownNotificationType = errors.New("unknown notification type")

// Notifier delivers a notification of the given type to receiver.
type Notifier interface {
	Send(ctx context.Context, receiver, notificationType string, params map[string]any) error
}
