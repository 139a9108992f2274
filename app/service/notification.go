package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/factory"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/notification"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/queue"
)

type NotificationService struct {
	payments  paymentRepository
	donations donationRepository
	campaigns campaignRepository
	notifier  notification.Notifier
	logger    logrus.FieldLogger
}

func NewNotificationService(
	payments paymentRepository,
	donations donationRepository,
	campaigns campaignRepository,
	notifier notification.Notifier,
) *NotificationService {
	return &NotificationService{
		payments:  payments,
		donations: donations,
		campaigns: campaigns,
		notifier:  notifier,
		logger:    factory.NewModuleLogger("notification-service"),
	}
}

func (s *NotificationService) HandlePaymentStatusJob(ctx context.Context, job *queue.Job) error {
	payload := PaymentStatusNotificationPayload{}
	if err := job.Decode(&payload); err != nil {
		return queue.Permanent(fmt.Errorf("decode payload: %w", err))
	}

	var notificationType string
	switch entity.DonationStatus(payload.Status) {
	case entity.DonationStatusSuccess:
		notificationType = notification.TypeDonationSucceeded
	case entity.DonationStatusFailed:
		notificationType = notification.TypeDonationFailed
	default:
		return queue.Permanent(fmt.Errorf("%w: no notification for status %q", ErrInvalidRequest, payload.Status))
	}

	donation, err := s.donations.FindByID(ctx, payload.DonationID)
	if err != nil {
		return err
	}
	if donation == nil {
		return queue.Permanent(fmt.Errorf("%w: %d", ErrDonationNotFound, payload.DonationID))
	}

	logger := s.logger.WithFields(logrus.Fields{
		"donation_id": donation.ID,
		"payment_id":  payload.PaymentID,
	})
	if strings.TrimSpace(donation.DonorEmail) == "" {
		logger.Warn("donation_notification_skipped_no_email")
		return nil
	}

	params := map[string]any{
		"payment_id":  payload.PaymentID,
		"donation_id": donation.ID,
		"campaign_id": donation.CampaignID,
		"amount":      donation.Amount.StringFixed(2),
	}
	if payment, err := s.payments.FindByID(ctx, payload.PaymentID); err == nil && payment != nil {
		params["currency"] = payment.Currency
	}
	if payload.ErrorMessage != "" {
		params["error_message"] = payload.ErrorMessage
	}

	return s.notifier.Send(ctx, donation.DonorEmail, notificationType, params)
}

func (s *NotificationService) HandleGoalAchievedJob(ctx context.Context, job *queue.Job) error {
	payload := CampaignGoalAchievedPayload{}
	if err := job.Decode(&payload); err != nil {
		return queue.Permanent(fmt.Errorf("decode payload: %w", err))
	}

	campaign, err := s.campaigns.FindByID(ctx, payload.CampaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		return queue.Permanent(fmt.Errorf("%w: %d", ErrCampaignNotFound, payload.CampaignID))
	}
	if strings.TrimSpace(campaign.OwnerEmail) == "" {
		s.logger.WithField("campaign_id", campaign.ID).Warn("goal_notification_skipped_no_email")
		return nil
	}

	return s.notifier.Send(ctx, campaign.OwnerEmail, notification.TypeCampaignGoalAchieved, map[string]any{
		"campaign_id":     campaign.ID,
		"title":           campaign.Title,
		"previous_amount": payload.PreviousAmount,
		"current_amount":  payload.CurrentAmount,
		"goal_amount":     payload.GoalAmount,
	})
}
