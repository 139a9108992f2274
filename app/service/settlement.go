package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/queue"
)

type donationRepository interface {
	Create(ctx context.Context, donation *entity.Donation) error
	FindByID(ctx context.Context, id uint64) (*entity.Donation, error)
	UpdateStatus(ctx context.Context, id uint64, status entity.DonationStatus, errorMessage *string, now time.Time) (bool, error)
}

type RecalculateCampaignPayload struct {
	CampaignID uint64 `json:"campaign_id"`
}

type PaymentStatusNotificationPayload struct {
	PaymentID    string `json:"payment_id"`
	DonationID   uint64 `json:"donation_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// donationSettler mirrors a payment outcome onto its donation and schedules
// the follow-up jobs. It is the only place that changes a donation's status
// after creation.
type donationSettler struct {
	donations donationRepository
	jobs      queue.Enqueuer
	logger    logrus.FieldLogger
	now       func() time.Time
}

func (s *donationSettler) settle(ctx context.Context, payment *entity.Payment) error {
	donation, err := s.donations.FindByID(ctx, payment.DonationID)
	if err != nil {
		return err
	}
	if donation == nil {
		return fmt.Errorf("%w: %d", ErrDonationNotFound, payment.DonationID)
	}

	logger := s.logger.WithFields(logrus.Fields{
		"payment_id":  payment.ID,
		"donation_id": donation.ID,
		"campaign_id": donation.CampaignID,
	})

	var status entity.DonationStatus
	var message *string
	switch payment.Status {
	case entity.PaymentStatusCompleted:
		status = entity.DonationStatusSuccess
	case entity.PaymentStatusFailed:
		status = entity.DonationStatusFailed
		message = payment.ErrorMessage
	}

	if status != "" && donation.Status == status {
		logger.WithField("donation_status", string(status)).Debug("donation_already_settled")
		return nil
	}

	notify := false
	if status != "" {
		updated, err := s.donations.UpdateStatus(ctx, donation.ID, status, message, s.now().UTC())
		if err != nil {
			return err
		}
		if updated {
			logger.WithField("donation_status", string(status)).Info("donation_status_updated")
			notify = true
		} else {
			logger.WithField("donation_status", string(donation.Status)).Warn("donation_status_unchanged")
		}
	}

	s.enqueue(ctx, logger, queue.JobRecalculateCampaignAmount, RecalculateCampaignPayload{CampaignID: donation.CampaignID})

	if notify {
		payload := PaymentStatusNotificationPayload{
			PaymentID:  payment.ID,
			DonationID: donation.ID,
			Status:     string(status),
		}
		if message != nil {
			payload.ErrorMessage = *message
		}
		s.enqueue(ctx, logger, queue.JobPaymentStatusNotification, payload)
	}

	return nil
}

// enqueue never fails the caller. A lost recalculation is repaired by the
// next one for the same campaign.
func (s *donationSettler) enqueue(ctx context.Context, logger logrus.FieldLogger, jobType string, payload any) {
	if err := s.jobs.Enqueue(ctx, jobType, payload); err != nil {
		logger.WithError(err).WithField("job_type", jobType).Error("job_enqueue_failed")
	}
}
