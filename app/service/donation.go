package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/factory"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/gateway"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/queue"
)

const CodePrepareFailed = "PREPARE_FAILED"

type campaignRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Campaign, error)
	RecalculateAmount(ctx context.Context, id uint64) (*entity.AmountRecalculation, error)
}

type StartDonationInput struct {
	CampaignID    uint64
	UserID        uint64
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod string
}

type StartDonationResult struct {
	Donation    *entity.Donation
	Payment     *entity.Payment
	RedirectURL string
}

type DonationService struct {
	campaigns       campaignRepository
	donations       donationRepository
	payments        paymentRepository
	gateways        *gateway.Registry
	settler         *donationSettler
	defaultCurrency string
	logger          logrus.FieldLogger
	now             func() time.Time
}

func NewDonationService(
	campaigns campaignRepository,
	donations donationRepository,
	payments paymentRepository,
	gateways *gateway.Registry,
	jobs queue.Enqueuer,
	defaultCurrency string,
) *DonationService {
	logger := factory.NewModuleLogger("donation-service")
	return &DonationService{
		campaigns:       campaigns,
		donations:       donations,
		payments:        payments,
		gateways:        gateways,
		settler:         &donationSettler{donations: donations, jobs: jobs, logger: logger, now: time.Now},
		defaultCurrency: defaultCurrency,
		logger:          logger,
		now:             time.Now,
	}
}

// StartDonation records a pending donation with its payment and prepares the
// payment with the chosen gateway. The returned redirect URL sends the payer
// to the gateway's checkout.
func (s *DonationService) StartDonation(ctx context.Context, in StartDonationInput) (*StartDonationResult, error) {
	if in.CampaignID == 0 || in.UserID == 0 {
		return nil, ErrInvalidRequest
	}
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	gw, err := s.gateways.ResolveName(in.PaymentMethod)
	if err != nil {
		return nil, err
	}

	campaign, err := s.campaigns.FindByID(ctx, in.CampaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	if !campaign.AcceptsDonations() {
		return nil, fmt.Errorf("%w: campaign %d is %s", ErrCampaignNotActive, campaign.ID, campaign.Status)
	}

	currency := strings.TrimSpace(in.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}

	now := s.now().UTC()
	donation := &entity.Donation{
		CampaignID: campaign.ID,
		UserID:     in.UserID,
		Amount:     in.Amount.Round(2),
		Status:     entity.DonationStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.donations.Create(ctx, donation); err != nil {
		return nil, err
	}

	payment := entity.NewPayment(uuid.NewString(), donation.ID, gw.PaymentMethod(), donation.Amount, currency, now)
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	logger := s.logger.WithFields(logrus.Fields{
		"campaign_id":    campaign.ID,
		"donation_id":    donation.ID,
		"payment_id":     payment.ID,
		"payment_method": string(payment.PaymentMethod),
	})

	prepared, err := gw.Prepare(ctx, payment)
	if err != nil {
		logger.WithError(err).Error("donation_prepare_failed")
		if failErr := gw.FailPayment(ctx, payment, err.Error(), CodePrepareFailed, nil); failErr != nil {
			logger.WithError(failErr).Error("donation_prepare_failure_not_recorded")
			return nil, err
		}
		if settleErr := s.settler.settle(ctx, payment); settleErr != nil {
			logger.WithError(settleErr).Error("donation_settle_failed")
		}
		return nil, err
	}

	logger.Info("donation_started")
	return &StartDonationResult{
		Donation:    donation,
		Payment:     payment,
		RedirectURL: prepared.RedirectURL,
	}, nil
}
