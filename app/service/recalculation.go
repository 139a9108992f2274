package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/factory"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/queue"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/repository"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/telemetry"
)

type CampaignGoalAchievedPayload struct {
	CampaignID     uint64 `json:"campaign_id"`
	PreviousAmount string `json:"previous_amount"`
	CurrentAmount  string `json:"current_amount"`
	GoalAmount     string `json:"goal_amount"`
}

// CampaignService owns campaign current amounts. Nothing else writes them.
type CampaignService struct {
	campaigns campaignRepository
	jobs      queue.Enqueuer
	metrics   *telemetry.Metrics
	logger    logrus.FieldLogger
}

func NewCampaignService(campaigns campaignRepository, jobs queue.Enqueuer, metrics *telemetry.Metrics) *CampaignService {
	return &CampaignService{
		campaigns: campaigns,
		jobs:      jobs,
		metrics:   metrics,
		logger:    factory.NewModuleLogger("campaign-service"),
	}
}

// RequestRecalculation queues a recalculation for an existing campaign.
func (s *CampaignService) RequestRecalculation(ctx context.Context, campaignID uint64) error {
	if campaignID == 0 {
		return ErrInvalidRequest
	}

	campaign, err := s.campaigns.FindByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		return ErrCampaignNotFound
	}

	return s.jobs.Enqueue(ctx, queue.JobRecalculateCampaignAmount, RecalculateCampaignPayload{CampaignID: campaignID})
}

// RecalculateAmount recomputes the campaign's current amount from its
// successful donations and queues the goal notification when this run is the
// one that crossed the goal. A missing campaign is not an error: the result
// is nil and nothing is retried.
func (s *CampaignService) RecalculateAmount(ctx context.Context, campaignID uint64) (*entity.AmountRecalculation, error) {
	logger := s.logger.WithField("campaign_id", campaignID)

	recalculation, err := s.campaigns.RecalculateAmount(ctx, campaignID)
	if errors.Is(err, repository.ErrCampaignNotFound) {
		logger.Warn("campaign_recalculation_skipped_missing_campaign")
		s.metrics.Recalculation(ctx, telemetry.OutcomeSkipped)
		return nil, nil
	}
	if err != nil {
		s.metrics.Recalculation(ctx, telemetry.OutcomeFailure)
		return nil, fmt.Errorf("recalculate campaign %d: %w", campaignID, err)
	}

	s.metrics.Recalculation(ctx, telemetry.OutcomeSuccess)
	logger = logger.WithFields(logrus.Fields{
		"previous_amount": recalculation.PreviousAmount.StringFixed(2),
		"current_amount":  recalculation.CurrentAmount.StringFixed(2),
		"goal_amount":     recalculation.GoalAmount.StringFixed(2),
	})
	logger.Info("campaign_amount_recalculated")

	if !recalculation.GoalNewlyAchieved() {
		return recalculation, nil
	}

	// The crossing is observed once. Returning an error here would retry the
	// job, and the retry would no longer see it, so a failed enqueue is only
	// reported.
	err = s.jobs.Enqueue(ctx, queue.JobCampaignGoalAchieved, CampaignGoalAchievedPayload{
		CampaignID:     campaignID,
		PreviousAmount: recalculation.PreviousAmount.StringFixed(2),
		CurrentAmount:  recalculation.CurrentAmount.StringFixed(2),
		GoalAmount:     recalculation.GoalAmount.StringFixed(2),
	})
	if err != nil {
		logger.WithError(err).Error("campaign_goal_job_enqueue_failed")
		return recalculation, nil
	}

	s.metrics.GoalAchieved(ctx)
	logger.Info("campaign_goal_achieved")
	return recalculation, nil
}

func (s *CampaignService) HandleRecalculationJob(ctx context.Context, job *queue.Job) error {
	payload := RecalculateCampaignPayload{}
	if err := job.Decode(&payload); err != nil {
		return queue.Permanent(fmt.Errorf("decode payload: %w", err))
	}
	if payload.CampaignID == 0 {
		return queue.Permanent(fmt.Errorf("%w: campaign_id is required", ErrInvalidRequest))
	}

	_, err := s.RecalculateAmount(ctx, payload.CampaignID)
	return err
}

// HandleRecalculationFailure reports a recalculation that ran out of attempts.
func (s *CampaignService) HandleRecalculationFailure(_ context.Context, job *queue.Job, err error) {
	payload := RecalculateCampaignPayload{}
	_ = job.Decode(&payload)

	s.logger.WithError(err).WithFields(logrus.Fields{
		"campaign_id": payload.CampaignID,
		"job_id":      job.ID,
		"attempts":    job.Attempt,
	}).Error("campaign_recalculation_permanently_failed")
}
