package service

import "github.com/vibast-solutions/ms-go-crowdfunding/app/queue"

// RegisterJobs binds every queued job type to its handler.
func RegisterJobs(worker *queue.Worker, campaigns *CampaignService, notifications *NotificationService) {
	worker.Handle(queue.JobRecalculateCampaignAmount, campaigns.HandleRecalculationJob)
	worker.OnFailure(queue.JobRecalculateCampaignAmount, campaigns.HandleRecalculationFailure)

	worker.Handle(queue.JobCampaignGoalAchieved, notifications.HandleGoalAchievedJob)
	worker.Handle(queue.JobPaymentStatusNotification, notifications.HandlePaymentStatusJob)
}
