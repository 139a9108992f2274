package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobRecalculateCampaignAmount = "recalculate_campaign_amount"
	JobCampaignGoalAchieved      = "campaign_goal_achieved"
	JobPaymentStatusNotification = "payment_status_notification"
)

type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	LastError   string          `json:"last_error,omitempty"`
}

func NewJob(jobType string, payload any, maxAttempts int, now time.Time) (*Job, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Payload:     encoded,
		MaxAttempts: maxAttempts,
		EnqueuedAt:  now.UTC(),
	}, nil
}

func (j *Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}

// Enqueuer is the producer side of the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any) error
}

// Delivery is a job taken from the queue together with the exact encoding
// that has to be removed from the in-flight list once it is settled.
type Delivery struct {
	Job *Job
	raw string
}

// Broker is the consumer side used by the worker.
type Broker interface {
	Enqueuer
	Dequeue(ctx context.Context, timeout time.Duration) (*Delivery, error)
	Ack(ctx context.Context, delivery *Delivery) error
	Retry(ctx context.Context, delivery *Delivery, delay time.Duration, cause error) error
	Bury(ctx context.Context, delivery *Delivery, cause error) error
	PromoteDue(ctx context.Context, now time.Time) (int, error)
	Requeue(ctx context.Context) (int, error)
}
