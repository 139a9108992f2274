package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/callback"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/gateway"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/repository"
	"github.com/vibast-solutions/ms-go-crowdfunding/config"
)

type memoryPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*entity.Payment
	// failOn rejects writes of this status only.
	failOn entity.PaymentStatus
}

func newMemoryPaymentRepo() *memoryPaymentRepo {
	return &memoryPaymentRepo{payments: map[string]*entity.Payment{}}
}

func (r *memoryPaymentRepo) Create(_ context.Context, payment *entity.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[payment.ID]; ok {
		return repository.ErrPaymentAlreadyExists
	}
	copyItem := *payment
	r.payments[payment.ID] = &copyItem
	return nil
}

func (r *memoryPaymentRepo) Update(_ context.Context, payment *entity.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[payment.ID]; !ok {
		return repository.ErrPaymentNotFound
	}
	if r.failOn != "" && payment.Status == r.failOn {
		return errBoom
	}
	copyItem := *payment
	r.payments[payment.ID] = &copyItem
	return nil
}

func (r *memoryPaymentRepo) FindByID(_ context.Context, id string) (*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.payments[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *memoryPaymentRepo) ListStale(_ context.Context, before time.Time, limit int32) ([]*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.Payment, 0)
	for _, item := range r.payments {
		if item.Status != entity.PaymentStatusPending && item.Status != entity.PaymentStatusProcessing {
			continue
		}
		if item.UpdatedAt.After(before) {
			continue
		}
		copyItem := *item
		items = append(items, &copyItem)
		if int32(len(items)) == limit {
			break
		}
	}
	return items, nil
}

func (r *memoryPaymentRepo) get(t *testing.T, id string) *entity.Payment {
	t.Helper()
	payment, _ := r.FindByID(context.Background(), id)
	if payment == nil {
		t.Fatalf("payment %s not stored", id)
	}
	return payment
}

type memoryEventRepo struct {
	mu     sync.Mutex
	events []*entity.PaymentEvent
}

func (r *memoryEventRepo) Create(_ context.Context, event *entity.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

type memoryCallbackRepo struct {
	mu        sync.Mutex
	callbacks []*entity.PaymentCallback
}

func (r *memoryCallbackRepo) Create(_ context.Context, cb *entity.PaymentCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
	return nil
}

func (r *memoryCallbackRepo) last(t *testing.T) *entity.PaymentCallback {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.callbacks) == 0 {
		t.Fatal("no callback audited")
	}
	return r.callbacks[len(r.callbacks)-1]
}

type memoryDonationRepo struct {
	mu        sync.Mutex
	donations map[uint64]*entity.Donation
	nextID    uint64
	updateErr error
}

func newMemoryDonationRepo() *memoryDonationRepo {
	return &memoryDonationRepo{donations: map[uint64]*entity.Donation{}, nextID: 1}
}

func (r *memoryDonationRepo) Create(_ context.Context, donation *entity.Donation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	donation.ID = r.nextID
	r.nextID++
	copyItem := *donation
	r.donations[donation.ID] = &copyItem
	return nil
}

func (r *memoryDonationRepo) FindByID(_ context.Context, id uint64) (*entity.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.donations[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *memoryDonationRepo) UpdateStatus(_ context.Context, id uint64, status entity.DonationStatus, errorMessage *string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return false, r.updateErr
	}
	item, ok := r.donations[id]
	if !ok {
		return false, nil
	}
	if status == entity.DonationStatusFailed && item.Status == entity.DonationStatusSuccess {
		return false, nil
	}
	item.Status = status
	item.ErrorMessage = errorMessage
	item.UpdatedAt = now
	return true, nil
}

func (r *memoryDonationRepo) add(campaignID uint64, amount string, status entity.DonationStatus) *entity.Donation {
	donation := &entity.Donation{
		CampaignID: campaignID,
		UserID:     1,
		DonorEmail: "donor@example.com",
		Amount:     decimal.RequireFromString(amount),
		Status:     status,
	}
	_ = r.Create(context.Background(), donation)
	return donation
}

func (r *memoryDonationRepo) status(id uint64) entity.DonationStatus {
	donation, _ := r.FindByID(context.Background(), id)
	if donation == nil {
		return ""
	}
	return donation.Status
}

// memoryCampaignRepo recomputes amounts from memoryDonationRepo under one
// lock, the way the SQL repository does under a row lock.
type memoryCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[uint64]*entity.Campaign
	donations *memoryDonationRepo
	err       error
}

func newMemoryCampaignRepo(donations *memoryDonationRepo) *memoryCampaignRepo {
	return &memoryCampaignRepo{campaigns: map[uint64]*entity.Campaign{}, donations: donations}
}

func (r *memoryCampaignRepo) add(campaign *entity.Campaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[campaign.ID] = campaign
}

func (r *memoryCampaignRepo) FindByID(_ context.Context, id uint64) (*entity.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.campaigns[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *memoryCampaignRepo) RecalculateAmount(_ context.Context, id uint64) (*entity.AmountRecalculation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	campaign, ok := r.campaigns[id]
	if !ok {
		return nil, repository.ErrCampaignNotFound
	}

	total := decimal.Zero
	r.donations.mu.Lock()
	for _, donation := range r.donations.donations {
		if donation.CampaignID == id && donation.Status == entity.DonationStatusSuccess {
			total = total.Add(donation.Amount)
		}
	}
	r.donations.mu.Unlock()

	result := &entity.AmountRecalculation{
		CampaignID:     id,
		GoalAmount:     campaign.GoalAmount,
		PreviousAmount: campaign.CurrentAmount,
		CurrentAmount:  total,
	}
	campaign.CurrentAmount = total
	return result, nil
}

func (r *memoryCampaignRepo) current(id uint64) decimal.Decimal {
	campaign, _ := r.FindByID(context.Background(), id)
	return campaign.CurrentAmount
}

type recordedJob struct {
	Type    string
	Payload any
}

type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []recordedJob
	err  error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, jobType string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.jobs = append(e.jobs, recordedJob{Type: jobType, Payload: payload})
	return nil
}

func (e *recordingEnqueuer) ofType(jobType string) []recordedJob {
	e.mu.Lock()
	defer e.mu.Unlock()
	items := make([]recordedJob, 0)
	for _, job := range e.jobs {
		if job.Type == jobType {
			items = append(items, job)
		}
	}
	return items
}

var errBoom = errors.New("boom")

type testEnv struct {
	payments  *memoryPaymentRepo
	events    *memoryEventRepo
	callbacks *memoryCallbackRepo
	donations *memoryDonationRepo
	campaigns *memoryCampaignRepo
	jobs      *recordingEnqueuer

	gateways *gateway.Registry
	handlers *callback.Registry

	donationService *DonationService
	paymentService  *PaymentService
	callbackService *PaymentCallbackService
	campaignService *CampaignService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		payments:  newMemoryPaymentRepo(),
		events:    &memoryEventRepo{},
		callbacks: &memoryCallbackRepo{},
		donations: newMemoryDonationRepo(),
		jobs:      &recordingEnqueuer{},
	}
	env.campaigns = newMemoryCampaignRepo(env.donations)
	env.campaigns.add(&entity.Campaign{
		ID:         1,
		Title:      "Community garden",
		OwnerEmail: "owner@example.com",
		GoalAmount: decimal.RequireFromString("100.00"),
		Status:     entity.CampaignStatusActive,
	})

	cfg := gateway.LifecycleConfig{CallbackBaseURL: "https://cf.test", Timeout: time.Second}
	env.gateways = gateway.NewRegistry(gateway.NewFakeGateway(env.payments, env.events, cfg, "https://cf.test/fake-gateway/checkout"))
	env.handlers = callback.NewRegistry(callback.NewFakeHandler())

	env.donationService = NewDonationService(env.campaigns, env.donations, env.payments, env.gateways, env.jobs, "EUR")
	env.paymentService = NewPaymentService(env.payments, env.donations, env.gateways, env.jobs, config.JobsConfig{StaleTimeout: time.Hour, BatchSize: 10})
	env.callbackService = NewPaymentCallbackService(env.payments, env.callbacks, env.donations, env.gateways, env.handlers, env.jobs, nil)
	env.campaignService = NewCampaignService(env.campaigns, env.jobs, nil)
	return env
}

func (env *testEnv) startDonation(t *testing.T, amount string) *StartDonationResult {
	t.Helper()
	result, err := env.donationService.StartDonation(context.Background(), StartDonationInput{
		CampaignID:    1,
		UserID:        7,
		Amount:        decimal.RequireFromString(amount),
		PaymentMethod: "fake",
	})
	if err != nil {
		t.Fatalf("StartDonation: %v", err)
	}
	return result
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
