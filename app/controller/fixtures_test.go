package controller

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/callback"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/gateway"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/repository"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/service"
	"github.com/vibast-solutions/ms-go-crowdfunding/config"
)

type store struct {
	mu        sync.Mutex
	payments  map[string]*entity.Payment
	donations map[uint64]*entity.Donation
	campaigns map[uint64]*entity.Campaign
	nextID    uint64
	jobs      []string
}

func newStore() *store {
	return &store{
		payments:  map[string]*entity.Payment{},
		donations: map[uint64]*entity.Donation{},
		campaigns: map[uint64]*entity.Campaign{
			1: {ID: 1, Title: "Library", GoalAmount: decimal.NewFromInt(100), Status: entity.CampaignStatusActive},
			2: {ID: 2, Title: "Closed", GoalAmount: decimal.NewFromInt(100), Status: entity.CampaignStatusCompleted},
		},
		nextID: 1,
	}
}

type paymentStore struct{ *store }

func (s paymentStore) Create(_ context.Context, payment *entity.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyItem := *payment
	s.payments[payment.ID] = &copyItem
	return nil
}

func (s paymentStore) Update(_ context.Context, payment *entity.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[payment.ID]; !ok {
		return repository.ErrPaymentNotFound
	}
	copyItem := *payment
	s.payments[payment.ID] = &copyItem
	return nil
}

func (s paymentStore) FindByID(_ context.Context, id string) (*entity.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.payments[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (s paymentStore) ListStale(context.Context, time.Time, int32) ([]*entity.Payment, error) {
	return nil, nil
}

type donationStore struct{ *store }

func (s donationStore) Create(_ context.Context, donation *entity.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	donation.ID = s.nextID
	s.nextID++
	copyItem := *donation
	s.donations[donation.ID] = &copyItem
	return nil
}

func (s donationStore) FindByID(_ context.Context, id uint64) (*entity.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.donations[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (s donationStore) UpdateStatus(_ context.Context, id uint64, status entity.DonationStatus, errorMessage *string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.donations[id]
	if !ok || item.Status == status {
		return false, nil
	}
	item.Status = status
	item.ErrorMessage = errorMessage
	item.UpdatedAt = now
	return true, nil
}

type campaignStore struct{ *store }

func (s campaignStore) FindByID(_ context.Context, id uint64) (*entity.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.campaigns[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (s campaignStore) RecalculateAmount(_ context.Context, id uint64) (*entity.AmountRecalculation, error) {
	return nil, repository.ErrCampaignNotFound
}

type noopEvents struct{}

func (noopEvents) Create(context.Context, *entity.PaymentEvent) error { return nil }

type noopCallbacks struct{}

func (noopCallbacks) Create(context.Context, *entity.PaymentCallback) error { return nil }

func (s *store) Enqueue(_ context.Context, jobType string, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, jobType)
	return nil
}

// stubWebhook answers WebhookPaymentID with a fixed id.
type stubWebhook struct {
	paymentID string
	err       error
}

func (s stubWebhook) WebhookPaymentID(*callback.Request) (string, error) {
	return s.paymentID, s.err
}

var testRedirects = config.RedirectsConfig{
	SuccessURL: "https://app.test/donations/success",
	FailureURL: "https://app.test/donations/failed",
	PendingURL: "https://app.test/donations/pending",
}

type testServer struct {
	store    *store
	payments *PaymentController
	callback *CallbackController
}

func newTestServer(webhook WebhookResolver) *testServer {
	st := newStore()
	payments := paymentStore{st}
	donations := donationStore{st}
	campaigns := campaignStore{st}

	cfg := gateway.LifecycleConfig{CallbackBaseURL: "https://cf.test", Timeout: time.Second}
	gateways := gateway.NewRegistry(gateway.NewFakeGateway(payments, noopEvents{}, cfg, "https://cf.test/fake-gateway/checkout"))
	handlers := callback.NewRegistry(callback.NewFakeHandler())

	donationService := service.NewDonationService(campaigns, donations, payments, gateways, st, "EUR")
	paymentService := service.NewPaymentService(payments, donations, gateways, st, config.JobsConfig{StaleTimeout: time.Hour})
	campaignService := service.NewCampaignService(campaigns, st, nil)
	callbackService := service.NewPaymentCallbackService(payments, noopCallbacks{}, donations, gateways, handlers, st, nil)

	if webhook == nil {
		webhook = stubWebhook{}
	}

	return &testServer{
		store:    st,
		payments: NewPaymentController(paymentService, donationService, campaignService),
		callback: NewCallbackController(callbackService, webhook, testRedirects, "https://cf.test/"),
	}
}

// seedPayment stores a prepared fake payment with its pending donation.
func (s *testServer) seedPayment(id, sessionID string, status entity.PaymentStatus) *entity.Payment {
	now := time.Now().UTC()
	donation := &entity.Donation{CampaignID: 1, UserID: 3, Amount: decimal.NewFromInt(25), Status: entity.DonationStatusPending}
	_ = donationStore{s.store}.Create(context.Background(), donation)

	payment := entity.NewPayment(id, donation.ID, entity.PaymentMethodFake, decimal.NewFromInt(25), "EUR", now)
	payment.MarkPrepared(map[string]any{"session_id": sessionID}, "https://cf.test/fake-gateway/checkout", now)
	payment.Status = status
	_ = paymentStore{s.store}.Create(context.Background(), payment)
	return payment
}

func (s *testServer) payment(id string) *entity.Payment {
	payment, _ := paymentStore{s.store}.FindByID(context.Background(), id)
	return payment
}
