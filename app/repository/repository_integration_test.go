//go:build integration

package repository

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
	"github.com/vibast-solutions/ms-go-crowdfunding/migrations"
)

type RepositorySuite struct {
	suite.Suite
	container *tcmysql.MySQLContainer
	db        *sql.DB
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("crowdfunding"),
		tcmysql.WithUsername("test_user"),
		tcmysql.WithPassword("test_password"),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "parseTime=true")
	s.Require().NoError(err)

	db, err := sql.Open("mysql", dsn)
	s.Require().NoError(err)
	s.db = db

	s.Require().NoError(migrations.Up(db))
}

func (s *RepositorySuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.container != nil {
		_ = testcontainers.TerminateContainer(s.container)
	}
}

func (s *RepositorySuite) seedCampaign(goal string) uint64 {
	now := time.Now().UTC()
	res, err := s.db.Exec(`INSERT INTO users (email) VALUES (?)`, uuid.NewString()+"@example.com")
	s.Require().NoError(err)
	userID, _ := res.LastInsertId()

	res, err = s.db.Exec(
		`INSERT INTO campaigns (title, user_id, goal_amount, current_amount, status, created_at, updated_at) VALUES (?, ?, ?, 0, 'active', ?, ?)`,
		"Water well", userID, goal, now, now,
	)
	s.Require().NoError(err)
	id, _ := res.LastInsertId()
	return uint64(id)
}

func (s *RepositorySuite) seedDonation(campaignID uint64, amount string, status entity.DonationStatus) *entity.Donation {
	now := time.Now().UTC()
	donation := &entity.Donation{
		CampaignID: campaignID,
		UserID:     1,
		Amount:     decimal.RequireFromString(amount),
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.Require().NoError(NewDonationRepository(s.db).Create(context.Background(), donation))
	return donation
}

func (s *RepositorySuite) TestPaymentRoundTrip() {
	ctx := context.Background()
	repo := NewPaymentRepository(s.db)

	payment := entity.NewPayment(uuid.NewString(), 1, entity.PaymentMethodFake, decimal.RequireFromString("25.50"), "usd", time.Now().UTC())
	s.Require().NoError(repo.Create(ctx, payment))
	s.Require().ErrorIs(repo.Create(ctx, payment), ErrPaymentAlreadyExists)

	payment.MarkPrepared(map[string]any{"session_id": "fake_1"}, "https://checkout.test", time.Now().UTC())
	s.Require().NoError(repo.Update(ctx, payment))

	stored, err := repo.FindByID(ctx, payment.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored)
	s.Equal(entity.PaymentStatusPending, stored.Status)
	s.True(stored.Amount.Equal(decimal.RequireFromString("25.50")))
	s.Equal("fake_1", stored.Payload["session_id"])

	missing, err := repo.FindByID(ctx, uuid.NewString())
	s.Require().NoError(err)
	s.Nil(missing)
}

func (s *RepositorySuite) TestDonationFailureNeverDowngradesSuccess() {
	ctx := context.Background()
	repo := NewDonationRepository(s.db)
	campaignID := s.seedCampaign("100.00")
	donation := s.seedDonation(campaignID, "10.00", entity.DonationStatusPending)

	changed, err := repo.UpdateStatus(ctx, donation.ID, entity.DonationStatusSuccess, nil, time.Now().UTC())
	s.Require().NoError(err)
	s.True(changed)

	msg := "late failure"
	changed, err = repo.UpdateStatus(ctx, donation.ID, entity.DonationStatusFailed, &msg, time.Now().UTC())
	s.Require().NoError(err)
	s.False(changed)

	stored, err := repo.FindByID(ctx, donation.ID)
	s.Require().NoError(err)
	s.Equal(entity.DonationStatusSuccess, stored.Status)
}

func (s *RepositorySuite) TestRecalculateAmountSumsOnlySuccessfulDonations() {
	ctx := context.Background()
	repo := NewCampaignRepository(s.db)
	campaignID := s.seedCampaign("100.00")
	for i := 0; i < 3; i++ {
		s.seedDonation(campaignID, "40.00", entity.DonationStatusSuccess)
	}
	s.seedDonation(campaignID, "500.00", entity.DonationStatusFailed)
	s.seedDonation(campaignID, "500.00", entity.DonationStatusPending)

	first, err := repo.RecalculateAmount(ctx, campaignID)
	s.Require().NoError(err)
	s.True(first.PreviousAmount.IsZero())
	s.True(first.CurrentAmount.Equal(decimal.RequireFromString("120.00")))
	s.True(first.GoalNewlyAchieved())

	second, err := repo.RecalculateAmount(ctx, campaignID)
	s.Require().NoError(err)
	s.True(second.CurrentAmount.Equal(first.CurrentAmount))
	s.False(second.GoalNewlyAchieved())
}

func (s *RepositorySuite) TestRecalculateAmountWithoutDonationsIsZero() {
	recalculation, err := NewCampaignRepository(s.db).RecalculateAmount(context.Background(), s.seedCampaign("50.00"))
	s.Require().NoError(err)
	s.True(recalculation.CurrentAmount.IsZero())
}

func (s *RepositorySuite) TestRecalculateAmountMissingCampaign() {
	_, err := NewCampaignRepository(s.db).RecalculateAmount(context.Background(), 987654)
	s.Require().ErrorIs(err, ErrCampaignNotFound)
}

func (s *RepositorySuite) TestConcurrentRecalculationsSeeGoalOnce() {
	ctx := context.Background()
	repo := NewCampaignRepository(s.db)
	campaignID := s.seedCampaign("100.00")
	for i := 0; i < 3; i++ {
		s.seedDonation(campaignID, "40.00", entity.DonationStatusSuccess)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	crossings := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := repo.RecalculateAmount(ctx, campaignID)
			require.NoError(s.T(), err)
			if r.GoalNewlyAchieved() {
				mu.Lock()
				crossings++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, crossings)
}
