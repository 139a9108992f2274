package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
)

var ErrCampaignNotFound = errors.New("campaign not found")

type CampaignRepository struct {
	db  TxBeginner
	now func() time.Time
}

func NewCampaignRepository(db TxBeginner) *CampaignRepository {
	return &CampaignRepository{db: db, now: time.Now}
}

func (r *CampaignRepository) FindByID(ctx context.Context, id uint64) (*entity.Campaign, error) {
	query := `
		SELECT c.id, c.title, c.user_id, COALESCE(u.email, ''), c.goal_amount, c.current_amount, c.status, c.created_at, c.updated_at
		FROM campaigns c
		LEFT JOIN users u ON u.id = c.user_id
		WHERE c.id = ?
	`

	campaign := &entity.Campaign{}
	var status string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&campaign.ID,
		&campaign.Title,
		&campaign.OwnerID,
		&campaign.OwnerEmail,
		&campaign.GoalAmount,
		&campaign.CurrentAmount,
		&status,
		&campaign.CreatedAt,
		&campaign.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	campaign.Status = entity.CampaignStatus(status)
	return campaign, nil
}

// RecalculateAmount sets current_amount to the sum of the campaign's successful
// donations. The campaign row stays locked for the whole read-sum-write so two
// concurrent runs observe each other's result and at most one of them sees the
// goal crossing.
func (r *CampaignRepository) RecalculateAmount(ctx context.Context, id uint64) (*entity.AmountRecalculation, error) {
	recalculation := &entity.AmountRecalculation{CampaignID: id}

	err := runInTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT goal_amount, current_amount FROM campaigns WHERE id = ? FOR UPDATE`,
			id,
		).Scan(&recalculation.GoalAmount, &recalculation.PreviousAmount)
		if err == sql.ErrNoRows {
			return ErrCampaignNotFound
		}
		if err != nil {
			return err
		}

		var total decimal.NullDecimal
		err = tx.QueryRowContext(ctx,
			`SELECT SUM(amount) FROM donations WHERE campaign_id = ? AND status = ?`,
			id, string(entity.DonationStatusSuccess),
		).Scan(&total)
		if err != nil {
			return err
		}
		recalculation.CurrentAmount = decimal.Zero
		if total.Valid {
			recalculation.CurrentAmount = total.Decimal
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE campaigns SET current_amount = ?, updated_at = ? WHERE id = ?`,
			recalculation.CurrentAmount, r.now().UTC(), id,
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	return recalculation, nil
}
