package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
)

var ErrDonationNotFound = errors.New("donation not found")

type DonationRepository struct {
	db DBTX
}

func NewDonationRepository(db DBTX) *DonationRepository {
	return &DonationRepository{db: db}
}

func (r *DonationRepository) Create(ctx context.Context, donation *entity.Donation) error {
	query := `
		INSERT INTO donations (campaign_id, user_id, amount, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		donation.CampaignID,
		donation.UserID,
		donation.Amount,
		string(donation.Status),
		nullableStringValue(donation.ErrorMessage),
		donation.CreatedAt,
		donation.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	donation.ID = uint64(id)

	return nil
}

func (r *DonationRepository) FindByID(ctx context.Context, id uint64) (*entity.Donation, error) {
	query := `
		SELECT d.id, d.campaign_id, d.user_id, COALESCE(u.email, ''), d.amount, d.status, d.error_message, d.created_at, d.updated_at
		FROM donations d
		LEFT JOIN users u ON u.id = d.user_id
		WHERE d.id = ?
	`

	donation := &entity.Donation{}
	var status string
	var errorMessage sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&donation.ID,
		&donation.CampaignID,
		&donation.UserID,
		&donation.DonorEmail,
		&donation.Amount,
		&status,
		&errorMessage,
		&donation.CreatedAt,
		&donation.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	donation.Status = entity.DonationStatus(status)
	donation.ErrorMessage = stringPtrFromNull(errorMessage)
	return donation, nil
}

// UpdateStatus moves a donation to status. A donation that already succeeded
// is never downgraded to failed; the returned flag reports whether a row changed.
func (r *DonationRepository) UpdateStatus(ctx context.Context, id uint64, status entity.DonationStatus, errorMessage *string, now time.Time) (bool, error) {
	query := `UPDATE donations SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`
	args := []interface{}{string(status), nullableStringValue(errorMessage), now, id}
	if status == entity.DonationStatusFailed {
		query += ` AND status <> ?`
		args = append(args, string(entity.DonationStatusSuccess))
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}
