package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists")
)

const paymentColumns = `
	id, donation_id, payment_method, status, amount, currency,
	transaction_id, gateway_response_json, error_message, error_code, metadata_json,
	payload_json, redirect_url,
	initiated_at, prepared_at, completed_at, failed_at, refunded_at,
	created_at, updated_at, deleted_at
`

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	response, metadata, payload, err := encodePaymentDocuments(payment)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payments (
			id, donation_id, payment_method, status, amount, currency,
			transaction_id, gateway_response_json, error_message, error_code, metadata_json,
			payload_json, redirect_url,
			initiated_at, prepared_at, completed_at, failed_at, refunded_at,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		payment.ID,
		payment.DonationID,
		string(payment.PaymentMethod),
		string(payment.Status),
		payment.Amount,
		payment.Currency,
		nullableStringValue(payment.TransactionID),
		response,
		nullableStringValue(payment.ErrorMessage),
		nullableStringValue(payment.ErrorCode),
		metadata,
		payload,
		nullableStringValue(payment.RedirectURL),
		payment.InitiatedAt,
		nullableTimeValue(payment.PreparedAt),
		nullableTimeValue(payment.CompletedAt),
		nullableTimeValue(payment.FailedAt),
		nullableTimeValue(payment.RefundedAt),
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentAlreadyExists
		}
		return err
	}

	return nil
}

// Update persists the mutable payment fields. Callers change a payment only
// through the entity's transition methods before saving it here.
func (r *PaymentRepository) Update(ctx context.Context, payment *entity.Payment) error {
	response, metadata, payload, err := encodePaymentDocuments(payment)
	if err != nil {
		return err
	}

	query := `
		UPDATE payments SET
			status = ?,
			transaction_id = ?,
			gateway_response_json = ?,
			error_message = ?,
			error_code = ?,
			metadata_json = ?,
			payload_json = ?,
			redirect_url = ?,
			prepared_at = ?,
			completed_at = ?,
			failed_at = ?,
			refunded_at = ?,
			updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		string(payment.Status),
		nullableStringValue(payment.TransactionID),
		response,
		nullableStringValue(payment.ErrorMessage),
		nullableStringValue(payment.ErrorCode),
		metadata,
		payload,
		nullableStringValue(payment.RedirectURL),
		nullableTimeValue(payment.PreparedAt),
		nullableTimeValue(payment.CompletedAt),
		nullableTimeValue(payment.FailedAt),
		nullableTimeValue(payment.RefundedAt),
		payment.UpdatedAt,
		payment.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentNotFound
	}

	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ? AND deleted_at IS NULL`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, id), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payment, nil
}

// ListStale returns pending or processing payments not touched since before.
func (r *PaymentRepository) ListStale(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status IN (?, ?)
		  AND updated_at <= ?
		  AND deleted_at IS NULL
		ORDER BY updated_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query,
		string(entity.PaymentStatusPending),
		string(entity.PaymentStatusProcessing),
		before,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

func encodePaymentDocuments(payment *entity.Payment) (string, string, string, error) {
	response, err := serializeJSONMap(payment.GatewayResponse)
	if err != nil {
		return "", "", "", err
	}
	metadata, err := serializeJSONMap(payment.Metadata)
	if err != nil {
		return "", "", "", err
	}
	payload, err := serializeJSONMap(payment.Payload)
	if err != nil {
		return "", "", "", err
	}
	return response, metadata, payload, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var method, status string
	var transactionID sql.NullString
	var responseJSON, metadataJSON, payloadJSON sql.NullString
	var errorMessage, errorCode sql.NullString
	var redirectURL sql.NullString
	var preparedAt, completedAt, failedAt, refundedAt, deletedAt sql.NullTime

	err := scan.Scan(
		&payment.ID,
		&payment.DonationID,
		&method,
		&status,
		&payment.Amount,
		&payment.Currency,
		&transactionID,
		&responseJSON,
		&errorMessage,
		&errorCode,
		&metadataJSON,
		&payloadJSON,
		&redirectURL,
		&payment.InitiatedAt,
		&preparedAt,
		&completedAt,
		&failedAt,
		&refundedAt,
		&payment.CreatedAt,
		&payment.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return err
	}

	payment.PaymentMethod = entity.PaymentMethod(method)
	payment.Status = entity.PaymentStatus(status)
	payment.TransactionID = stringPtrFromNull(transactionID)
	payment.ErrorMessage = stringPtrFromNull(errorMessage)
	payment.ErrorCode = stringPtrFromNull(errorCode)
	payment.RedirectURL = stringPtrFromNull(redirectURL)
	payment.PreparedAt = timePtrFromNull(preparedAt)
	payment.CompletedAt = timePtrFromNull(completedAt)
	payment.FailedAt = timePtrFromNull(failedAt)
	payment.RefundedAt = timePtrFromNull(refundedAt)
	payment.DeletedAt = timePtrFromNull(deletedAt)

	if payment.GatewayResponse, err = parseJSONMap(responseJSON); err != nil {
		return err
	}
	if payment.Metadata, err = parseJSONMap(metadataJSON); err != nil {
		return err
	}
	if payment.Payload, err = parseJSONMap(payloadJSON); err != nil {
		return err
	}

	return nil
}
