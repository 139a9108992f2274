package types

import "time"

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type PaymentResponse struct {
	ID            string         `json:"id"`
	DonationID    uint64         `json:"donation_id"`
	PaymentMethod string         `json:"payment_method"`
	Status        string         `json:"status"`
	Amount        string         `json:"amount"`
	Currency      string         `json:"currency"`
	TransactionID string         `json:"transaction_id,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	ErrorCode     string         `json:"error_code,omitempty"`
	RedirectURL   string         `json:"redirect_url,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	InitiatedAt   time.Time      `json:"initiated_at"`
	PreparedAt    *time.Time     `json:"prepared_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	FailedAt      *time.Time     `json:"failed_at,omitempty"`
	RefundedAt    *time.Time     `json:"refunded_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type PaymentEnvelopeResponse struct {
	Payment *PaymentResponse `json:"payment"`
}

type StartDonationResponse struct {
	DonationID  uint64           `json:"donation_id"`
	RedirectURL string           `json:"redirect_url"`
	Payment     *PaymentResponse `json:"payment"`
}
