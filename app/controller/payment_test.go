package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/queue"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/types"
)

const testPaymentID = "6f1c2a4e-9b3d-4c1e-8f5a-2d7b9e0c4a11"

func newJSONContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withID(ctx echo.Context, id string) echo.Context {
	ctx.SetParamNames("id")
	ctx.SetParamValues(id)
	return ctx
}

func TestHealth(t *testing.T) {
	srv := newTestServer(nil)
	ctx, rec := newJSONContext(http.MethodGet, "/health", "")

	_ = srv.payments.Health(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStartDonationBadBody(t *testing.T) {
	srv := newTestServer(nil)
	ctx, rec := newJSONContext(http.MethodPost, "/donations", "{bad")

	if err := srv.payments.StartDonation(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStartDonationValidationError(t *testing.T) {
	srv := newTestServer(nil)
	ctx, rec := newJSONContext(http.MethodPost, "/donations", `{"campaign_id":1,"user_id":3,"amount":"abc","payment_method":"fake"}`)

	_ = srv.payments.StartDonation(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
	}
	if len(srv.store.donations) != 0 {
		t.Fatal("no donation should be recorded")
	}
}

func TestStartDonationInactiveCampaign(t *testing.T) {
	srv := newTestServer(nil)
	ctx, rec := newJSONContext(http.MethodPost, "/donations", `{"campaign_id":2,"user_id":3,"amount":"10.00","payment_method":"fake"}`)

	_ = srv.payments.StartDonation(ctx)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestStartDonationSuccess(t *testing.T) {
	srv := newTestServer(nil)
	ctx, rec := newJSONContext(http.MethodPost, "/donations", `{"campaign_id":1,"user_id":3,"amount":"25.50","payment_method":"fake"}`)

	_ = srv.payments.StartDonation(ctx)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.StartDonationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.DonationID == 0 || payload.RedirectURL == "" {
		t.Fatalf("unexpected response: %+v", payload)
	}
	if payload.Payment.Status != string(entity.PaymentStatusPending) || payload.Payment.Amount != "25.50" || payload.Payment.Currency != "EUR" {
		t.Fatalf("unexpected payment: %+v", payload.Payment)
	}
}

func TestGetPayment(t *testing.T) {
	srv := newTestServer(nil)
	srv.seedPayment(testPaymentID, "sess-1", entity.PaymentStatusPending)

	cases := []struct {
		name string
		id   string
		want int
	}{
		{"invalid id", "abc", http.StatusBadRequest},
		{"not found", "0b8e8f0e-1111-4c1e-8f5a-2d7b9e0c4a11", http.StatusNotFound},
		{"found", testPaymentID, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, rec := newJSONContext(http.MethodGet, "/payments/"+tc.id, "")
			_ = srv.payments.GetPayment(withID(ctx, tc.id))
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d body=%s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestProcessPaymentSuccess(t *testing.T) {
	srv := newTestServer(nil)
	payment := srv.seedPayment(testPaymentID, "sess-1", entity.PaymentStatusPending)

	ctx, rec := newJSONContext(http.MethodPost, "/payments/"+testPaymentID+"/process", `{"transaction_id":"TX-9"}`)
	_ = srv.payments.ProcessPayment(withID(ctx, testPaymentID))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	stored := srv.payment(testPaymentID)
	if stored.Status != entity.PaymentStatusCompleted || stored.TransactionIDValue() != "TX-9" {
		t.Fatalf("unexpected payment: %+v", stored)
	}
	if srv.store.donations[payment.DonationID].Status != entity.DonationStatusSuccess {
		t.Fatal("expected donation success")
	}
}

func TestProcessPaymentSimulatedFailure(t *testing.T) {
	srv := newTestServer(nil)
	payment := srv.seedPayment(testPaymentID, "sess-1", entity.PaymentStatusPending)

	ctx, rec := newJSONContext(http.MethodPost, "/payments/"+testPaymentID+"/process", `{"simulate_failure":true,"error_code":"CARD_DECLINED"}`)
	_ = srv.payments.ProcessPayment(withID(ctx, testPaymentID))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rec.Code, rec.Body.String())
	}
	if srv.payment(testPaymentID).Status != entity.PaymentStatusFailed {
		t.Fatal("expected failed payment")
	}
	if srv.store.donations[payment.DonationID].Status != entity.DonationStatusFailed {
		t.Fatal("expected failed donation")
	}
}

func TestProcessPaymentConflict(t *testing.T) {
	srv := newTestServer(nil)
	srv.seedPayment(testPaymentID, "sess-1", entity.PaymentStatusFailed)

	ctx, rec := newJSONContext(http.MethodPost, "/payments/"+testPaymentID+"/process", "")
	_ = srv.payments.ProcessPayment(withID(ctx, testPaymentID))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRefundPaymentNotRefundable(t *testing.T) {
	srv := newTestServer(nil)
	srv.seedPayment(testPaymentID, "sess-1", entity.PaymentStatusPending)

	ctx, rec := newJSONContext(http.MethodPost, "/payments/"+testPaymentID+"/refund", `{"reason":"duplicate"}`)
	_ = srv.payments.RefundPayment(withID(ctx, testPaymentID))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestVerifyPaymentWithoutTransaction(t *testing.T) {
	srv := newTestServer(nil)
	srv.seedPayment(testPaymentID, "sess-1", entity.PaymentStatusPending)

	ctx, rec := newJSONContext(http.MethodPost, "/payments/"+testPaymentID+"/verify", "")
	_ = srv.payments.VerifyPayment(withID(ctx, testPaymentID))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRecalculateCampaign(t *testing.T) {
	srv := newTestServer(nil)

	cases := []struct {
		name string
		id   string
		want int
	}{
		{"bad id", "abc", http.StatusBadRequest},
		{"zero id", "0", http.StatusBadRequest},
		{"unknown campaign", "99", http.StatusNotFound},
		{"queued", "1", http.StatusAccepted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, rec := newJSONContext(http.MethodPost, "/campaigns/"+tc.id+"/recalculate", "")
			_ = srv.payments.RecalculateCampaign(withID(ctx, tc.id))
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d body=%s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}

	if len(srv.store.jobs) != 1 || srv.store.jobs[0] != queue.JobRecalculateCampaignAmount {
		t.Fatalf("expected one recalculation job, got %v", srv.store.jobs)
	}
}
