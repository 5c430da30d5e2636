package subscription_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Ouyang184/fanrealms-universe-access-sub005/pkg/gateway"
	"github.com/Ouyang184/fanrealms-universe-access-sub005/pkg/subscription"
)

func TestNewConfirmationForm_Validation(t *testing.T) {
	confirmer := succeedingConfirmer()

	if _, err := subscription.NewConfirmationForm(nil, "rec_1", "pi_1_secret_abc", 999, ""); !errors.Is(err, gateway.ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
	if _, err := subscription.NewConfirmationForm(confirmer, "rec_1", "", 999, ""); !errors.Is(err, gateway.ErrInvalidClientSecret) {
		t.Errorf("Expected ErrInvalidClientSecret, got %v", err)
	}
}

func TestConfirmationForm_DisplayAmount(t *testing.T) {
	form, err := subscription.NewConfirmationForm(succeedingConfirmer(), "rec_1", "pi_1_secret_abc", 1999, "")
	if err != nil {
		t.Fatalf("NewConfirmationForm failed: %v", err)
	}
	if got := form.DisplayAmount(); got != "$19.99" {
		t.Errorf("Expected $19.99, got %s", got)
	}

	form, _ = subscription.NewConfirmationForm(succeedingConfirmer(), "rec_1", "pi_1_secret_abc", 500, "")
	if got := form.DisplayAmount(); got != "$5.00" {
		t.Errorf("Expected $5.00, got %s", got)
	}
}

func TestConfirmationForm_SubmitSucceeds(t *testing.T) {
	form, err := subscription.NewConfirmationForm(succeedingConfirmer(), "rec_1", "pi_1_secret_abc", 999, "https://example.com/return")
	if err != nil {
		t.Fatalf("NewConfirmationForm failed: %v", err)
	}

	intent, err := form.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !intent.Status.Settled() {
		t.Errorf("Expected settled status, got %s", intent.Status)
	}
	if !form.Succeeded() {
		t.Error("Expected form to report success")
	}
	if form.Retryable() {
		t.Error("Expected succeeded form not to be retryable")
	}

	// Resubmitting after success is rejected
	if _, err := form.Submit(context.Background()); !errors.Is(err, subscription.ErrOperationInFlight) {
		t.Errorf("Expected ErrOperationInFlight, got %v", err)
	}
}

// requires_capture settles the authorization; capture is asynchronous.
func TestConfirmationForm_RequiresCaptureSettles(t *testing.T) {
	confirmer := gateway.ConfirmerFunc(func(context.Context, gateway.ConfirmParams) (*gateway.PaymentIntent, error) {
		return &gateway.PaymentIntent{ID: "pi_1", Status: gateway.IntentStatusRequiresCapture}, nil
	})
	form, _ := subscription.NewConfirmationForm(confirmer, "rec_1", "pi_1_secret_abc", 999, "")

	if _, err := form.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !form.Succeeded() {
		t.Error("Expected requires_capture to count as success")
	}
}

// A gateway error is surfaced verbatim and the form stays retryable.
func TestConfirmationForm_GatewayErrorRetryable(t *testing.T) {
	gatewayErr := errors.New("Your card was declined.")
	calls := 0
	confirmer := gateway.ConfirmerFunc(func(context.Context, gateway.ConfirmParams) (*gateway.PaymentIntent, error) {
		calls++
		if calls == 1 {
			return nil, gatewayErr
		}
		return &gateway.PaymentIntent{ID: "pi_1", Status: gateway.IntentStatusSucceeded}, nil
	})
	form, _ := subscription.NewConfirmationForm(confirmer, "rec_1", "pi_1_secret_abc", 999, "")

	_, err := form.Submit(context.Background())
	if !errors.Is(err, gatewayErr) {
		t.Errorf("Expected the gateway error verbatim, got %v", err)
	}
	if form.Succeeded() {
		t.Error("Expected failed submission not to succeed")
	}
	if !form.Retryable() {
		t.Error("Expected form to stay retryable after a gateway error")
	}
	if !errors.Is(form.Err(), gatewayErr) {
		t.Errorf("Expected Err to hold the gateway error, got %v", form.Err())
	}

	// Manual retry succeeds and clears the error
	if _, err := form.Submit(context.Background()); err != nil {
		t.Fatalf("retry Submit failed: %v", err)
	}
	if form.Err() != nil {
		t.Errorf("Expected Err cleared after success, got %v", form.Err())
	}
}

func TestConfirmationForm_UnsettledStatusRetryable(t *testing.T) {
	confirmer := gateway.ConfirmerFunc(func(context.Context, gateway.ConfirmParams) (*gateway.PaymentIntent, error) {
		return &gateway.PaymentIntent{ID: "pi_1", Status: gateway.IntentStatusFailed}, nil
	})
	form, _ := subscription.NewConfirmationForm(confirmer, "rec_1", "pi_1_secret_abc", 999, "")

	intent, err := form.Submit(context.Background())
	if !errors.Is(err, subscription.ErrPaymentNotSettled) {
		t.Errorf("Expected ErrPaymentNotSettled, got %v", err)
	}
	if intent == nil || intent.Status != gateway.IntentStatusFailed {
		t.Errorf("Expected the intent back for inspection, got %+v", intent)
	}
	if !form.Retryable() {
		t.Error("Expected form to stay retryable")
	}
}
