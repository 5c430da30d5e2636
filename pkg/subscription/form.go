package subscription

import (
	"context"
	"fmt"
	"sync"

	"github.com/Ouyang184/fanrealms-universe-access-sub005/pkg/gateway"
)

// ConfirmationForm drives one payment-confirmation step for a subscribe
// attempt: it holds the request's confirmation material and an amount to
// display, submits to the gateway, and branches on the resulting status.
// There is no retry loop; after a failure the user may resubmit manually.
type ConfirmationForm struct {
	confirmer      gateway.Confirmer
	subscriptionID string
	clientSecret   string
	amount         int64 // minor units, display only
	returnURL      string

	mu         sync.Mutex
	submitting bool
	succeeded  bool
	lastErr    error
}

// NewConfirmationForm creates a form for the given request's confirmation
// material. amount is the charge in minor currency units, used for display.
func NewConfirmationForm(confirmer gateway.Confirmer, subscriptionID, clientSecret string, amount int64, returnURL string) (*ConfirmationForm, error) {
	if confirmer == nil {
		return nil, gateway.ErrNotConfigured
	}
	if clientSecret == "" {
		return nil, gateway.ErrInvalidClientSecret
	}
	return &ConfirmationForm{
		confirmer:      confirmer,
		subscriptionID: subscriptionID,
		clientSecret:   clientSecret,
		amount:         amount,
		returnURL:      returnURL,
	}, nil
}

// SubscriptionID returns the request identifier the form confirms.
func (f *ConfirmationForm) SubscriptionID() string {
	return f.subscriptionID
}

// DisplayAmount formats the charge for the submit button, e.g. "$9.99".
func (f *ConfirmationForm) DisplayAmount() string {
	return fmt.Sprintf("$%d.%02d", f.amount/100, f.amount%100)
}

// Submit calls the gateway's confirm operation. A gateway error is surfaced
// verbatim and the submission counts as failed. A settled status
// (requires_capture or succeeded) signals success; the caller navigates to
// the success view. Any other terminal status leaves the form retryable.
func (f *ConfirmationForm) Submit(ctx context.Context) (*gateway.PaymentIntent, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return nil, ErrOperationInFlight
	}
	if f.succeeded {
		f.mu.Unlock()
		return nil, ErrOperationInFlight
	}
	f.submitting = true
	f.mu.Unlock()

	intent, err := f.confirmer.ConfirmPayment(ctx, gateway.ConfirmParams{
		ClientSecret: f.clientSecret,
		ReturnURL:    f.returnURL,
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false

	if err != nil {
		f.lastErr = err
		return nil, err
	}

	if intent.Status.Settled() {
		f.succeeded = true
		f.lastErr = nil
		return intent, nil
	}

	f.lastErr = fmt.Errorf("%w: status %s", ErrPaymentNotSettled, intent.Status)
	return intent, f.lastErr
}

// Succeeded reports whether a submission reached a settled status.
func (f *ConfirmationForm) Succeeded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.succeeded
}

// Retryable reports whether the user may resubmit.
func (f *ConfirmationForm) Retryable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.succeeded && !f.submitting
}

// Err returns the error of the last failed submission, if any.
func (f *ConfirmationForm) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}
