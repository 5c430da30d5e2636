// Package api exposes the subscription and cancellation functions over HTTP,
// mirroring the serverless function contract: a single action envelope for
// subscribe/cancel plus a dedicated manual-cancellation endpoint.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Ouyang184/fanrealms-universe-access-sub005/pkg/gateway"
	"github.com/Ouyang184/fanrealms-universe-access-sub005/pkg/subscription"
)

const (
	// ActionCreate requests a new subscription with payment-intent material
	ActionCreate = "create_subscription"
	// ActionCancel requests a gateway-driven cancellation
	ActionCancel = "cancel_subscription"

	maxBodyBytes = 64 * 1024
)

// Handler provides HTTP endpoints for the subscription functions
type Handler struct {
	config Config
}

// Subscribe handles the action envelope endpoint.
// `{action: "create_subscription", tierId, creatorId}` returns
// `{subscriptionId, clientSecret}`; `{action: "cancel_subscription",
// subscriptionId}` returns `{success: true}`.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}

	var req SubscribeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	principal := h.config.GetPrincipal(r)
	if principal == nil {
		h.handleError(w, r, subscription.ErrAuthenticationRequired)
		return
	}

	ctx := r.Context()
	switch req.Action {
	case ActionCreate:
		if req.TierID == "" || req.CreatorID == "" {
			h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("tierId and creatorId are required"))
			return
		}
		checkout, err := h.config.Service.CreateSubscription(ctx, principal, req.TierID, req.CreatorID)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, SubscribeResponse{
			SubscriptionID: checkout.SubscriptionID,
			ClientSecret:   checkout.ClientSecret,
		})

	case ActionCancel:
		if req.SubscriptionID == "" {
			h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("subscriptionId is required"))
			return
		}
		if _, err := h.config.Service.CancelSubscription(ctx, principal, req.SubscriptionID); err != nil {
			h.handleError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, CancelResponse{Success: true})

	default:
		h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("unknown action: %q", req.Action))
	}
}

// ForceCancel handles the manual cancellation endpoint.
// `{creatorId}` returns `{message}` on success.
func (h *Handler) ForceCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, r, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}

	var req ForceCancelRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}
	if req.CreatorID == "" {
		h.writeError(w, r, http.StatusBadRequest, fmt.Errorf("creatorId is required"))
		return
	}

	principal := h.config.GetPrincipal(r)
	if principal == nil {
		h.handleError(w, r, subscription.ErrAuthenticationRequired)
		return
	}

	outcome, err := h.config.Service.ForceCancel(r.Context(), principal, req.CreatorID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ForceCancelResponse{Message: outcome.Message})
}

// handleError maps service errors to HTTP status codes.
// Gateway messages pass through verbatim; unexpected errors are logged with
// the raw cause and surfaced as a generic failure.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, subscription.ErrAuthenticationRequired):
		h.writeError(w, r, http.StatusUnauthorized, err)
	case errors.Is(err, subscription.ErrNotSubscriptionOwner):
		h.writeError(w, r, http.StatusForbidden, err)
	case errors.Is(err, subscription.ErrTierNotFound),
		errors.Is(err, subscription.ErrSubscriptionNotFound),
		errors.Is(err, subscription.ErrCustomerNotFound):
		h.writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, gateway.ErrGateway):
		h.writeError(w, r, http.StatusBadGateway, err)
	default:
		h.config.Logger.Error("request failed",
			subscription.Field{Key: "path", Value: r.URL.Path},
			subscription.Field{Key: "error", Value: err.Error()},
		)
		h.writeError(w, r, http.StatusInternalServerError, fmt.Errorf("internal error"))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	if h.config.OnError != nil {
		h.config.OnError(w, r, err)
		return
	}
	h.writeJSON(w, statusCode, ErrorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Response already committed, nothing left to do
		_ = err
	}
}
