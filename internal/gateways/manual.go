package gateways

import (
	"context"
	"encoding/json"

	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/pkg/logger"
)

// ManualStatusApproved is the callback status an administrator sets when
// accepting an uploaded receipt.
const ManualStatusApproved = "APPROVED"

// ManualGateway is the offline payment path: the customer uploads a bank
// receipt and an administrator approves it later. There is no provider
// round-trip; the order waits in AWAITING_VERIFICATION until approval.
type ManualGateway struct {
	logger logger.Logger
}

// NewManualGateway creates the manual/offline gateway
func NewManualGateway(logger logger.Logger) *ManualGateway {
	return &ManualGateway{logger: logger}
}

// Name returns the registry name of this gateway
func (g *ManualGateway) Name() string {
	return "manual"
}

// RequestPayment succeeds immediately and flags that a receipt upload is
// required instead of a redirect.
func (g *ManualGateway) RequestPayment(ctx context.Context, order *models.Order, payment *models.Payment) (*RequestResult, error) {
	rawRequest, _ := json.Marshal(map[string]interface{}{
		"order_id":   order.ID,
		"payment_id": payment.ID,
		"amount":     payment.Amount,
	})

	g.logger.Info("Manual payment requested, awaiting receipt",
		"orderID", order.ID,
		"paymentID", payment.ID)

	return &RequestResult{
		Success:         true,
		RequiresReceipt: true,
		ProviderStatus:  "AWAITING_RECEIPT",
		RawRequest:      rawRequest,
		RawResponse:     []byte(`{"status":"awaiting_receipt"}`),
	}, nil
}

// VerifyPayment succeeds only for the administrative approval status
func (g *ManualGateway) VerifyPayment(ctx context.Context, payment *models.Payment, data CallbackData) (*VerifyResult, error) {
	rawRequest, _ := json.Marshal(data)

	if data.Status != ManualStatusApproved {
		return &VerifyResult{
			Success:        false,
			ProviderStatus: data.Status,
			ErrorMessage:   "receipt was not approved",
			RawRequest:     rawRequest,
			RawResponse:    []byte(`{"approved":false}`),
		}, nil
	}

	return &VerifyResult{
		Success:        true,
		RefID:          payment.ID,
		ProviderStatus: ManualStatusApproved,
		RawRequest:     rawRequest,
		RawResponse:    []byte(`{"approved":true}`),
	}, nil
}

// PaymentURL is empty for manual payments; there is nowhere to redirect
func (g *ManualGateway) PaymentURL(authority string) string {
	return ""
}
