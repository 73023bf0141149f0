package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/pkg/circuitbreaker"
	"github.com/hkhalili/shopflow/pkg/logger"
)

const (
	zarinpalProductionURL    = "https://api.zarinpal.com/pg/v4/payment"
	zarinpalSandboxURL       = "https://sandbox.zarinpal.com/pg/v4/payment"
	zarinpalProductionPayURL = "https://www.zarinpal.com/pg/StartPay/"
	zarinpalSandboxPayURL    = "https://sandbox.zarinpal.com/pg/StartPay/"

	// provider result codes
	zarinpalCodeOK              = 100
	zarinpalCodeAlreadyVerified = 101
)

// ZarinpalConfig configures the Zarinpal gateway
type ZarinpalConfig struct {
	MerchantID      string
	CallbackBaseURL string
	Sandbox         bool
	Timeout         time.Duration
	BaseURL         string // overrides the provider URL, used by tests
}

// ZarinpalGateway talks to the Zarinpal payment provider REST API
type ZarinpalGateway struct {
	merchantID      string
	callbackBaseURL string
	baseURL         string
	payURL          string
	httpClient      *http.Client
	breaker         *circuitbreaker.CircuitBreaker
	logger          logger.Logger
}

// NewZarinpalGateway creates a Zarinpal gateway with a finite HTTP timeout
// and a circuit breaker around provider calls.
func NewZarinpalGateway(cfg ZarinpalConfig, logger logger.Logger) *ZarinpalGateway {
	baseURL := zarinpalProductionURL
	payURL := zarinpalProductionPayURL
	if cfg.Sandbox {
		baseURL = zarinpalSandboxURL
		payURL = zarinpalSandboxPayURL
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &ZarinpalGateway{
		merchantID:      cfg.MerchantID,
		callbackBaseURL: cfg.CallbackBaseURL,
		baseURL:         baseURL,
		payURL:          payURL,
		httpClient:      &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			HalfOpenMaxCalls: 2,
		}),
		logger: logger,
	}
}

// Name returns the registry name of this gateway
func (g *ZarinpalGateway) Name() string {
	return "zarinpal"
}

type zarinpalRequest struct {
	MerchantID  string            `json:"merchant_id"`
	Amount      int64             `json:"amount"`
	Description string            `json:"description"`
	CallbackURL string            `json:"callback_url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type zarinpalVerifyRequest struct {
	MerchantID string `json:"merchant_id"`
	Authority  string `json:"authority"`
	Amount     int64  `json:"amount"`
}

type zarinpalResponse struct {
	Data struct {
		Code      int    `json:"code"`
		Message   string `json:"message"`
		Authority string `json:"authority"`
		RefID     int64  `json:"ref_id"`
	} `json:"data"`
	Errors json.RawMessage `json:"errors,omitempty"`
}

// RequestPayment asks the provider for a payment authority
func (g *ZarinpalGateway) RequestPayment(ctx context.Context, order *models.Order, payment *models.Payment) (*RequestResult, error) {
	reqBody := zarinpalRequest{
		MerchantID:  g.merchantID,
		Amount:      payment.Amount,
		Description: fmt.Sprintf("Payment for order %s", order.ID),
		CallbackURL: fmt.Sprintf("%s/api/v1/payments/callback/%s/%s", g.callbackBaseURL, g.Name(), payment.ID),
		Metadata: map[string]string{
			"mobile":   order.PhoneNumber,
			"order_id": order.ID,
		},
	}

	rawRequest, _ := json.Marshal(reqBody)

	rawResponse, result, err := g.post(ctx, g.baseURL+"/request.json", rawRequest)

	if err != nil {
		return nil, err
	}

	if result.Data.Code != zarinpalCodeOK {
		return &RequestResult{
			Success:        false,
			ProviderStatus: strconv.Itoa(result.Data.Code),
			ErrorMessage:   providerMessage(result),
			RawRequest:     rawRequest,
			RawResponse:    rawResponse,
		}, nil
	}

	return &RequestResult{
		Success:        true,
		Authority:      result.Data.Authority,
		PaymentURL:     g.PaymentURL(result.Data.Authority),
		ProviderStatus: strconv.Itoa(result.Data.Code),
		RawRequest:     rawRequest,
		RawResponse:    rawResponse,
	}, nil
}

// VerifyPayment confirms a callback with the provider. A callback whose
// status flag is not OK means the user canceled; no provider round-trip
// is made for those.
func (g *ZarinpalGateway) VerifyPayment(ctx context.Context, payment *models.Payment, data CallbackData) (*VerifyResult, error) {
	if data.Status != "OK" {
		return &VerifyResult{
			Success:        false,
			Canceled:       true,
			ProviderStatus: data.Status,
			ErrorMessage:   "payment was canceled by user",
		}, nil
	}

	reqBody := zarinpalVerifyRequest{
		MerchantID: g.merchantID,
		Authority:  data.Authority,
		Amount:     payment.Amount,
	}

	rawRequest, _ := json.Marshal(reqBody)

	rawResponse, result, err := g.post(ctx, g.baseURL+"/verify.json", rawRequest)

	if err != nil {
		return nil, err
	}

	// 101 means this authority was verified on a previous call; the ref id
	// is still returned and the payment is settled.
	if result.Data.Code != zarinpalCodeOK && result.Data.Code != zarinpalCodeAlreadyVerified {
		return &VerifyResult{
			Success:        false,
			ProviderStatus: strconv.Itoa(result.Data.Code),
			ErrorMessage:   providerMessage(result),
			RawRequest:     rawRequest,
			RawResponse:    rawResponse,
		}, nil
	}

	return &VerifyResult{
		Success:        true,
		RefID:          strconv.FormatInt(result.Data.RefID, 10),
		ProviderStatus: strconv.Itoa(result.Data.Code),
		RawRequest:     rawRequest,
		RawResponse:    rawResponse,
	}, nil
}

// BreakerMetrics exposes the provider circuit breaker state
func (g *ZarinpalGateway) BreakerMetrics() map[string]interface{} {
	return g.breaker.GetMetrics()
}

// ResetBreaker forces the provider circuit breaker closed
func (g *ZarinpalGateway) ResetBreaker() {
	g.breaker.Reset()
}

// PaymentURL builds the redirect URL for a payment authority
func (g *ZarinpalGateway) PaymentURL(authority string) string {
	return g.payURL + authority
}

// post sends a JSON request to the provider behind the circuit breaker
func (g *ZarinpalGateway) post(ctx context.Context, url string, body []byte) ([]byte, *zarinpalResponse, error) {
	if !g.breaker.Allow() {
		return nil, nil, fmt.Errorf("%w: circuit breaker open", ErrGatewayCommunication)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))

	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrGatewayCommunication, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)

	if err != nil {
		g.breaker.Failure()

		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			g.logger.Error("Zarinpal request timed out", "url", url)
			return nil, nil, fmt.Errorf("%w: request timed out", ErrGatewayCommunication)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrGatewayCommunication, err)
	}
	defer resp.Body.Close()

	rawResponse, err := io.ReadAll(resp.Body)

	if err != nil {
		g.breaker.Failure()
		return nil, nil, fmt.Errorf("%w: failed to read response: %v", ErrGatewayCommunication, err)
	}

	if resp.StatusCode >= 500 {
		g.breaker.Failure()
		return nil, nil, fmt.Errorf("%w: provider returned %d", ErrGatewayCommunication, resp.StatusCode)
	}

	var result zarinpalResponse

	if err := json.Unmarshal(rawResponse, &result); err != nil {
		g.breaker.Failure()
		return nil, nil, fmt.Errorf("%w: failed to parse response: %v", ErrGatewayCommunication, err)
	}

	g.breaker.Success()
	return rawResponse, &result, nil
}

func providerMessage(r *zarinpalResponse) string {
	if r.Data.Message != "" {
		return r.Data.Message
	}
	return fmt.Sprintf("provider returned code %d", r.Data.Code)
}
