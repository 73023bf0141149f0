package gateways

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hkhalili/shopflow/internal/models"
)

var (
	// ErrUnknownGateway means a gateway name with no registration; this is
	// a configuration error, not a user error.
	ErrUnknownGateway = errors.New("unknown payment gateway")

	// ErrGatewayCommunication wraps network or provider infrastructure
	// failures. The reconciliation layer records a FAILED transaction
	// before surfacing it.
	ErrGatewayCommunication = errors.New("gateway communication failure")
)

// CallbackData carries the provider callback parameters for verification
type CallbackData struct {
	Authority string `json:"authority"`
	Status    string `json:"status"`
}

// RequestResult is the outcome of a payment request call. A provider
// decline is a result with Success=false, not an error; errors are
// reserved for infrastructure failures.
type RequestResult struct {
	Success         bool
	Authority       string
	PaymentURL      string
	RequiresReceipt bool
	ProviderStatus  string
	ErrorMessage    string
	RawRequest      []byte
	RawResponse     []byte
}

// VerifyResult is the outcome of a verification call
type VerifyResult struct {
	Success        bool
	Canceled       bool
	RefID          string
	ProviderStatus string
	ErrorMessage   string
	RawRequest     []byte
	RawResponse    []byte
}

// Gateway is the uniform capability set every payment provider implements.
// Gateways are pure provider adapters: they never touch the database, the
// reconciliation service owns all persistence.
type Gateway interface {
	Name() string
	RequestPayment(ctx context.Context, order *models.Order, payment *models.Payment) (*RequestResult, error)
	VerifyPayment(ctx context.Context, payment *models.Payment, data CallbackData) (*VerifyResult, error)
	PaymentURL(authority string) string
}

// Registry resolves gateways by name. It is constructed at startup and
// passed by reference so tests stay hermetic; there is no package-level
// registration.
type Registry struct {
	mu          sync.RWMutex
	gateways    map[string]Gateway
	defaultName string
}

// NewRegistry creates a registry with the given default gateway name
func NewRegistry(defaultName string) *Registry {
	return &Registry{
		gateways:    make(map[string]Gateway),
		defaultName: defaultName,
	}
}

// Register adds a gateway under its own name
func (r *Registry) Register(g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[g.Name()] = g
}

// Get resolves a gateway by name; an empty name resolves the default
func (r *Registry) Get(name string) (Gateway, error) {
	if name == "" {
		name = r.defaultName
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, name)
	}

	return g, nil
}
