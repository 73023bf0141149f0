package service

import (
	"context"
	"fmt"

	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/pkg/logger"
)

// InvoiceStore is the slice of invoice persistence the generator needs.
// Create owns the sequence advance and the idempotency guard.
type InvoiceStore interface {
	GetByOrderID(ctx context.Context, orderID string) (*models.Invoice, error)
	GetItems(ctx context.Context, invoiceID string) ([]*models.InvoiceItem, error)
	Create(ctx context.Context, invoice *models.Invoice, items []*models.InvoiceItem) (*models.Invoice, error)
	SetPDFPath(ctx context.Context, invoiceID, path string) error
}

// OrderReader is the read-only order surface invoice generation copies from
type OrderReader interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetItems(ctx context.Context, orderID string) ([]*models.OrderItem, error)
	GetShippingInfo(ctx context.Context, orderID string) (*models.ShippingInfo, error)
}

// InvoiceService generates the immutable invoice snapshot for an order
// after its payment completes. Generation is idempotent per order; the
// PDF artifact is rendered best effort and never blocks the snapshot.
type InvoiceService struct {
	invoices InvoiceStore
	orders   OrderReader
	products ProductStore
	renderer *InvoicePDFRenderer
	logger   logger.Logger
}

// NewInvoiceService creates a new InvoiceService. The renderer may be nil
// to disable PDF generation.
func NewInvoiceService(
	invoices InvoiceStore,
	orders OrderReader,
	products ProductStore,
	renderer *InvoicePDFRenderer,
	logger logger.Logger,
) *InvoiceService {
	return &InvoiceService{
		invoices: invoices,
		orders:   orders,
		products: products,
		renderer: renderer,
		logger:   logger,
	}
}

// GenerateForOrder produces the invoice snapshot for an order. If an
// invoice already exists it is returned unchanged, so a repeated payment
// completion signal never double-creates.
func (s *InvoiceService) GenerateForOrder(ctx context.Context, orderID string) (*models.Invoice, error) {
	existing, err := s.invoices.GetByOrderID(ctx, orderID)

	if err == nil {
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	order, err := s.orders.GetByID(ctx, orderID)

	if err != nil {
		return nil, fmt.Errorf("failed to load order for invoice: %w", err)
	}

	orderItems, err := s.orders.GetItems(ctx, orderID)

	if err != nil {
		return nil, fmt.Errorf("failed to load order items for invoice: %w", err)
	}

	shipping, err := s.orders.GetShippingInfo(ctx, orderID)

	if err != nil && !isNotFound(err) {
		return nil, err
	}

	items, err := s.snapshotItems(ctx, orderItems)

	if err != nil {
		return nil, err
	}

	invoice := &models.Invoice{
		ID:          models.GenerateID("inv"),
		OrderID:     order.ID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		PhoneNumber: order.PhoneNumber,
		CreatedAt:   models.GetCurrentTime(),
	}

	if shipping != nil {
		invoice.ShippingAddress = fmt.Sprintf("%s, %s, %s", shipping.Province, shipping.City, shipping.Address)
	}

	created, err := s.invoices.Create(ctx, invoice, items)

	if err != nil {
		return nil, err
	}

	s.logger.Info("Invoice generated",
		"invoiceID", created.ID,
		"invoiceNumber", created.InvoiceNumber,
		"orderID", order.ID)

	s.renderPDF(ctx, created, items)

	return created, nil
}

// snapshotItems copies order items into invoice items, freezing the
// product title and SKU as they are right now.
func (s *InvoiceService) snapshotItems(ctx context.Context, orderItems []*models.OrderItem) ([]*models.InvoiceItem, error) {
	ids := make([]string, 0, len(orderItems))
	for _, oi := range orderItems {
		ids = append(ids, oi.ProductID)
	}

	products, err := s.products.GetByIDs(ctx, ids)

	if err != nil {
		return nil, fmt.Errorf("failed to load products for invoice snapshot: %w", err)
	}

	byID := make(map[string]*models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]*models.InvoiceItem, 0, len(orderItems))

	for _, oi := range orderItems {
		item := &models.InvoiceItem{
			Quantity: oi.Quantity,
			Price:    oi.Price,
		}

		if p, ok := byID[oi.ProductID]; ok {
			item.ProductTitle = p.Title
			item.ProductSKU = p.SKU
		} else {
			// Product row was deleted since ordering; keep the line with
			// the frozen price so the invoice still balances.
			item.ProductTitle = "(removed product)"
			item.ProductSKU = oi.ProductID
		}

		items = append(items, item)
	}

	return items, nil
}

func (s *InvoiceService) renderPDF(ctx context.Context, invoice *models.Invoice, items []*models.InvoiceItem) {
	if s.renderer == nil {
		return
	}

	path, err := s.renderer.Render(invoice, items)

	if err != nil {
		s.logger.Warn("Invoice PDF rendering failed", "error", err, "invoiceID", invoice.ID)
		return
	}

	if err := s.invoices.SetPDFPath(ctx, invoice.ID, path); err != nil {
		s.logger.Warn("Failed to record invoice PDF path", "error", err, "invoiceID", invoice.ID)
		return
	}

	invoice.PDFPath = &path
}

// GetInvoice retrieves the invoice for an order with its line items
func (s *InvoiceService) GetInvoice(ctx context.Context, orderID string) (*models.Invoice, []*models.InvoiceItem, error) {
	invoice, err := s.invoices.GetByOrderID(ctx, orderID)

	if err != nil {
		return nil, nil, err
	}

	items, err := s.invoices.GetItems(ctx, invoice.ID)

	if err != nil {
		return nil, nil, err
	}

	return invoice, items, nil
}
