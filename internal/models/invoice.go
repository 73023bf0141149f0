package models

import (
	"fmt"
	"time"
)

// InvoiceNumberPrefix is the constant tag on human-readable invoice numbers
const InvoiceNumberPrefix = "INV"

// Invoice is an immutable financial snapshot of an order, created exactly
// once when its first payment completes.
type Invoice struct {
	ID              string      `db:"id" json:"id"`
	OrderID         string      `db:"order_id" json:"order_id"`
	InvoiceNumber   string      `db:"invoice_number" json:"invoice_number"`
	Status          OrderStatus `db:"status" json:"status"`
	TotalAmount     int64       `db:"total_amount" json:"total_amount"`
	Currency        string      `db:"currency" json:"currency"`
	ShippingAddress string      `db:"shipping_address" json:"shipping_address"`
	PhoneNumber     string      `db:"phone_number" json:"phone_number"`
	PDFPath         *string     `db:"pdf_path" json:"pdf_path,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
}

// InvoiceItem is copied from an OrderItem at generation time so later
// product edits never alter historical invoices.
type InvoiceItem struct {
	ID           int64  `db:"id" json:"id"`
	InvoiceID    string `db:"invoice_id" json:"invoice_id"`
	ProductTitle string `db:"product_title" json:"product_title"`
	ProductSKU   string `db:"product_sku" json:"product_sku"`
	Quantity     int    `db:"quantity" json:"quantity"`
	Price        int64  `db:"price" json:"price"`
}

// TotalPrice returns quantity times the snapshot unit price
func (i *InvoiceItem) TotalPrice() int64 {
	return int64(i.Quantity) * i.Price
}

// FormatInvoiceNumber renders a sequence value as a zero-padded invoice number
func FormatInvoiceNumber(seq int64) string {
	return fmt.Sprintf("%s%06d", InvoiceNumberPrefix, seq)
}
