package service

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/phpdave11/gofpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/hkhalili/shopflow/internal/models"
)

// InvoicePDFRenderer writes invoice PDFs with an embedded QR code of the
// invoice number, so a printed copy can be looked up by scanning.
type InvoicePDFRenderer struct {
	dir string
}

// NewInvoicePDFRenderer creates a renderer writing into dir
func NewInvoicePDFRenderer(dir string) *InvoicePDFRenderer {
	return &InvoicePDFRenderer{dir: dir}
}

// Render writes the PDF file and returns its path
func (r *InvoicePDFRenderer) Render(invoice *models.Invoice, items []*models.InvoiceItem) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create invoice directory: %w", err)
	}

	qrPNG, err := qrcode.Encode(invoice.InvoiceNumber, qrcode.Medium, 256)

	if err != nil {
		return "", fmt.Errorf("failed to generate invoice QR code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Invoice "+invoice.InvoiceNumber)
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Order: %s", invoice.OrderID))
	pdf.Ln(6)
	pdf.Cell(0, 8, fmt.Sprintf("Date: %s", invoice.CreatedAt.Format("2006-01-02 15:04")))
	pdf.Ln(6)
	pdf.Cell(0, 8, fmt.Sprintf("Phone: %s", invoice.PhoneNumber))
	pdf.Ln(6)

	if invoice.ShippingAddress != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Ship to: %s", invoice.ShippingAddress))
		pdf.Ln(6)
	}

	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(90, 8, "Item", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 8, "SKU", "1", 0, "L", false, 0, "")
	pdf.CellFormat(20, 8, "Qty", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, "Price", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 11)

	for _, item := range items {
		pdf.CellFormat(90, 8, item.ProductTitle, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 8, item.ProductSKU, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 8, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 8, fmt.Sprintf("%d", item.TotalPrice()), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(140, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, fmt.Sprintf("%d %s", invoice.TotalAmount, invoice.Currency), "1", 1, "R", false, 0, "")

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 160, 10, 35, 35, false, imageOpts, 0, "")

	path := filepath.Join(r.dir, invoice.InvoiceNumber+".pdf")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return "", fmt.Errorf("failed to render invoice PDF: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write invoice PDF: %w", err)
	}

	return path, nil
}
