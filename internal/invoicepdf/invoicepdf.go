// Package invoicepdf lays invoice documents out as A4 PDFs.
package invoicepdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"github.com/xenking/cemention/internal/domain/invoice"
	"github.com/xenking/cemention/internal/domain/order"
	"github.com/xenking/cemention/internal/domain/product"
	"github.com/xenking/cemention/internal/domain/user"
)

const (
	pageWidth   = 210.0
	margin      = 15.0
	contentW    = pageWidth - 2*margin
	lineHeight  = 5.5
	currencyTag = "Rs. "
)

// Column widths of the items table, in mm.
var columns = []struct {
	title string
	width float64
	align string
}{
	{"S.No", 12, "C"},
	{"Product", 50, "L"},
	{"Grade", 28, "C"},
	{"Qty (bags)", 25, "R"},
	{"Price/bag", 30, "R"},
	{"Amount", 35, "R"},
}

// Writer renders invoice documents with the core PDF fonts. Output is
// deterministic for a given document: creation and modification dates are
// taken from the invoice date.
type Writer struct{}

// NewWriter creates a Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write lays doc out and writes the PDF to w.
func (wr *Writer) Write(w io.Writer, doc *invoice.Document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetCreationDate(doc.Date)
	pdf.SetModificationDate(doc.Date)
	pdf.SetCatalogSort(true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(tr(doc.Title+" "+doc.Number), false)
	pdf.SetAuthor(tr(doc.Issuer.Name), false)
	pdf.SetCreator("cemention", false)
	pdf.AddPage()

	// Title.
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(contentW, 12, tr(doc.Title), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	// Issuer.
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, lineHeight+1, tr(doc.Issuer.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{
		doc.Issuer.Address,
		labeled("GSTIN", doc.Issuer.TaxID),
		labeled("Phone", doc.Issuer.Phone),
		labeled("Email", doc.Issuer.Email),
	} {
		if line != "" {
			pdf.CellFormat(contentW, lineHeight, tr(line), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(4)

	// Invoice details grid.
	pdf.SetFillColor(248, 250, 252)
	detail := func(label, value string, ln int) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(35, 8, tr(label), "1", 0, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(contentW/2-35, 8, tr(value), "1", ln, "L", false, 0, "")
	}
	detail("Invoice No:", doc.Number, 0)
	detail("Date:", doc.Date.Format("02-Jan-2006"), 1)
	detail("Customer Type:", doc.Buyer.Role, 0)
	detail("Payment Method:", doc.PaymentMethod, 1)
	pdf.Ln(5)

	// Bill to.
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 7, "Bill To:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	addr := doc.DeliveryAddress
	for _, line := range []string{
		doc.Buyer.Name,
		doc.Buyer.BusinessName,
		labeled("GSTIN", doc.Buyer.TaxID),
		joinNonEmpty(", ", addr.Street, addr.City),
		joinNonEmpty(" - ", addr.State, addr.Pincode),
		labeled("Phone", doc.Buyer.Phone),
	} {
		if line != "" {
			pdf.CellFormat(contentW, lineHeight, tr(line), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(4)

	// Items.
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 7, "Order Details:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(15, 23, 42)
	pdf.SetTextColor(255, 255, 255)
	for _, c := range columns {
		pdf.CellFormat(c.width, 8, c.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(248, 250, 252)
	for i, row := range doc.Rows {
		cells := []string{
			strconv.Itoa(row.No),
			row.Brand,
			row.Grade,
			strconv.Itoa(row.Quantity),
			money(row.UnitPrice),
			money(row.Amount),
		}
		fill := i%2 == 1
		for j, c := range columns {
			pdf.CellFormat(c.width, 7, tr(cells[j]), "1", 0, c.align, fill, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(2)

	// Totals, right aligned under the amount column.
	labelW := columns[4].width + 20
	amountW := columns[5].width
	offset := contentW - labelW - amountW
	for _, line := range doc.Totals {
		style, border := "", ""
		if line.Grand {
			style, border = "B", "T"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(offset, 7, "", "", 0, "", false, 0, "")
		pdf.CellFormat(labelW, 7, tr(line.Label+":"), border, 0, "R", false, 0, "")
		pdf.CellFormat(amountW, 7, tr(money(line.Amount)), border, 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	if notes := warningNotes(doc.Warnings); len(notes) > 0 {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(220, 38, 38)
		for _, note := range notes {
			pdf.MultiCell(contentW, lineHeight, tr(note), "", "L", false)
		}
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)
	}

	// Payment banner.
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(35, 7, "Payment Status:", "", 0, "L", false, 0, "")
	if doc.Paid {
		pdf.SetTextColor(22, 163, 74)
	} else {
		pdf.SetTextColor(234, 179, 8)
	}
	pdf.CellFormat(contentW-35, 7, tr(doc.PaymentStatus), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	if doc.TransactionRef != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(contentW, lineHeight, tr(labeled("Transaction ID", doc.TransactionRef)), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	// Driver.
	if d := doc.Driver; d != nil {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(contentW, 7, "Delivery Details:", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(contentW, lineHeight, tr(labeled("DRIVER NAME", d.Name)), "", 1, "L", false, 0, "")
		pdf.CellFormat(contentW, lineHeight, tr(labeled("MOBILE", d.Mobile)), "", 1, "L", false, 0, "")
		pdf.CellFormat(contentW, lineHeight, tr(labeled("VEHICLE", d.Vehicle)), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(contentW, lineHeight, tr(labeled("Delivery Status", d.Status)), "", 1, "L", false, 0, "")
		pdf.Ln(3)
	}

	// Terms.
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 7, "Terms & Conditions:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for i, term := range doc.Terms {
		pdf.MultiCell(contentW, lineHeight, tr(fmt.Sprintf("%d. %s", i+1, term)), "", "L", false)
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW, lineHeight, "Thank you for your business!", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	footer := joinNonEmpty(" | ", doc.Issuer.Name, doc.Issuer.Phone, doc.Issuer.Email, doc.Issuer.Website)
	pdf.CellFormat(contentW, lineHeight, tr(footer), "", 1, "C", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return errors.Wrap(err, "write pdf")
	}
	return nil
}

// Renderer produces PDF invoices for paid orders. It satisfies
// order.InvoiceRenderer.
type Renderer struct {
	docs   *invoice.Renderer
	writer *Writer
}

var _ order.InvoiceRenderer = (*Renderer)(nil)

// NewRenderer creates a Renderer.
func NewRenderer(docs *invoice.Renderer, writer *Writer) *Renderer {
	return &Renderer{docs: docs, writer: writer}
}

// RenderInvoice builds the invoice document for o and returns it as PDF bytes.
func (r *Renderer) RenderInvoice(ctx context.Context, o *order.Order, buyer *user.User, products []product.Product) ([]byte, error) {
	doc, err := r.docs.Render(ctx, o, buyer, products)
	if err != nil {
		return nil, errors.Wrap(err, "build invoice")
	}
	var buf bytes.Buffer
	if err := r.writer.Write(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func warningNotes(warnings []string) []string {
	notes := make([]string, 0, len(warnings))
	for _, w := range warnings {
		notes = append(notes, "Note: "+w+".")
	}
	return notes
}

func money(d decimal.Decimal) string {
	return currencyTag + d.StringFixed(2)
}

func labeled(label, value string) string {
	if value == "" {
		return ""
	}
	return label + ": " + value
}

func joinNonEmpty(sep string, parts ...string) string {
	var out string
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += sep
		}
		out += p
	}
	return out
}
