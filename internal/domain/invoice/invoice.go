// Package invoice projects a paid order onto the fixed layout of a tax
// invoice. The invoice prints the totals stored on the order; they are also
// recomputed from the line items and any difference is reported as a warning.
package invoice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/cemention/internal/domain/order"
	"github.com/xenking/cemention/internal/domain/pricing"
	"github.com/xenking/cemention/internal/domain/product"
	"github.com/xenking/cemention/internal/domain/user"
)

// Title is printed at the top of every invoice.
const Title = "TAX INVOICE"

// Issuer is the selling company.
type Issuer struct {
	Name    string
	Address string
	TaxID   string
	Phone   string
	Email   string
	Website string
}

// Buyer is the bill-to block.
type Buyer struct {
	Name         string
	BusinessName string
	Role         string
	Phone        string
	// TaxID is set only for tax registered buyers.
	TaxID string
}

// Row is one itemized line.
type Row struct {
	No        int
	Brand     string
	Grade     string
	Quantity  int
	UnitPrice decimal.Decimal
	Amount    decimal.Decimal
}

// TotalLine is one line of the totals block.
type TotalLine struct {
	Label  string
	Amount decimal.Decimal
	Grand  bool
}

// Driver is the dispatch block.
type Driver struct {
	Name    string
	Mobile  string
	Vehicle string
	Status  string
}

// Document is the complete invoice content in print order. Breakdown holds
// the totals stored on the order.
type Document struct {
	Title           string
	Number          string
	Date            time.Time
	Issuer          Issuer
	Buyer           Buyer
	DeliveryAddress order.Address
	PaymentMethod   string
	Rows            []Row
	Totals          []TotalLine
	Breakdown       pricing.Breakdown
	PaymentStatus   string
	Paid            bool
	TransactionRef  string
	Driver          *Driver
	Terms           []string
	// Warnings lists data integrity problems found while rendering, such as
	// stored totals that differ from the recomputed ones.
	Warnings []string
}

// Renderer builds invoice documents.
type Renderer struct {
	issuer  Issuer
	pricing *pricing.Engine
	minQty  int
}

// NewRenderer creates a Renderer. minQty is quoted in the terms.
func NewRenderer(issuer Issuer, engine *pricing.Engine, minQty int) *Renderer {
	return &Renderer{issuer: issuer, pricing: engine, minQty: minQty}
}

// Render projects o onto a Document. products supplies brand and grade for
// the rows; lines whose product left the catalog print the product id.
func (r *Renderer) Render(ctx context.Context, o *order.Order, buyer *user.User, products []product.Product) (*Document, error) {
	if o == nil || buyer == nil {
		return nil, errors.New("order and buyer are required")
	}
	if len(o.Items) == 0 {
		return nil, errors.Errorf("order %s has no items", o.ID)
	}

	catalog := make(map[string]product.Product, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}

	doc := &Document{
		Title:  Title,
		Number: o.Number(),
		Date:   o.CreatedAt,
		Issuer: r.issuer,
		Buyer: Buyer{
			Name:         buyer.Name,
			BusinessName: buyer.BusinessName,
			Role:         buyer.Role.Title(),
			Phone:        buyer.Phone,
		},
		DeliveryAddress: o.DeliveryAddress,
		PaymentMethod:   strings.ToUpper(string(o.PaymentMethod)),
		PaymentStatus:   strings.ToUpper(string(o.PaymentStatus)),
		Paid:            o.PaymentStatus == order.PaymentReceived,
		TransactionRef:  o.TransactionRef,
		Terms:           r.terms(),
	}
	if buyer.TaxRegistered {
		doc.Buyer.TaxID = buyer.TaxID
	}

	for i, item := range o.Items {
		row := Row{
			No:        i + 1,
			Brand:     item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Amount:    item.Amount().Round(2),
		}
		if p, ok := catalog[item.ProductID]; ok {
			row.Brand = p.Brand
			row.Grade = p.Grade
		}
		doc.Rows = append(doc.Rows, row)
	}

	// The buyer's registration may have changed since the order was placed;
	// the stored amounts are what was charged.
	doc.Breakdown = o.Totals()
	doc.Totals = r.totals(doc.Breakdown, buyer.TaxRegistered || !doc.Breakdown.Tax.IsZero())
	doc.Warnings = compareTotals(doc.Breakdown, r.pricing.Price(o.Items, buyer, o.PaymentMethod))
	if len(doc.Warnings) > 0 {
		zctx.From(ctx).Warn("Invoice totals differ from stored order totals",
			zap.String("order_id", o.ID),
			zap.Strings("warnings", doc.Warnings),
		)
	}

	if o.Driver != nil {
		doc.Driver = &Driver{
			Name:    strings.ToUpper(o.Driver.Name),
			Mobile:  o.Driver.Mobile,
			Vehicle: o.Driver.Vehicle,
			Status:  statusLabel(string(o.DeliveryStatus)),
		}
	}
	return doc, nil
}

func (r *Renderer) totals(b pricing.Breakdown, showTax bool) []TotalLine {
	lines := []TotalLine{{Label: "Subtotal", Amount: b.Subtotal}}
	if showTax {
		lines = append(lines, TotalLine{Label: fmt.Sprintf("GST @ %s%%", percent(r.pricing.TaxRate())), Amount: b.Tax})
	}
	if !b.Surcharge.IsZero() {
		lines = append(lines, TotalLine{Label: fmt.Sprintf("Card surcharge (%s%%)", percent(r.pricing.SurchargeRate())), Amount: b.Surcharge})
	}
	return append(lines, TotalLine{Label: "Total amount", Amount: b.Total, Grand: true})
}

func (r *Renderer) terms() []string {
	terms := []string{
		fmt.Sprintf("Minimum order quantity is %d bags.", r.minQty),
		"Orders cannot be cancelled once payment is initiated.",
		"Delivery within 3-5 business days.",
	}
	if r.issuer.Phone != "" {
		terms = append(terms, "For queries, contact: "+r.issuer.Phone)
	}
	return terms
}

func compareTotals(stored, recomputed pricing.Breakdown) []string {
	var warnings []string
	check := func(name string, s, c decimal.Decimal) {
		if !s.Round(2).Equal(c.Round(2)) {
			warnings = append(warnings, fmt.Sprintf("stored %s %s differs from recomputed %s", name, s.StringFixed(2), c.StringFixed(2)))
		}
	}
	check("subtotal", stored.Subtotal, recomputed.Subtotal)
	check("tax", stored.Tax, recomputed.Tax)
	check("surcharge", stored.Surcharge, recomputed.Surcharge)
	check("total", stored.Total, recomputed.Total)
	return warnings
}

func percent(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).String()
}

// statusLabel turns "out_for_delivery" into "Out for delivery".
func statusLabel(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
