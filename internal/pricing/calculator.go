// Package pricing turns requested invoice lines into priced line items,
// checking each product's stock against the combined quantity requested.
package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"facturador/internal/domain"
	"facturador/internal/dto"
	apperrors "facturador/internal/errors"
	"facturador/internal/infrastructure/mysql"
)

// Amounts are kept at cent precision.
const moneyPlaces = 2

type ProductReader interface {
	FindByIDsForUpdate(ctx context.Context, tx mysql.Tx, ids []string, companyID string) ([]domain.Product, error)
}

type PricedLine struct {
	ProductID   string
	ProductName string
	Quantity    int
	Price       decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
}

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	Lines    []PricedLine
}

type Calculator struct {
	products ProductReader
}

func NewCalculator(products ProductReader) *Calculator {
	return &Calculator{products: products}
}

// Calculate prices lines against the company's current products. Products
// are read through tx with row locks; stock is never modified here.
func (c *Calculator) Calculate(ctx context.Context, tx mysql.Tx, companyID string, lines []dto.InvoiceLine) (*Totals, error) {
	products, err := c.lockAndCheck(ctx, tx, companyID, lines)
	if err != nil {
		return nil, err
	}
	return Price(products, lines), nil
}

// Check runs only the availability part of Calculate.
func (c *Calculator) Check(ctx context.Context, tx mysql.Tx, companyID string, lines []dto.InvoiceLine) error {
	_, err := c.lockAndCheck(ctx, tx, companyID, lines)
	return err
}

func (c *Calculator) lockAndCheck(ctx context.Context, tx mysql.Tx, companyID string, lines []dto.InvoiceLine) (map[string]domain.Product, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	requested, order := Aggregate(lines)

	found, err := c.products.FindByIDsForUpdate(ctx, tx, order, companyID)
	if err != nil {
		return nil, fmt.Errorf("reading products: %w", err)
	}

	products := make(map[string]domain.Product, len(found))
	for _, p := range found {
		products[p.ID] = p
	}

	for _, id := range order {
		if _, ok := products[id]; !ok {
			return nil, apperrors.NewProductNotFoundError(id)
		}
	}

	for _, id := range order {
		p := products[id]
		if !p.HasAvailable(requested[id]) {
			return nil, apperrors.NewInsufficientStockError(p.ID, p.Name, p.Stock, requested[id])
		}
	}

	return products, nil
}

// Aggregate sums quantities per product. order lists each product once, in
// the order it first appears.
func Aggregate(lines []dto.InvoiceLine) (requested map[string]int, order []string) {
	requested = make(map[string]int, len(lines))
	for _, l := range lines {
		if _, seen := requested[l.ProductID]; !seen {
			order = append(order, l.ProductID)
		}
		requested[l.ProductID] += l.Quantity
	}
	return requested, order
}

// Price computes line and aggregate amounts. Every product referenced by
// lines must be present in products.
func Price(products map[string]domain.Product, lines []dto.InvoiceLine) *Totals {
	totals := &Totals{
		Subtotal: decimal.Zero,
		Tax:      decimal.Zero,
		Lines:    make([]PricedLine, 0, len(lines)),
	}

	for _, l := range lines {
		p := products[l.ProductID]

		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		lineTax := lineTotal.Mul(p.TaxRate).Round(moneyPlaces)

		totals.Subtotal = totals.Subtotal.Add(lineTotal)
		totals.Tax = totals.Tax.Add(lineTax)
		totals.Lines = append(totals.Lines, PricedLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    l.Quantity,
			Price:       p.Price,
			Tax:         lineTax,
			Total:       lineTotal.Add(lineTax),
		})
	}

	totals.Total = totals.Subtotal.Add(totals.Tax)
	return totals
}

func validateLines(lines []dto.InvoiceLine) error {
	if len(lines) == 0 {
		return apperrors.NewValidationError("validation failed", apperrors.ValidationDetail{
			Field:   "items",
			Message: "items must not be empty",
		})
	}

	var details []apperrors.ValidationDetail
	for idx, l := range lines {
		if l.ProductID == "" {
			details = append(details, apperrors.ValidationDetail{
				Field:   fmt.Sprintf("items[%d].productId", idx),
				Message: "productId is required",
			})
		}
		if l.Quantity <= 0 {
			details = append(details, apperrors.ValidationDetail{
				Field:   fmt.Sprintf("items[%d].quantity", idx),
				Message: "quantity must be greater than zero",
			})
		}
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}
