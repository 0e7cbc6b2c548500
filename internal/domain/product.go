package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string
	Name        string
	Description string
	SKU         string
	Price       decimal.Decimal
	Stock       int
	TaxRate     decimal.Decimal
	CompanyID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StockCheck pairs a product with the total quantity requested of it.
type StockCheck struct {
	Product   Product
	Requested int
}

func (c StockCheck) Sufficient() bool {
	return c.Product.HasAvailable(c.Requested)
}

// HasAvailable reports whether the product can cover quantity units.
func (p Product) HasAvailable(quantity int) bool {
	return p.Stock >= quantity
}
