package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusIssued    InvoiceStatus = "ISSUED"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// HoldsStock is true for every status except CANCELLED: those invoices keep
// their item quantities subtracted from product stock.
func (s InvoiceStatus) HoldsStock() bool {
	return s != InvoiceStatusCancelled
}

type Invoice struct {
	ID        string
	ClientID  string
	CompanyID string
	Status    InvoiceStatus
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
	DueDate   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	Items   []InvoiceItem
	Client  *Client
	Company *Company
}

type InvoiceItem struct {
	ID        string
	InvoiceID string
	ProductID string
	Quantity  int
	Price     decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal

	Product *Product
}

// Quantities sums item quantities per product.
func (inv Invoice) Quantities() map[string]int {
	out := make(map[string]int, len(inv.Items))
	for _, it := range inv.Items {
		out[it.ProductID] += it.Quantity
	}
	return out
}
