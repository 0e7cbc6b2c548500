package dto

import (
	"time"

	"facturador/internal/domain"
)

// InvoiceLine is one requested (product, quantity) pair.
type InvoiceLine struct {
	ProductID string
	Quantity  int
}

type CreateInvoiceCommand struct {
	ClientID  string
	CompanyID string
	Items     []InvoiceLine
	Status    *domain.InvoiceStatus
	DueDate   *time.Time
}

// UpdateInvoiceCommand carries only the fields being changed. A nil Items
// leaves the current lines in place; a non-nil slice replaces them.
type UpdateInvoiceCommand struct {
	Items    []InvoiceLine
	Status   *domain.InvoiceStatus
	ClientID *string
	DueDate  *time.Time
}
