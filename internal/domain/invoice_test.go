package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestInvoiceStatus_Valid(t *testing.T) {
	tests := []struct {
		status InvoiceStatus
		valid  bool
	}{
		{InvoiceStatusDraft, true},
		{InvoiceStatusIssued, true},
		{InvoiceStatusPaid, true},
		{InvoiceStatusCancelled, true},
		{InvoiceStatus("CANCELED"), false},
		{InvoiceStatus("draft"), false},
		{InvoiceStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.Valid())
		})
	}
}

func TestInvoiceStatus_HoldsStock(t *testing.T) {
	assert.True(t, InvoiceStatusDraft.HoldsStock())
	assert.True(t, InvoiceStatusIssued.HoldsStock())
	assert.True(t, InvoiceStatusPaid.HoldsStock())
	assert.False(t, InvoiceStatusCancelled.HoldsStock())
}

func TestInvoice_Quantities(t *testing.T) {
	inv := Invoice{
		Items: []InvoiceItem{
			{ProductID: "a", Quantity: 2, Price: decimal.NewFromInt(100)},
			{ProductID: "b", Quantity: 1, Price: decimal.NewFromInt(50)},
			{ProductID: "a", Quantity: 3, Price: decimal.NewFromInt(100)},
		},
	}

	q := inv.Quantities()

	assert.Len(t, q, 2)
	assert.Equal(t, 5, q["a"])
	assert.Equal(t, 1, q["b"])
}

func TestInvoice_Quantities_Empty(t *testing.T) {
	assert.Empty(t, Invoice{}.Quantities())
}
