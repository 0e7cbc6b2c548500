package dto

import "time"

type InvoiceItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CreateInvoiceRequest struct {
	ClientID  string               `json:"clientId"`
	CompanyID string               `json:"companyId"`
	Items     []InvoiceItemRequest `json:"items"`
	Status    *string              `json:"status,omitempty"`
	DueDate   *time.Time           `json:"dueDate,omitempty"`
}

type UpdateInvoiceRequest struct {
	Items    []InvoiceItemRequest `json:"items,omitempty"`
	Status   *string              `json:"status,omitempty"`
	ClientID *string              `json:"clientId,omitempty"`
	DueDate  *time.Time           `json:"dueDate,omitempty"`
}
