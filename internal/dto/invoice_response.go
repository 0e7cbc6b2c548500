package dto

import "time"

type InvoiceResponse struct {
	TraceID   string                `json:"traceId,omitempty"`
	ID        string                `json:"id"`
	Status    string                `json:"status"`
	Subtotal  string                `json:"subtotal"`
	Tax       string                `json:"tax"`
	Total     string                `json:"total"`
	DueDate   *time.Time            `json:"dueDate,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
	Client    *ClientDTO            `json:"client,omitempty"`
	Company   *CompanyDTO           `json:"company,omitempty"`
	ClientID  string                `json:"clientId"`
	CompanyID string                `json:"companyId"`
	Items     []InvoiceItemResponse `json:"items"`
}

type InvoiceItemResponse struct {
	ID          string `json:"id"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
	Tax         string `json:"tax"`
	Total       string `json:"total"`
}

type ClientDTO struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
	TaxID   *string `json:"taxId,omitempty"`
}

type CompanyDTO struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	TaxID   string  `json:"taxId"`
	Address *string `json:"address,omitempty"`
	Email   *string `json:"email,omitempty"`
}

type InvoiceListResponse struct {
	TraceID  string            `json:"traceId"`
	Invoices []InvoiceResponse `json:"invoices"`
	Count    int               `json:"count"`
}

type ErrorResponse struct {
	TraceID   string        `json:"traceId"`
	Status    int           `json:"status"`
	Message   string        `json:"message"`
	Code      string        `json:"code"`
	Details   *ErrorDetails `json:"details,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// ErrorDetails is filled for stock rejections so clients can tell the user
// which product ran short and by how much.
type ErrorDetails struct {
	ProductID   string `json:"productId,omitempty"`
	ProductName string `json:"productName,omitempty"`
	Available   *int   `json:"available,omitempty"`
	Requested   *int   `json:"requested,omitempty"`
}
