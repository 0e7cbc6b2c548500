package dto

type SearchProductsRequest struct {
	CompanyID  string   `json:"companyId"`
	ProductIDs []string `json:"productIds"`
}

type SearchProductsResponse struct {
	Products []ProductDTO `json:"products"`
	NotFound []string     `json:"notFound"`
}

type ProductDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SKU         string `json:"sku"`
	Price       string `json:"price"`
	TaxRate     string `json:"taxRate"`
	Stock       int    `json:"stock"`
}

// CheckAvailabilityRequest asks whether invoice lines would currently fit in
// stock. Lines use the same shape as invoice items.
type CheckAvailabilityRequest struct {
	CompanyID string               `json:"companyId"`
	Items     []InvoiceItemRequest `json:"items"`
}

type StockCheckDTO struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	Stock      int    `json:"stock"`
	Requested  int    `json:"requested"`
	Sufficient bool   `json:"sufficient"`
}

type CheckAvailabilityResponse struct {
	Available bool            `json:"available"`
	Items     []StockCheckDTO `json:"items"`
	NotFound  []string        `json:"notFound"`
}
