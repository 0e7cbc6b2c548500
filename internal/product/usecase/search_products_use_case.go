package usecase

import (
	"context"

	"facturador/internal/domain"
	"facturador/internal/dto"
)

type Service interface {
	GetProductsByIDsAndCompany(ctx context.Context, ids []string, companyID string) (found []domain.Product, notFoundIDs []string, err error)
	CheckAvailability(ctx context.Context, companyID string, lines []dto.InvoiceLine) (checks []domain.StockCheck, notFoundIDs []string, err error)
}

type ProductUseCase struct {
	service Service
}

func NewProductUseCase(service Service) *ProductUseCase {
	return &ProductUseCase{service: service}
}

func (uc *ProductUseCase) SearchProducts(ctx context.Context, req dto.SearchProductsRequest) (*dto.SearchProductsResponse, error) {
	found, notFoundIDs, err := uc.service.GetProductsByIDsAndCompany(ctx, req.ProductIDs, req.CompanyID)
	if err != nil {
		return nil, err
	}

	products := make([]dto.ProductDTO, 0, len(found))
	for _, p := range found {
		products = append(products, toProductDTO(p))
	}

	return &dto.SearchProductsResponse{
		Products: products,
		NotFound: nonNil(notFoundIDs),
	}, nil
}

// CheckAvailability reports, per product, whether the requested lines fit in
// current stock. Available is false when any product is short or unknown.
func (uc *ProductUseCase) CheckAvailability(ctx context.Context, req dto.CheckAvailabilityRequest) (*dto.CheckAvailabilityResponse, error) {
	lines := make([]dto.InvoiceLine, len(req.Items))
	for i, it := range req.Items {
		lines[i] = dto.InvoiceLine{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	checks, notFoundIDs, err := uc.service.CheckAvailability(ctx, req.CompanyID, lines)
	if err != nil {
		return nil, err
	}

	resp := &dto.CheckAvailabilityResponse{
		Available: len(notFoundIDs) == 0,
		Items:     make([]dto.StockCheckDTO, 0, len(checks)),
		NotFound:  nonNil(notFoundIDs),
	}
	for _, c := range checks {
		sufficient := c.Sufficient()
		if !sufficient {
			resp.Available = false
		}
		resp.Items = append(resp.Items, dto.StockCheckDTO{
			ProductID:  c.Product.ID,
			Name:       c.Product.Name,
			Stock:      c.Product.Stock,
			Requested:  c.Requested,
			Sufficient: sufficient,
		})
	}

	return resp, nil
}

func toProductDTO(p domain.Product) dto.ProductDTO {
	return dto.ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		SKU:         p.SKU,
		Price:       p.Price.StringFixed(2),
		TaxRate:     p.TaxRate.String(),
		Stock:       p.Stock,
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
