package service

import (
	"context"

	"facturador/internal/domain"
	"facturador/internal/dto"
	"facturador/internal/pricing"
)

type Repository interface {
	FindByIDsAndCompany(ctx context.Context, ids []string, companyID string) ([]domain.Product, error)
}

type ProductService struct {
	repo Repository
}

func NewService(repo Repository) *ProductService {
	return &ProductService{repo: repo}
}

// GetProductsByIDsAndCompany returns the company's products among ids and the
// ids that matched nothing, in request order.
func (s *ProductService) GetProductsByIDsAndCompany(ctx context.Context, ids []string, companyID string) ([]domain.Product, []string, error) {
	found, err := s.repo.FindByIDsAndCompany(ctx, ids, companyID)
	if err != nil {
		return nil, nil, err
	}

	foundSet := make(map[string]struct{}, len(found))
	for _, p := range found {
		foundSet[p.ID] = struct{}{}
	}

	var notFoundIDs []string
	for _, id := range ids {
		if _, ok := foundSet[id]; !ok {
			notFoundIDs = append(notFoundIDs, id)
		}
	}

	return found, notFoundIDs, nil
}

// CheckAvailability sums the quantities of lines per product and compares
// each total with the product's current stock. It reads without locking, so
// the answer is advisory: the invoice write re-checks under row locks.
func (s *ProductService) CheckAvailability(ctx context.Context, companyID string, lines []dto.InvoiceLine) ([]domain.StockCheck, []string, error) {
	requested, order := pricing.Aggregate(lines)

	found, notFoundIDs, err := s.GetProductsByIDsAndCompany(ctx, order, companyID)
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[string]domain.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	checks := make([]domain.StockCheck, 0, len(found))
	for _, id := range order {
		if p, ok := byID[id]; ok {
			checks = append(checks, domain.StockCheck{Product: p, Requested: requested[id]})
		}
	}

	return checks, notFoundIDs, nil
}
