package controller

import (
	"facturador/internal/domain"
	"facturador/internal/dto"
)

func toLines(items []dto.InvoiceItemRequest) []dto.InvoiceLine {
	lines := make([]dto.InvoiceLine, len(items))
	for i, it := range items {
		lines[i] = dto.InvoiceLine{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return lines
}

func toInvoiceResponse(traceID string, inv *domain.Invoice) dto.InvoiceResponse {
	resp := dto.InvoiceResponse{
		TraceID:   traceID,
		ID:        inv.ID,
		ClientID:  inv.ClientID,
		CompanyID: inv.CompanyID,
		Status:    string(inv.Status),
		Subtotal:  inv.Subtotal.StringFixed(2),
		Tax:       inv.Tax.StringFixed(2),
		Total:     inv.Total.StringFixed(2),
		DueDate:   inv.DueDate,
		CreatedAt: inv.CreatedAt,
		UpdatedAt: inv.UpdatedAt,
		Items:     make([]dto.InvoiceItemResponse, 0, len(inv.Items)),
	}

	if cl := inv.Client; cl != nil {
		resp.Client = &dto.ClientDTO{
			ID:      cl.ID,
			Name:    cl.Name,
			Email:   cl.Email,
			Phone:   cl.Phone,
			Address: cl.Address,
			TaxID:   cl.TaxID,
		}
	}
	if co := inv.Company; co != nil {
		resp.Company = &dto.CompanyDTO{
			ID:      co.ID,
			Name:    co.Name,
			TaxID:   co.TaxID,
			Address: co.Address,
			Email:   co.Email,
		}
	}

	for _, it := range inv.Items {
		item := dto.InvoiceItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price.StringFixed(2),
			Tax:       it.Tax.StringFixed(2),
			Total:     it.Total.StringFixed(2),
		}
		if it.Product != nil {
			item.ProductName = it.Product.Name
		}
		resp.Items = append(resp.Items, item)
	}

	return resp
}
