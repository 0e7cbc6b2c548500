package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturador/internal/domain"
	"facturador/internal/dto"
	apperrors "facturador/internal/errors"
	"facturador/internal/infrastructure/mysql"
)

type mockProductReader struct {
	FindByIDsForUpdateFunc func(ctx context.Context, tx mysql.Tx, ids []string, companyID string) ([]domain.Product, error)
}

func (m *mockProductReader) FindByIDsForUpdate(ctx context.Context, tx mysql.Tx, ids []string, companyID string) ([]domain.Product, error) {
	return m.FindByIDsForUpdateFunc(ctx, tx, ids, companyID)
}

func catalog(products ...domain.Product) *mockProductReader {
	return &mockProductReader{
		FindByIDsForUpdateFunc: func(ctx context.Context, tx mysql.Tx, ids []string, companyID string) ([]domain.Product, error) {
			var out []domain.Product
			for _, id := range ids {
				for _, p := range products {
					if p.ID == id && p.CompanyID == companyID {
						out = append(out, p)
					}
				}
			}
			return out, nil
		},
	}
}

func product(id, name, price string, stock int, taxRate string) domain.Product {
	return domain.Product{
		ID:        id,
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		TaxRate:   decimal.RequireFromString(taxRate),
		CompanyID: "company-1",
	}
}

func TestCalculate_SingleLine(t *testing.T) {
	calc := NewCalculator(catalog(product("a", "Product A", "100", 10, "0.19")))

	totals, err := calc.Calculate(context.Background(), nil, "company-1", []dto.InvoiceLine{
		{ProductID: "a", Quantity: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, "200.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "38.00", totals.Tax.StringFixed(2))
	assert.Equal(t, "238.00", totals.Total.StringFixed(2))
	require.Len(t, totals.Lines, 1)
	assert.Equal(t, "a", totals.Lines[0].ProductID)
	assert.Equal(t, 2, totals.Lines[0].Quantity)
	assert.Equal(t, "100.00", totals.Lines[0].Price.StringFixed(2))
	assert.Equal(t, "238.00", totals.Lines[0].Total.StringFixed(2))
}

func TestCalculate_MultipleProductsAndRounding(t *testing.T) {
	calc := NewCalculator(catalog(
		product("a", "Widget", "9.99", 10, "0.19"),
		product("b", "Service", "50", 999, "0"),
	))

	totals, err := calc.Calculate(context.Background(), nil, "company-1", []dto.InvoiceLine{
		{ProductID: "a", Quantity: 3},
		{ProductID: "b", Quantity: 1},
	})
	require.NoError(t, err)

	// 29.97 * 0.19 = 5.6943
	assert.Equal(t, "5.69", totals.Lines[0].Tax.StringFixed(2))
	assert.Equal(t, "35.66", totals.Lines[0].Total.StringFixed(2))
	assert.Equal(t, "0.00", totals.Lines[1].Tax.StringFixed(2))
	assert.Equal(t, "79.97", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "5.69", totals.Tax.StringFixed(2))
	assert.Equal(t, "85.66", totals.Total.StringFixed(2))
}

func TestCalculate_InsufficientStock(t *testing.T) {
	calc := NewCalculator(catalog(product("a", "Product A", "100", 5, "0.19")))

	_, err := calc.Calculate(context.Background(), nil, "company-1", []dto.InvoiceLine{
		{ProductID: "a", Quantity: 6},
	})

	ise, ok := apperrors.IsInsufficientStockError(err)
	require.True(t, ok, "expected InsufficientStockError, got %v", err)
	assert.Equal(t, "Product A", ise.ProductName)
	assert.Equal(t, 5, ise.Available)
	assert.Equal(t, 6, ise.Requested)
}

func TestCalculate_DuplicateLinesAreAggregated(t *testing.T) {
	calc := NewCalculator(catalog(product("a", "Product A", "100", 5, "0.19")))

	_, err := calc.Calculate(context.Background(), nil, "company-1", []dto.InvoiceLine{
		{ProductID: "a", Quantity: 3},
		{ProductID: "a", Quantity: 3},
	})

	ise, ok := apperrors.IsInsufficientStockError(err)
	require.True(t, ok)
	assert.Equal(t, 5, ise.Available)
	assert.Equal(t, 6, ise.Requested)
}

func TestCalculate_DuplicateLinesWithinStockKeepBothLines(t *testing.T) {
	calc := NewCalculator(catalog(product("a", "Product A", "100", 5, "0.19")))

	totals, err := calc.Calculate(context.Background(), nil, "company-1", []dto.InvoiceLine{
		{ProductID: "a", Quantity: 2},
		{ProductID: "a", Quantity: 3},
	})
	require.NoError(t, err)

	assert.Len(t, totals.Lines, 2)
	assert.Equal(t, "500.00", totals.Subtotal.StringFixed(2))
}

func TestCalculate_ProductNotFound(t *testing.T) {
	calc := NewCalculator(catalog(product("a", "Product A", "100", 5, "0.19")))

	_, err := calc.Calculate(context.Background(), nil, "company-1", []dto.InvoiceLine{
		{ProductID: "a", Quantity: 1},
		{ProductID: "ghost", Quantity: 1},
	})

	pnf, ok := apperrors.IsProductNotFoundError(err)
	require.True(t, ok)
	assert.Equal(t, "ghost", pnf.ProductID)
}

func TestCalculate_OtherCompanyProductIsNotFound(t *testing.T) {
	foreign := product("x", "Foreign", "10", 100, "0")
	foreign.CompanyID = "company-2"
	calc := NewCalculator(catalog(foreign))

	_, err := calc.Calculate(context.Background(), nil, "company-1", []dto.InvoiceLine{
		{ProductID: "x", Quantity: 1},
	})

	_, ok := apperrors.IsProductNotFoundError(err)
	assert.True(t, ok)
}

func TestCalculate_InvalidLines(t *testing.T) {
	calc := NewCalculator(&mockProductReader{
		FindByIDsForUpdateFunc: func(ctx context.Context, tx mysql.Tx, ids []string, companyID string) ([]domain.Product, error) {
			t.Fatal("products must not be read for invalid lines")
			return nil, nil
		},
	})

	tests := []struct {
		name  string
		lines []dto.InvoiceLine
	}{
		{"empty", nil},
		{"zero quantity", []dto.InvoiceLine{{ProductID: "a", Quantity: 0}}},
		{"negative quantity", []dto.InvoiceLine{{ProductID: "a", Quantity: -2}}},
		{"missing product", []dto.InvoiceLine{{Quantity: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.Calculate(context.Background(), nil, "company-1", tt.lines)
			_, ok := apperrors.IsValidationError(err)
			assert.True(t, ok, "expected ValidationError, got %v", err)
		})
	}
}

func TestCalculate_ReaderError(t *testing.T) {
	calc := NewCalculator(&mockProductReader{
		FindByIDsForUpdateFunc: func(ctx context.Context, tx mysql.Tx, ids []string, companyID string) ([]domain.Product, error) {
			return nil, errors.New("connection reset")
		},
	})

	_, err := calc.Calculate(context.Background(), nil, "company-1", []dto.InvoiceLine{{ProductID: "a", Quantity: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestCalculate_ReadsEachProductOnce(t *testing.T) {
	var gotIDs []string
	calc := NewCalculator(&mockProductReader{
		FindByIDsForUpdateFunc: func(ctx context.Context, tx mysql.Tx, ids []string, companyID string) ([]domain.Product, error) {
			gotIDs = ids
			return []domain.Product{
				product("b", "B", "1", 10, "0"),
				product("a", "A", "1", 10, "0"),
			}, nil
		},
	})

	_, err := calc.Calculate(context.Background(), nil, "company-1", []dto.InvoiceLine{
		{ProductID: "b", Quantity: 1},
		{ProductID: "a", Quantity: 1},
		{ProductID: "b", Quantity: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, gotIDs)
}

func TestCheck(t *testing.T) {
	calc := NewCalculator(catalog(product("a", "Product A", "100", 2, "0.19")))

	assert.NoError(t, calc.Check(context.Background(), nil, "company-1", []dto.InvoiceLine{{ProductID: "a", Quantity: 2}}))

	err := calc.Check(context.Background(), nil, "company-1", []dto.InvoiceLine{{ProductID: "a", Quantity: 3}})
	_, ok := apperrors.IsInsufficientStockError(err)
	assert.True(t, ok)
}

func TestAggregate(t *testing.T) {
	requested, order := Aggregate([]dto.InvoiceLine{
		{ProductID: "x", Quantity: 1},
		{ProductID: "y", Quantity: 4},
		{ProductID: "x", Quantity: 2},
	})

	assert.Equal(t, []string{"x", "y"}, order)
	assert.Equal(t, 3, requested["x"])
	assert.Equal(t, 4, requested["y"])
}
