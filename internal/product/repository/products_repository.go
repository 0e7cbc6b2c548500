package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"facturador/internal/domain"
	"facturador/internal/errors"
	"facturador/internal/infrastructure/mysql"
)

const productColumns = `id, name, description, sku, price, stock, taxRate, companyId, createdAt, updatedAt`

type MySQLRepository struct {
	db *sql.DB
}

func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

func (r *MySQLRepository) FindByIDsAndCompany(ctx context.Context, ids []string, companyID string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args := byIDsAndCompanyQuery(ids, companyID, "")
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	return scanProducts(rows)
}

// FindByIDsForUpdate reads and row-locks every requested product of the
// company in a single statement. Rows come back ordered by id so concurrent
// transactions acquire locks in the same order.
func (r *MySQLRepository) FindByIDsForUpdate(ctx context.Context, tx mysql.Tx, ids []string, companyID string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args := byIDsAndCompanyQuery(ids, companyID, "FOR UPDATE")
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("locking products: %w", err)
	}
	return scanProducts(rows)
}

// ApplyStockDelta adds delta (negative to decrement) to the product's stock.
// The update is refused when it would leave stock below zero.
func (r *MySQLRepository) ApplyStockDelta(ctx context.Context, tx mysql.Tx, productID string, delta int) error {
	query := `UPDATE Product SET stock = stock + ? WHERE id = ? AND stock + ? >= 0`

	result, err := tx.ExecContext(ctx, query, delta, productID, delta)
	if err != nil {
		return fmt.Errorf("applying stock delta: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewConflictError(fmt.Sprintf("stock delta %d rejected for product %s", delta, productID))
	}

	return nil
}

func byIDsAndCompanyQuery(ids []string, companyID string, suffix string) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	args = append(args, companyID)

	query := fmt.Sprintf(`
		SELECT %s
		FROM Product
		WHERE id IN (%s)
		  AND companyId = ?
		ORDER BY id
		%s`,
		productColumns, strings.Join(placeholders, ", "), suffix,
	)
	return query, args
}

func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		var description, sku sql.NullString
		err := rows.Scan(
			&p.ID, &p.Name, &description, &sku, &p.Price, &p.Stock, &p.TaxRate,
			&p.CompanyID, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		p.Description = description.String
		p.SKU = sku.String
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating product rows: %w", err)
	}

	return products, nil
}
