package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"facturador/internal/domain"
	"facturador/internal/infrastructure/mysql"
)

type MySQLInvoiceItemRepository struct {
	db *sql.DB
}

func NewMySQLInvoiceItemRepository(db *sql.DB) *MySQLInvoiceItemRepository {
	return &MySQLInvoiceItemRepository{db: db}
}

// InsertBatch writes all items in one statement. Slice order is stored as
// position so reads return lines as they were submitted.
func (r *MySQLInvoiceItemRepository) InsertBatch(ctx context.Context, tx mysql.Tx, items []domain.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}

	values := make([]string, len(items))
	args := make([]any, 0, len(items)*8)
	for i, it := range items {
		values[i] = "(?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args, it.ID, it.InvoiceID, it.ProductID, i, it.Quantity, it.Price, it.Tax, it.Total)
	}

	query := `INSERT INTO InvoiceItem (id, invoiceId, productId, position, quantity, price, tax, total) VALUES ` +
		strings.Join(values, ", ")

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting invoice items: %w", err)
	}
	return nil
}

func (r *MySQLInvoiceItemRepository) DeleteByInvoiceID(ctx context.Context, tx mysql.Tx, invoiceID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM InvoiceItem WHERE invoiceId = ?`, invoiceID); err != nil {
		return fmt.Errorf("deleting invoice items: %w", err)
	}
	return nil
}
