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

const invoiceColumns = `i.id, i.clientId, i.companyId, i.status, i.subtotal, i.tax, i.total, i.dueDate, i.createdAt, i.updatedAt`

const resolvedInvoiceQuery = `
	SELECT ` + invoiceColumns + `,
	       cl.id, cl.name, cl.email, cl.phone, cl.address, cl.taxId, cl.companyId, cl.createdAt, cl.updatedAt,
	       co.id, co.name, co.taxId, co.address, co.email, co.createdAt, co.updatedAt
	FROM Invoice i
	JOIN Client cl ON cl.id = i.clientId
	JOIN Company co ON co.id = i.companyId
`

// Row locks taken by FindByIDForUpdate. Concurrent edits of one invoice
// serialize on them.
const (
	lockInvoiceQuery = `SELECT ` + invoiceColumns + ` FROM Invoice i WHERE i.id = ? FOR UPDATE`

	lockInvoiceItemsQuery = `
		SELECT id, invoiceId, productId, quantity, price, tax, total
		FROM InvoiceItem
		WHERE invoiceId = ?
		ORDER BY position
		FOR UPDATE`
)

type MySQLInvoiceRepository struct {
	db *sql.DB
}

func NewMySQLInvoiceRepository(db *sql.DB) *MySQLInvoiceRepository {
	return &MySQLInvoiceRepository{db: db}
}

// FindByIDForUpdate locks the invoice row and its items inside tx.
func (r *MySQLInvoiceRepository) FindByIDForUpdate(ctx context.Context, tx mysql.Tx, id string) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := tx.QueryRowContext(ctx, lockInvoiceQuery, id).Scan(invoiceDest(&inv)...)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("invoice with id %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("locking invoice: %w", err)
	}

	rows, err := tx.QueryContext(ctx, lockInvoiceItemsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("locking invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ProductID, &it.Quantity, &it.Price, &it.Tax, &it.Total); err != nil {
			return nil, fmt.Errorf("scanning invoice item row: %w", err)
		}
		inv.Items = append(inv.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invoice item rows: %w", err)
	}

	return &inv, nil
}

func (r *MySQLInvoiceRepository) Insert(ctx context.Context, tx mysql.Tx, inv *domain.Invoice) error {
	query := `
		INSERT INTO Invoice (id, clientId, companyId, status, subtotal, tax, total, dueDate, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := tx.ExecContext(ctx, query,
		inv.ID, inv.ClientID, inv.CompanyID, string(inv.Status),
		inv.Subtotal, inv.Tax, inv.Total, inv.DueDate, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting invoice: %w", err)
	}
	return nil
}

func (r *MySQLInvoiceRepository) Update(ctx context.Context, tx mysql.Tx, inv *domain.Invoice) error {
	query := `
		UPDATE Invoice
		SET clientId = ?, status = ?, subtotal = ?, tax = ?, total = ?, dueDate = ?, updatedAt = ?
		WHERE id = ?`

	result, err := tx.ExecContext(ctx, query,
		inv.ClientID, string(inv.Status), inv.Subtotal, inv.Tax, inv.Total, inv.DueDate, inv.UpdatedAt, inv.ID,
	)
	if err != nil {
		return fmt.Errorf("updating invoice: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("invoice with id %s not found", inv.ID))
	}

	return nil
}

func (r *MySQLInvoiceRepository) Delete(ctx context.Context, tx mysql.Tx, id string) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM Invoice WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting invoice: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("invoice with id %s not found", id))
	}

	return nil
}

// FindByID returns the invoice with its client, company and each item's
// product resolved.
func (r *MySQLInvoiceRepository) FindByID(ctx context.Context, id string) (*domain.Invoice, error) {
	row := r.db.QueryRowContext(ctx, resolvedInvoiceQuery+` WHERE i.id = ?`, id)

	inv, err := scanResolved(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("invoice with id %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying invoice by id: %w", err)
	}

	if err := r.attachItems(ctx, []*domain.Invoice{inv}); err != nil {
		return nil, err
	}
	return inv, nil
}

// List returns invoices newest first. An empty companyID lists every company.
func (r *MySQLInvoiceRepository) List(ctx context.Context, companyID string) ([]domain.Invoice, error) {
	query := resolvedInvoiceQuery
	var args []any
	if companyID != "" {
		query += ` WHERE i.companyId = ?`
		args = append(args, companyID)
	}
	query += ` ORDER BY i.createdAt DESC, i.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*domain.Invoice
	for rows.Next() {
		inv, err := scanResolved(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice row: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invoice rows: %w", err)
	}

	if err := r.attachItems(ctx, invoices); err != nil {
		return nil, err
	}

	out := make([]domain.Invoice, len(invoices))
	for i, inv := range invoices {
		out[i] = *inv
	}
	return out, nil
}

// attachItems loads the items of every invoice, with products, in one query.
func (r *MySQLInvoiceRepository) attachItems(ctx context.Context, invoices []*domain.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Invoice, len(invoices))
	placeholders := make([]string, len(invoices))
	args := make([]any, len(invoices))
	for i, inv := range invoices {
		byID[inv.ID] = inv
		placeholders[i] = "?"
		args[i] = inv.ID
	}

	query := fmt.Sprintf(`
		SELECT it.id, it.invoiceId, it.productId, it.quantity, it.price, it.tax, it.total,
		       p.id, p.name, p.description, p.sku, p.price, p.stock, p.taxRate, p.companyId, p.createdAt, p.updatedAt
		FROM InvoiceItem it
		JOIN Product p ON p.id = it.productId
		WHERE it.invoiceId IN (%s)
		ORDER BY it.invoiceId, it.position`,
		strings.Join(placeholders, ", "),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.InvoiceItem
		var p domain.Product
		var description, sku sql.NullString
		err := rows.Scan(
			&it.ID, &it.InvoiceID, &it.ProductID, &it.Quantity, &it.Price, &it.Tax, &it.Total,
			&p.ID, &p.Name, &description, &sku, &p.Price, &p.Stock, &p.TaxRate, &p.CompanyID, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("scanning invoice item row: %w", err)
		}
		p.Description = description.String
		p.SKU = sku.String
		it.Product = &p

		if inv, ok := byID[it.InvoiceID]; ok {
			inv.Items = append(inv.Items, it)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating invoice item rows: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResolved(s scanner) (*domain.Invoice, error) {
	var inv domain.Invoice
	var cl domain.Client
	var co domain.Company

	dest := invoiceDest(&inv)
	dest = append(dest,
		&cl.ID, &cl.Name, &cl.Email, &cl.Phone, &cl.Address, &cl.TaxID, &cl.CompanyID, &cl.CreatedAt, &cl.UpdatedAt,
		&co.ID, &co.Name, &co.TaxID, &co.Address, &co.Email, &co.CreatedAt, &co.UpdatedAt,
	)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	inv.Client = &cl
	inv.Company = &co
	return &inv, nil
}

func invoiceDest(inv *domain.Invoice) []any {
	return []any{
		&inv.ID, &inv.ClientID, &inv.CompanyID, &inv.Status, &inv.Subtotal, &inv.Tax, &inv.Total,
		&inv.DueDate, &inv.CreatedAt, &inv.UpdatedAt,
	}
}
