package repository

import (
	"context"
	"database/sql"
	"fmt"

	"facturador/internal/domain"
	"facturador/internal/errors"
)

type MySQLClientRepository struct {
	db *sql.DB
}

func NewMySQLClientRepository(db *sql.DB) *MySQLClientRepository {
	return &MySQLClientRepository{db: db}
}

func (r *MySQLClientRepository) FindByID(ctx context.Context, id string) (*domain.Client, error) {
	query := `
		SELECT id, name, email, phone, address, taxId, companyId, createdAt, updatedAt
		FROM Client
		WHERE id = ?
	`

	var client domain.Client
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&client.ID, &client.Name, &client.Email, &client.Phone, &client.Address, &client.TaxID,
		&client.CompanyID, &client.CreatedAt, &client.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("client with id %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying client by id: %w", err)
	}

	return &client, nil
}
