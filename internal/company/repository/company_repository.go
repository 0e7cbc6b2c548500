package repository

import (
	"context"
	"database/sql"
	"fmt"

	"facturador/internal/domain"
	"facturador/internal/errors"
)

type MySQLCompanyRepository struct {
	db *sql.DB
}

func NewMySQLCompanyRepository(db *sql.DB) *MySQLCompanyRepository {
	return &MySQLCompanyRepository{db: db}
}

func (r *MySQLCompanyRepository) FindByID(ctx context.Context, id string) (*domain.Company, error) {
	query := `
		SELECT id, name, taxId, address, email, createdAt, updatedAt
		FROM Company
		WHERE id = ?
	`

	var company domain.Company
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&company.ID, &company.Name, &company.TaxID, &company.Address, &company.Email,
		&company.CreatedAt, &company.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("company with id %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying company by id: %w", err)
	}

	return &company, nil
}
