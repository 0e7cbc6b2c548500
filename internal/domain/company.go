package domain

import "time"

type Company struct {
	ID        string
	Name      string
	TaxID     string
	Address   *string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
