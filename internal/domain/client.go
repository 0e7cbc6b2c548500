package domain

import "time"

type Client struct {
	ID        string
	Name      string
	Email     string
	Phone     *string
	Address   *string
	TaxID     *string
	CompanyID string
	CreatedAt time.Time
	UpdatedAt time.Time
}
