package service

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"facturador/internal/domain"
	"facturador/internal/dto"
	apperrors "facturador/internal/errors"
	"facturador/internal/infrastructure/mysql"
	"facturador/internal/pricing"
)

type TransactionManager interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (mysql.Tx, error)
}

type StockStore interface {
	FindByIDsForUpdate(ctx context.Context, tx mysql.Tx, ids []string, companyID string) ([]domain.Product, error)
	ApplyStockDelta(ctx context.Context, tx mysql.Tx, productID string, delta int) error
}

type InvoiceRepository interface {
	FindByIDForUpdate(ctx context.Context, tx mysql.Tx, id string) (*domain.Invoice, error)
	Insert(ctx context.Context, tx mysql.Tx, inv *domain.Invoice) error
	Update(ctx context.Context, tx mysql.Tx, inv *domain.Invoice) error
	Delete(ctx context.Context, tx mysql.Tx, id string) error
}

type InvoiceItemRepository interface {
	InsertBatch(ctx context.Context, tx mysql.Tx, items []domain.InvoiceItem) error
	DeleteByInvoiceID(ctx context.Context, tx mysql.Tx, invoiceID string) error
}

// InvoiceService runs every invoice mutation inside one transaction and keeps
// product stock equal to what non-cancelled invoices hold.
type InvoiceService struct {
	db          TransactionManager
	stock       StockStore
	pricing     *pricing.Calculator
	invoiceRepo InvoiceRepository
	itemRepo    InvoiceItemRepository
	logger      *zap.Logger
	txTimeout   time.Duration
	now         func() time.Time
}

func NewInvoiceService(
	db TransactionManager,
	stock StockStore,
	invoiceRepo InvoiceRepository,
	itemRepo InvoiceItemRepository,
	logger *zap.Logger,
	txTimeout time.Duration,
) *InvoiceService {
	return &InvoiceService{
		db:          db,
		stock:       stock,
		pricing:     pricing.NewCalculator(stock),
		invoiceRepo: invoiceRepo,
		itemRepo:    itemRepo,
		logger:      logger,
		txTimeout:   txTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *InvoiceService) Create(ctx context.Context, cmd dto.CreateInvoiceCommand) (*domain.Invoice, error) {
	status := domain.InvoiceStatusDraft
	if cmd.Status != nil {
		status = *cmd.Status
	}
	if err := validateCreate(cmd, status); err != nil {
		return nil, err
	}

	now := s.now()
	inv := &domain.Invoice{
		ID:        uuid.NewString(),
		ClientID:  cmd.ClientID,
		CompanyID: cmd.CompanyID,
		Status:    status,
		DueDate:   cmd.DueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.inTx(ctx, func(ctx context.Context, tx mysql.Tx) error {
		totals, err := s.pricing.Calculate(ctx, tx, cmd.CompanyID, cmd.Items)
		if err != nil {
			return err
		}
		applyTotals(inv, totals)

		if err := s.invoiceRepo.Insert(ctx, tx, inv); err != nil {
			return err
		}
		if err := s.itemRepo.InsertBatch(ctx, tx, inv.Items); err != nil {
			return err
		}

		if status.HoldsStock() {
			return s.adjustStock(ctx, tx, inv.Quantities(), -1)
		}
		return nil
	})
	if err != nil {
		s.logRejection("create", "", err)
		return nil, err
	}

	s.logger.Info("invoice created",
		zap.String("invoiceId", inv.ID),
		zap.String("companyId", inv.CompanyID),
		zap.String("status", string(inv.Status)),
		zap.Int("itemCount", len(inv.Items)),
		zap.String("total", inv.Total.StringFixed(2)),
	)
	return inv, nil
}

// Update applies a partial change. The stock an invoice holds before the
// call is released only when its status leaves the holding set or its lines
// are replaced, and the new hold is taken only after availability has been
// checked under the same locks.
func (s *InvoiceService) Update(ctx context.Context, id string, cmd dto.UpdateInvoiceCommand) (*domain.Invoice, error) {
	if err := validateUpdate(cmd); err != nil {
		return nil, err
	}

	var updated domain.Invoice
	err := s.inTx(ctx, func(ctx context.Context, tx mysql.Tx) error {
		current, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		updated = *current
		if cmd.Status != nil {
			updated.Status = *cmd.Status
		}
		if cmd.ClientID != nil {
			updated.ClientID = *cmd.ClientID
		}
		if cmd.DueDate != nil {
			updated.DueDate = cmd.DueDate
		}
		updated.UpdatedAt = s.now()

		replacing := cmd.Items != nil
		heldBefore := current.Status.HoldsStock()
		heldAfter := updated.Status.HoldsStock()

		if heldBefore && (!heldAfter || replacing) {
			if err := s.adjustStock(ctx, tx, current.Quantities(), +1); err != nil {
				return err
			}
		}

		switch {
		case replacing:
			totals, err := s.pricing.Calculate(ctx, tx, current.CompanyID, cmd.Items)
			if err != nil {
				return err
			}
			applyTotals(&updated, totals)

			if err := s.itemRepo.DeleteByInvoiceID(ctx, tx, id); err != nil {
				return err
			}
			if err := s.itemRepo.InsertBatch(ctx, tx, updated.Items); err != nil {
				return err
			}
			if heldAfter {
				if err := s.adjustStock(ctx, tx, updated.Quantities(), -1); err != nil {
					return err
				}
			}

		case heldAfter && !heldBefore:
			if err := s.pricing.Check(ctx, tx, current.CompanyID, linesOf(current.Items)); err != nil {
				return err
			}
			if err := s.adjustStock(ctx, tx, current.Quantities(), -1); err != nil {
				return err
			}
		}

		if current.Status != updated.Status {
			s.logger.Info("invoice status transition",
				zap.String("invoiceId", id),
				zap.String("from", string(current.Status)),
				zap.String("to", string(updated.Status)),
			)
		}

		return s.invoiceRepo.Update(ctx, tx, &updated)
	})
	if err != nil {
		s.logRejection("update", id, err)
		return nil, err
	}

	s.logger.Info("invoice updated",
		zap.String("invoiceId", id),
		zap.String("status", string(updated.Status)),
		zap.Bool("itemsReplaced", cmd.Items != nil),
		zap.String("total", updated.Total.StringFixed(2)),
	)
	return &updated, nil
}

func (s *InvoiceService) Delete(ctx context.Context, id string) error {
	err := s.inTx(ctx, func(ctx context.Context, tx mysql.Tx) error {
		current, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		if current.Status.HoldsStock() {
			if err := s.adjustStock(ctx, tx, current.Quantities(), +1); err != nil {
				return err
			}
		}

		if err := s.itemRepo.DeleteByInvoiceID(ctx, tx, id); err != nil {
			return err
		}
		return s.invoiceRepo.Delete(ctx, tx, id)
	})
	if err != nil {
		s.logRejection("delete", id, err)
		return err
	}

	s.logger.Info("invoice deleted", zap.String("invoiceId", id))
	return nil
}

func (s *InvoiceService) inTx(ctx context.Context, fn func(ctx context.Context, tx mysql.Tx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		s.logger.Error("failed to begin transaction", zap.Error(err))
		return apperrors.NewInternalError("beginning transaction", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer tx.Rollback()

	if err := fn(txCtx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit transaction", zap.Error(err))
		return apperrors.NewInternalError("committing transaction", err)
	}
	return nil
}

// adjustStock applies sign*quantity to every product, in ascending id order.
func (s *InvoiceService) adjustStock(ctx context.Context, tx mysql.Tx, quantities map[string]int, sign int) error {
	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := s.stock.ApplyStockDelta(ctx, tx, id, sign*quantities[id]); err != nil {
			return err
		}
	}
	return nil
}

func (s *InvoiceService) logRejection(operation, invoiceID string, err error) {
	fields := []zap.Field{zap.String("operation", operation), zap.Error(err)}
	if invoiceID != "" {
		fields = append(fields, zap.String("invoiceId", invoiceID))
	}

	if ise, ok := apperrors.IsInsufficientStockError(err); ok {
		s.logger.Warn("invoice rejected: insufficient stock", append(fields,
			zap.String("productId", ise.ProductID),
			zap.Int("available", ise.Available),
			zap.Int("requested", ise.Requested),
		)...)
		return
	}
	if isBusinessError(err) {
		s.logger.Warn("invoice rejected", fields...)
		return
	}
	s.logger.Error("invoice transaction failed", fields...)
}

func isBusinessError(err error) bool {
	if _, ok := apperrors.IsProductNotFoundError(err); ok {
		return true
	}
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return true
	}
	if _, ok := apperrors.IsValidationError(err); ok {
		return true
	}
	return false
}

func applyTotals(inv *domain.Invoice, totals *pricing.Totals) {
	inv.Subtotal = totals.Subtotal
	inv.Tax = totals.Tax
	inv.Total = totals.Total

	inv.Items = make([]domain.InvoiceItem, 0, len(totals.Lines))
	for _, l := range totals.Lines {
		inv.Items = append(inv.Items, domain.InvoiceItem{
			ID:        uuid.NewString(),
			InvoiceID: inv.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.Price,
			Tax:       l.Tax,
			Total:     l.Total,
		})
	}
}

func linesOf(items []domain.InvoiceItem) []dto.InvoiceLine {
	lines := make([]dto.InvoiceLine, len(items))
	for i, it := range items {
		lines[i] = dto.InvoiceLine{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return lines
}

func validateCreate(cmd dto.CreateInvoiceCommand, status domain.InvoiceStatus) error {
	var details []apperrors.ValidationDetail
	if cmd.ClientID == "" {
		details = append(details, apperrors.ValidationDetail{Field: "clientId", Message: "clientId is required"})
	}
	if cmd.CompanyID == "" {
		details = append(details, apperrors.ValidationDetail{Field: "companyId", Message: "companyId is required"})
	}
	if !status.Valid() {
		details = append(details, apperrors.ValidationDetail{Field: "status", Message: "status must be one of DRAFT, ISSUED, PAID, CANCELLED"})
	}
	if len(cmd.Items) == 0 {
		details = append(details, apperrors.ValidationDetail{Field: "items", Message: "items must not be empty"})
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}

func validateUpdate(cmd dto.UpdateInvoiceCommand) error {
	var details []apperrors.ValidationDetail
	if cmd.Status != nil && !cmd.Status.Valid() {
		details = append(details, apperrors.ValidationDetail{Field: "status", Message: "status must be one of DRAFT, ISSUED, PAID, CANCELLED"})
	}
	if cmd.Items != nil && len(cmd.Items) == 0 {
		details = append(details, apperrors.ValidationDetail{Field: "items", Message: "items must not be empty"})
	}
	if cmd.ClientID != nil && *cmd.ClientID == "" {
		details = append(details, apperrors.ValidationDetail{Field: "clientId", Message: "clientId must not be empty"})
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}
