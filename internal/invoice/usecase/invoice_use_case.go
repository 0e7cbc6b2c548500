package usecase

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"facturador/internal/domain"
	"facturador/internal/dto"
	apperrors "facturador/internal/errors"
)

// MySQL error numbers that abort a transaction without it being at fault.
const (
	errLockDeadlock    = 1213
	errLockWaitTimeout = 1205
)

type InvoiceEngine interface {
	Create(ctx context.Context, cmd dto.CreateInvoiceCommand) (*domain.Invoice, error)
	Update(ctx context.Context, id string, cmd dto.UpdateInvoiceCommand) (*domain.Invoice, error)
	Delete(ctx context.Context, id string) error
}

type InvoiceReader interface {
	FindByID(ctx context.Context, id string) (*domain.Invoice, error)
	List(ctx context.Context, companyID string) ([]domain.Invoice, error)
}

type ClientRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Client, error)
}

type CompanyRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Company, error)
}

type OperationRecorder interface {
	ObserveInvoiceOperation(operation string, err error)
}

type InvoiceUseCase struct {
	engine           InvoiceEngine
	reader           InvoiceReader
	clients          ClientRepository
	companies        CompanyRepository
	metrics          OperationRecorder
	logger           *zap.Logger
	maxRetryAttempts int
	backoffs         []time.Duration
}

func NewInvoiceUseCase(
	engine InvoiceEngine,
	reader InvoiceReader,
	clients ClientRepository,
	companies CompanyRepository,
	metrics OperationRecorder,
	logger *zap.Logger,
	maxRetryAttempts int,
) *InvoiceUseCase {
	if maxRetryAttempts < 1 {
		maxRetryAttempts = 1
	}
	return &InvoiceUseCase{
		engine:           engine,
		reader:           reader,
		clients:          clients,
		companies:        companies,
		metrics:          metrics,
		logger:           logger,
		maxRetryAttempts: maxRetryAttempts,
		backoffs:         []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond},
	}
}

func (uc *InvoiceUseCase) CreateInvoice(ctx context.Context, cmd dto.CreateInvoiceCommand) (*domain.Invoice, error) {
	uc.logger.Info("create invoice started",
		zap.String("companyId", cmd.CompanyID),
		zap.String("clientId", cmd.ClientID),
		zap.Int("itemCount", len(cmd.Items)),
	)

	inv, err := uc.createInvoice(ctx, cmd)
	uc.metrics.ObserveInvoiceOperation("create", err)
	return inv, err
}

func (uc *InvoiceUseCase) createInvoice(ctx context.Context, cmd dto.CreateInvoiceCommand) (*domain.Invoice, error) {
	if cmd.CompanyID != "" {
		if _, err := uc.companies.FindByID(ctx, cmd.CompanyID); err != nil {
			return nil, notFoundAs(err, "company not found")
		}
	}
	if cmd.ClientID != "" && cmd.CompanyID != "" {
		if err := uc.checkClient(ctx, cmd.ClientID, cmd.CompanyID); err != nil {
			return nil, err
		}
	}

	var created *domain.Invoice
	err := uc.withRetry(ctx, "create", func() error {
		inv, err := uc.engine.Create(ctx, cmd)
		created = inv
		return err
	})
	if err != nil {
		return nil, err
	}

	return uc.resolve(ctx, created)
}

func (uc *InvoiceUseCase) UpdateInvoice(ctx context.Context, id string, cmd dto.UpdateInvoiceCommand) (*domain.Invoice, error) {
	uc.logger.Info("update invoice started", zap.String("invoiceId", id))

	inv, err := uc.updateInvoice(ctx, id, cmd)
	uc.metrics.ObserveInvoiceOperation("update", err)
	return inv, err
}

func (uc *InvoiceUseCase) updateInvoice(ctx context.Context, id string, cmd dto.UpdateInvoiceCommand) (*domain.Invoice, error) {
	if cmd.ClientID != nil && *cmd.ClientID != "" {
		current, err := uc.reader.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := uc.checkClient(ctx, *cmd.ClientID, current.CompanyID); err != nil {
			return nil, err
		}
	}

	var updated *domain.Invoice
	err := uc.withRetry(ctx, "update", func() error {
		inv, err := uc.engine.Update(ctx, id, cmd)
		updated = inv
		return err
	})
	if err != nil {
		return nil, err
	}

	return uc.resolve(ctx, updated)
}

func (uc *InvoiceUseCase) DeleteInvoice(ctx context.Context, id string) error {
	uc.logger.Info("delete invoice started", zap.String("invoiceId", id))

	err := uc.withRetry(ctx, "delete", func() error {
		return uc.engine.Delete(ctx, id)
	})
	uc.metrics.ObserveInvoiceOperation("delete", err)
	return err
}

func (uc *InvoiceUseCase) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return uc.reader.FindByID(ctx, id)
}

func (uc *InvoiceUseCase) ListInvoices(ctx context.Context, companyID string) ([]domain.Invoice, error) {
	return uc.reader.List(ctx, companyID)
}

func (uc *InvoiceUseCase) checkClient(ctx context.Context, clientID, companyID string) error {
	client, err := uc.clients.FindByID(ctx, clientID)
	if err != nil {
		return notFoundAs(err, "client not found")
	}
	if client.CompanyID != companyID {
		return apperrors.NewForbiddenError("client does not belong to company")
	}
	return nil
}

// resolve re-reads a committed invoice with client, company and products
// attached. If the read fails the engine result is returned as is.
func (uc *InvoiceUseCase) resolve(ctx context.Context, inv *domain.Invoice) (*domain.Invoice, error) {
	resolved, err := uc.reader.FindByID(ctx, inv.ID)
	if err != nil {
		uc.logger.Warn("failed to resolve invoice after commit", zap.String("invoiceId", inv.ID), zap.Error(err))
		return inv, nil
	}
	return resolved, nil
}

func (uc *InvoiceUseCase) withRetry(ctx context.Context, operation string, fn func() error) error {
	for attempt := 1; attempt <= uc.maxRetryAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if !isDeadlockError(err) {
			return err
		}

		if attempt == uc.maxRetryAttempts {
			break
		}

		uc.logger.Warn("deadlock detected, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", uc.maxRetryAttempts),
			zap.Error(err),
		)
		if err := sleep(ctx, uc.backoff(attempt)); err != nil {
			return err
		}
	}

	uc.logger.Error("deadlock retries exhausted", zap.String("operation", operation), zap.Int("attempts", uc.maxRetryAttempts))
	return apperrors.NewDeadlockError("max retries exceeded")
}

// backoff returns the wait after a failed attempt, with ±20% jitter.
func (uc *InvoiceUseCase) backoff(attempt int) time.Duration {
	if len(uc.backoffs) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx >= len(uc.backoffs) {
		idx = len(uc.backoffs) - 1
	}
	base := uc.backoffs[idx]
	return time.Duration(float64(base) * (0.8 + rand.Float64()*0.4))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isDeadlockError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == errLockDeadlock || mysqlErr.Number == errLockWaitTimeout
	}
	return false
}

func notFoundAs(err error, message string) error {
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return apperrors.NewNotFoundError(message)
	}
	return err
}
