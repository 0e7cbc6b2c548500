package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"facturador/internal/domain"
	"facturador/internal/dto"
	apperrors "facturador/internal/errors"
)

// Mock implementations

type mockEngine struct {
	CreateFunc func(ctx context.Context, cmd dto.CreateInvoiceCommand) (*domain.Invoice, error)
	UpdateFunc func(ctx context.Context, id string, cmd dto.UpdateInvoiceCommand) (*domain.Invoice, error)
	DeleteFunc func(ctx context.Context, id string) error
}

func (m *mockEngine) Create(ctx context.Context, cmd dto.CreateInvoiceCommand) (*domain.Invoice, error) {
	return m.CreateFunc(ctx, cmd)
}

func (m *mockEngine) Update(ctx context.Context, id string, cmd dto.UpdateInvoiceCommand) (*domain.Invoice, error) {
	return m.UpdateFunc(ctx, id, cmd)
}

func (m *mockEngine) Delete(ctx context.Context, id string) error {
	return m.DeleteFunc(ctx, id)
}

type mockReader struct {
	FindByIDFunc func(ctx context.Context, id string) (*domain.Invoice, error)
	ListFunc     func(ctx context.Context, companyID string) ([]domain.Invoice, error)
}

func (m *mockReader) FindByID(ctx context.Context, id string) (*domain.Invoice, error) {
	return m.FindByIDFunc(ctx, id)
}

func (m *mockReader) List(ctx context.Context, companyID string) ([]domain.Invoice, error) {
	return m.ListFunc(ctx, companyID)
}

type mockClientRepository struct {
	FindByIDFunc func(ctx context.Context, id string) (*domain.Client, error)
}

func (m *mockClientRepository) FindByID(ctx context.Context, id string) (*domain.Client, error) {
	return m.FindByIDFunc(ctx, id)
}

type mockCompanyRepository struct {
	FindByIDFunc func(ctx context.Context, id string) (*domain.Company, error)
}

func (m *mockCompanyRepository) FindByID(ctx context.Context, id string) (*domain.Company, error) {
	return m.FindByIDFunc(ctx, id)
}

type recordedOp struct {
	operation string
	err       error
}

type mockRecorder struct {
	ops []recordedOp
}

func (m *mockRecorder) ObserveInvoiceOperation(operation string, err error) {
	m.ops = append(m.ops, recordedOp{operation, err})
}

// Helpers

func createDeadlockError() error {
	return &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
}

type testDeps struct {
	engine    *mockEngine
	reader    *mockReader
	clients   *mockClientRepository
	companies *mockCompanyRepository
	recorder  *mockRecorder
}

func newTestDeps() *testDeps {
	return &testDeps{
		engine: &mockEngine{},
		reader: &mockReader{
			FindByIDFunc: func(ctx context.Context, id string) (*domain.Invoice, error) {
				return &domain.Invoice{ID: id, CompanyID: "co-1", Client: &domain.Client{ID: "cl-1"}}, nil
			},
		},
		clients: &mockClientRepository{
			FindByIDFunc: func(ctx context.Context, id string) (*domain.Client, error) {
				return &domain.Client{ID: id, CompanyID: "co-1"}, nil
			},
		},
		companies: &mockCompanyRepository{
			FindByIDFunc: func(ctx context.Context, id string) (*domain.Company, error) {
				return &domain.Company{ID: id}, nil
			},
		},
		recorder: &mockRecorder{},
	}
}

func (d *testDeps) useCase(maxAttempts int) *InvoiceUseCase {
	uc := NewInvoiceUseCase(d.engine, d.reader, d.clients, d.companies, d.recorder, zap.NewNop(), maxAttempts)
	uc.backoffs = []time.Duration{0}
	return uc
}

func validCreate() dto.CreateInvoiceCommand {
	return dto.CreateInvoiceCommand{
		ClientID:  "cl-1",
		CompanyID: "co-1",
		Items:     []dto.InvoiceLine{{ProductID: "p-1", Quantity: 2}},
	}
}

// Tests

func TestCreateInvoice_Success_ReturnsResolvedInvoice(t *testing.T) {
	d := newTestDeps()
	d.engine.CreateFunc = func(ctx context.Context, cmd dto.CreateInvoiceCommand) (*domain.Invoice, error) {
		return &domain.Invoice{ID: "inv-1"}, nil
	}

	inv, err := d.useCase(3).CreateInvoice(context.Background(), validCreate())
	require.NoError(t, err)

	assert.Equal(t, "inv-1", inv.ID)
	assert.NotNil(t, inv.Client)
	require.Len(t, d.recorder.ops, 1)
	assert.Equal(t, "create", d.recorder.ops[0].operation)
	assert.NoError(t, d.recorder.ops[0].err)
}

func TestCreateInvoice_CompanyNotFound(t *testing.T) {
	d := newTestDeps()
	d.companies.FindByIDFunc = func(ctx context.Context, id string) (*domain.Company, error) {
		return nil, apperrors.NewNotFoundError("company with id co-1 not found")
	}
	d.engine.CreateFunc = func(ctx context.Context, cmd dto.CreateInvoiceCommand) (*domain.Invoice, error) {
		t.Fatal("engine must not be called")
		return nil, nil
	}

	_, err := d.useCase(3).CreateInvoice(context.Background(), validCreate())

	nfe, ok := apperrors.IsNotFoundError(err)
	require.True(t, ok)
	assert.Equal(t, "company not found", nfe.Message)
	assert.Error(t, d.recorder.ops[0].err)
}

func TestCreateInvoice_ClientNotFound(t *testing.T) {
	d := newTestDeps()
	d.clients.FindByIDFunc = func(ctx context.Context, id string) (*domain.Client, error) {
		return nil, apperrors.NewNotFoundError("client with id cl-1 not found")
	}

	_, err := d.useCase(3).CreateInvoice(context.Background(), validCreate())

	nfe, ok := apperrors.IsNotFoundError(err)
	require.True(t, ok)
	assert.Equal(t, "client not found", nfe.Message)
}

func TestCreateInvoice_ClientOfOtherCompany(t *testing.T) {
	d := newTestDeps()
	d.clients.FindByIDFunc = func(ctx context.Context, id string) (*domain.Client, error) {
		return &domain.Client{ID: id, CompanyID: "co-2"}, nil
	}

	_, err := d.useCase(3).CreateInvoice(context.Background(), validCreate())

	_, ok := apperrors.IsForbiddenError(err)
	assert.True(t, ok)
}

func TestCreateInvoice_LookupInfrastructureErrorPassesThrough(t *testing.T) {
	d := newTestDeps()
	boom := errors.New("connection reset")
	d.companies.FindByIDFunc = func(ctx context.Context, id string) (*domain.Company, error) {
		return nil, boom
	}

	_, err := d.useCase(3).CreateInvoice(context.Background(), validCreate())
	assert.ErrorIs(t, err, boom)
}

func TestCreateInvoice_RetriesDeadlockThenSucceeds(t *testing.T) {
	d := newTestDeps()
	calls := 0
	d.engine.CreateFunc = func(ctx context.Context, cmd dto.CreateInvoiceCommand) (*domain.Invoice, error) {
		calls++
		if calls < 3 {
			return nil, fmt.Errorf("locking products: %w", createDeadlockError())
		}
		return &domain.Invoice{ID: "inv-1"}, nil
	}

	inv, err := d.useCase(3).CreateInvoice(context.Background(), validCreate())
	require.NoError(t, err)
	assert.Equal(t, "inv-1", inv.ID)
	assert.Equal(t, 3, calls)
}

func TestCreateInvoice_LockWaitTimeoutIsRetried(t *testing.T) {
	d := newTestDeps()
	calls := 0
	d.engine.CreateFunc = func(ctx context.Context, cmd dto.CreateInvoiceCommand) (*domain.Invoice, error) {
		calls++
		if calls == 1 {
			return nil, &mysql.MySQLError{Number: 1205}
		}
		return &domain.Invoice{ID: "inv-1"}, nil
	}

	_, err := d.useCase(2).CreateInvoice(context.Background(), validCreate())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCreateInvoice_DeadlockRetriesExhausted(t *testing.T) {
	d := newTestDeps()
	calls := 0
	d.engine.CreateFunc = func(ctx context.Context, cmd dto.CreateInvoiceCommand) (*domain.Invoice, error) {
		calls++
		return nil, createDeadlockError()
	}

	_, err := d.useCase(3).CreateInvoice(context.Background(), validCreate())

	_, ok := apperrors.IsDeadlockError(err)
	assert.True(t, ok)
	assert.Equal(t, 3, calls)
	_, ok = apperrors.IsDeadlockError(d.recorder.ops[0].err)
	assert.True(t, ok)
}

func TestCreateInvoice_BusinessErrorsAreNotRetried(t *testing.T) {
	d := newTestDeps()
	calls := 0
	d.engine.CreateFunc = func(ctx context.Context, cmd dto.CreateInvoiceCommand) (*domain.Invoice, error) {
		calls++
		return nil, apperrors.NewInsufficientStockError("p-1", "Laptop", 1, 2)
	}

	_, err := d.useCase(3).CreateInvoice(context.Background(), validCreate())

	_, ok := apperrors.IsInsufficientStockError(err)
	assert.True(t, ok)
	assert.Equal(t, 1, calls)
}

func TestCreateInvoice_RetryStopsOnCancelledContext(t *testing.T) {
	d := newTestDeps()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	d.engine.CreateFunc = func(ctx context.Context, cmd dto.CreateInvoiceCommand) (*domain.Invoice, error) {
		calls++
		cancel()
		return nil, createDeadlockError()
	}

	uc := d.useCase(5)
	uc.backoffs = []time.Duration{time.Hour}

	_, err := uc.CreateInvoice(ctx, validCreate())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCreateInvoice_ResolveFailureFallsBackToEngineResult(t *testing.T) {
	d := newTestDeps()
	d.engine.CreateFunc = func(ctx context.Context, cmd dto.CreateInvoiceCommand) (*domain.Invoice, error) {
		return &domain.Invoice{ID: "inv-1", Status: domain.InvoiceStatusDraft}, nil
	}
	d.reader.FindByIDFunc = func(ctx context.Context, id string) (*domain.Invoice, error) {
		return nil, errors.New("replica lag")
	}

	inv, err := d.useCase(3).CreateInvoice(context.Background(), validCreate())
	require.NoError(t, err)
	assert.Equal(t, "inv-1", inv.ID)
	assert.Nil(t, inv.Client)
}

func TestUpdateInvoice_ChecksNewClientAgainstInvoiceCompany(t *testing.T) {
	d := newTestDeps()
	d.clients.FindByIDFunc = func(ctx context.Context, id string) (*domain.Client, error) {
		return &domain.Client{ID: id, CompanyID: "co-9"}, nil
	}
	d.engine.UpdateFunc = func(ctx context.Context, id string, cmd dto.UpdateInvoiceCommand) (*domain.Invoice, error) {
		t.Fatal("engine must not be called")
		return nil, nil
	}
	other := "cl-2"

	_, err := d.useCase(3).UpdateInvoice(context.Background(), "inv-1", dto.UpdateInvoiceCommand{ClientID: &other})

	_, ok := apperrors.IsForbiddenError(err)
	assert.True(t, ok)
	assert.Equal(t, "update", d.recorder.ops[0].operation)
}

func TestUpdateInvoice_StatusOnlySkipsClientLookup(t *testing.T) {
	d := newTestDeps()
	d.clients.FindByIDFunc = func(ctx context.Context, id string) (*domain.Client, error) {
		t.Fatal("client lookup not expected")
		return nil, nil
	}
	status := domain.InvoiceStatusCancelled
	d.engine.UpdateFunc = func(ctx context.Context, id string, cmd dto.UpdateInvoiceCommand) (*domain.Invoice, error) {
		assert.Equal(t, &status, cmd.Status)
		return &domain.Invoice{ID: id, Status: status}, nil
	}

	inv, err := d.useCase(3).UpdateInvoice(context.Background(), "inv-1", dto.UpdateInvoiceCommand{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "inv-1", inv.ID)
}

func TestUpdateInvoice_RetriesDeadlock(t *testing.T) {
	d := newTestDeps()
	calls := 0
	d.engine.UpdateFunc = func(ctx context.Context, id string, cmd dto.UpdateInvoiceCommand) (*domain.Invoice, error) {
		calls++
		if calls == 1 {
			return nil, createDeadlockError()
		}
		return &domain.Invoice{ID: id}, nil
	}

	_, err := d.useCase(3).UpdateInvoice(context.Background(), "inv-1", dto.UpdateInvoiceCommand{Items: []dto.InvoiceLine{{ProductID: "p", Quantity: 1}}})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDeleteInvoice(t *testing.T) {
	d := newTestDeps()
	d.engine.DeleteFunc = func(ctx context.Context, id string) error {
		assert.Equal(t, "inv-1", id)
		return nil
	}

	require.NoError(t, d.useCase(3).DeleteInvoice(context.Background(), "inv-1"))
	assert.Equal(t, []recordedOp{{"delete", nil}}, d.recorder.ops)
}

func TestDeleteInvoice_NotFound(t *testing.T) {
	d := newTestDeps()
	d.engine.DeleteFunc = func(ctx context.Context, id string) error {
		return apperrors.NewNotFoundError("invoice with id inv-1 not found")
	}

	err := d.useCase(3).DeleteInvoice(context.Background(), "inv-1")
	_, ok := apperrors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestGetAndListInvoices(t *testing.T) {
	d := newTestDeps()
	d.reader.ListFunc = func(ctx context.Context, companyID string) ([]domain.Invoice, error) {
		assert.Equal(t, "co-1", companyID)
		return []domain.Invoice{{ID: "b"}, {ID: "a"}}, nil
	}
	uc := d.useCase(3)

	inv, err := uc.GetInvoice(context.Background(), "inv-7")
	require.NoError(t, err)
	assert.Equal(t, "inv-7", inv.ID)

	list, err := uc.ListInvoices(context.Background(), "co-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestNewInvoiceUseCase_AttemptFloor(t *testing.T) {
	d := newTestDeps()
	uc := NewInvoiceUseCase(d.engine, d.reader, d.clients, d.companies, d.recorder, zap.NewNop(), 0)
	assert.Equal(t, 1, uc.maxRetryAttempts)
}

func TestBackoffJitterBounds(t *testing.T) {
	d := newTestDeps()
	uc := d.useCase(3)
	uc.backoffs = []time.Duration{0, 100 * time.Millisecond}

	assert.Equal(t, time.Duration(0), uc.backoff(1))
	for i := 0; i < 50; i++ {
		b := uc.backoff(2)
		assert.GreaterOrEqual(t, b, 80*time.Millisecond)
		assert.LessOrEqual(t, b, 120*time.Millisecond)
	}
	// past the table the last entry is reused
	assert.LessOrEqual(t, uc.backoff(7), 120*time.Millisecond)
}

func TestIsDeadlockError(t *testing.T) {
	assert.True(t, isDeadlockError(createDeadlockError()))
	assert.True(t, isDeadlockError(fmt.Errorf("wrapped: %w", &mysql.MySQLError{Number: 1205})))
	assert.False(t, isDeadlockError(&mysql.MySQLError{Number: 1062}))
	assert.False(t, isDeadlockError(errors.New("plain")))
}
