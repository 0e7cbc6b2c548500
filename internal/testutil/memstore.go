package testutil

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"

	"facturador/internal/domain"
	"facturador/internal/errors"
	"facturador/internal/infrastructure/mysql"
)

var errUnsupported = stderrors.New("memstore: raw SQL is not supported")

// MemStore is an in-memory stand-in for the MySQL product and invoice
// repositories. Transactions are fully serialized: BeginTx takes the store
// lock and Commit/Rollback release it, and Rollback restores the snapshot
// taken at BeginTx.
type MemStore struct {
	txLock sync.Mutex

	mu       sync.Mutex
	products map[string]domain.Product
	invoices map[string]domain.Invoice
	items    map[string][]domain.InvoiceItem

	failures map[string]error

	BeginCount    int
	CommitCount   int
	RollbackCount int
}

func NewMemStore() *MemStore {
	return &MemStore{
		products: map[string]domain.Product{},
		invoices: map[string]domain.Invoice{},
		items:    map[string][]domain.InvoiceItem{},
		failures: map[string]error{},
	}
}

// FailOn makes the named store method return err until cleared with a nil err.
func (s *MemStore) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

func (s *MemStore) failure(method string) error {
	return s.failures[method]
}

func (s *MemStore) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *MemStore) Stock(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID].Stock
}

func (s *MemStore) Invoice(id string) (domain.Invoice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return domain.Invoice{}, false
	}
	inv.Items = append([]domain.InvoiceItem(nil), s.items[id]...)
	return inv, true
}

func (s *MemStore) InvoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}

// HeldQuantity sums, for productID, the item quantities of every invoice
// that currently holds stock.
func (s *MemStore) HeldQuantity(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := 0
	for id, inv := range s.invoices {
		if !inv.Status.HoldsStock() {
			continue
		}
		for _, it := range s.items[id] {
			if it.ProductID == productID {
				held += it.Quantity
			}
		}
	}
	return held
}

func (s *MemStore) BeginTx(ctx context.Context, opts *sql.TxOptions) (mysql.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.txLock.Lock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("BeginTx"); err != nil {
		s.txLock.Unlock()
		return nil, err
	}
	s.BeginCount++
	return &memTx{store: s, snapshot: s.snapshot()}, nil
}

type memSnapshot struct {
	products map[string]domain.Product
	invoices map[string]domain.Invoice
	items    map[string][]domain.InvoiceItem
}

func (s *MemStore) snapshot() memSnapshot {
	snap := memSnapshot{
		products: make(map[string]domain.Product, len(s.products)),
		invoices: make(map[string]domain.Invoice, len(s.invoices)),
		items:    make(map[string][]domain.InvoiceItem, len(s.items)),
	}
	for k, v := range s.products {
		snap.products[k] = v
	}
	for k, v := range s.invoices {
		snap.invoices[k] = v
	}
	for k, v := range s.items {
		snap.items[k] = append([]domain.InvoiceItem(nil), v...)
	}
	return snap
}

type memTx struct {
	store    *MemStore
	snapshot memSnapshot
	done     bool
}

func (t *memTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, errUnsupported
}

func (t *memTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, errUnsupported
}

func (t *memTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.store.mu.Lock()
	err := t.store.failure("Commit")
	if err == nil {
		t.store.CommitCount++
	} else {
		t.restore()
	}
	t.store.mu.Unlock()

	t.done = true
	t.store.txLock.Unlock()
	return err
}

func (t *memTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.store.mu.Lock()
	t.restore()
	t.store.RollbackCount++
	t.store.mu.Unlock()

	t.done = true
	t.store.txLock.Unlock()
	return nil
}

func (t *memTx) restore() {
	t.store.products = t.snapshot.products
	t.store.invoices = t.snapshot.invoices
	t.store.items = t.snapshot.items
}

func (s *MemStore) FindByIDsForUpdate(ctx context.Context, tx mysql.Tx, ids []string, companyID string) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindByIDsForUpdate"); err != nil {
		return nil, err
	}

	var out []domain.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok && p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) ApplyStockDelta(ctx context.Context, tx mysql.Tx, productID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ApplyStockDelta"); err != nil {
		return err
	}

	p, ok := s.products[productID]
	if !ok || p.Stock+delta < 0 {
		return errors.NewConflictError(fmt.Sprintf("stock delta %d rejected for product %s", delta, productID))
	}
	p.Stock += delta
	s.products[productID] = p
	return nil
}

func (s *MemStore) FindByIDForUpdate(ctx context.Context, tx mysql.Tx, id string) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindByIDForUpdate"); err != nil {
		return nil, err
	}

	inv, ok := s.invoices[id]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("invoice with id %s not found", id))
	}
	inv.Items = append([]domain.InvoiceItem(nil), s.items[id]...)
	return &inv, nil
}

func (s *MemStore) Insert(ctx context.Context, tx mysql.Tx, inv *domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Insert"); err != nil {
		return err
	}

	row := *inv
	row.Items = nil
	s.invoices[inv.ID] = row
	return nil
}

func (s *MemStore) Update(ctx context.Context, tx mysql.Tx, inv *domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Update"); err != nil {
		return err
	}

	if _, ok := s.invoices[inv.ID]; !ok {
		return errors.NewNotFoundError(fmt.Sprintf("invoice with id %s not found", inv.ID))
	}
	row := *inv
	row.Items = nil
	s.invoices[inv.ID] = row
	return nil
}

func (s *MemStore) Delete(ctx context.Context, tx mysql.Tx, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Delete"); err != nil {
		return err
	}

	if _, ok := s.invoices[id]; !ok {
		return errors.NewNotFoundError(fmt.Sprintf("invoice with id %s not found", id))
	}
	delete(s.invoices, id)
	delete(s.items, id)
	return nil
}

func (s *MemStore) InsertBatch(ctx context.Context, tx mysql.Tx, items []domain.InvoiceItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("InsertBatch"); err != nil {
		return err
	}

	for _, it := range items {
		s.items[it.InvoiceID] = append(s.items[it.InvoiceID], it)
	}
	return nil
}

func (s *MemStore) DeleteByInvoiceID(ctx context.Context, tx mysql.Tx, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteByInvoiceID"); err != nil {
		return err
	}

	delete(s.items, invoiceID)
	return nil
}
