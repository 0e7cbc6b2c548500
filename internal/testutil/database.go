package testutil

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"facturador/internal/infrastructure/mysql"
)

const defaultTestDSN = "root:@tcp(localhost:3306)/facturador_test?parseTime=true&clientFoundRows=true&loc=UTC"

// SetupTestDB opens the integration database named by TEST_DB_DSN and skips
// the test when it cannot be reached.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = defaultTestDSN
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("test database not available: %v", err)
	}

	return db
}

// SetupTestTables applies the embedded schema migrations.
func SetupTestTables(t *testing.T, db *sql.DB) {
	t.Helper()

	if err := mysql.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
}

// CleanupTestDB empties every table, children first, and closes db.
func CleanupTestDB(t *testing.T, db *sql.DB) {
	if db == nil {
		return
	}

	for _, table := range []string{"InvoiceItem", "Invoice", "Product", "Client", "Company"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}

	db.Close()
}

func SeedCompany(t *testing.T, db *sql.DB, name string) string {
	t.Helper()

	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO Company (id, name, taxId) VALUES (?, ?, ?)`, id, name, "TAX-"+id[:8])
	if err != nil {
		t.Fatalf("failed to seed company: %v", err)
	}
	return id
}

func SeedClient(t *testing.T, db *sql.DB, companyID, name string) string {
	t.Helper()

	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO Client (id, name, email, companyId) VALUES (?, ?, ?, ?)`,
		id, name, id[:8]+"@example.com", companyID)
	if err != nil {
		t.Fatalf("failed to seed client: %v", err)
	}
	return id
}

// SeedProduct inserts a product; price and taxRate are decimal strings.
func SeedProduct(t *testing.T, db *sql.DB, companyID, name, price string, stock int, taxRate string) string {
	t.Helper()

	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO Product (id, name, price, stock, taxRate, companyId) VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, price, stock, taxRate, companyID)
	if err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	return id
}

func ProductStock(t *testing.T, db *sql.DB, productID string) int {
	t.Helper()

	var stock int
	if err := db.QueryRow(`SELECT stock FROM Product WHERE id = ?`, productID).Scan(&stock); err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	return stock
}
