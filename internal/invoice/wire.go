package invoice

import (
	"database/sql"

	"go.uber.org/zap"

	clientrepo "facturador/internal/client/repository"
	companyrepo "facturador/internal/company/repository"
	"facturador/internal/config"
	"facturador/internal/infrastructure/metrics"
	"facturador/internal/infrastructure/mysql"
	"facturador/internal/invoice/controller"
	invoicerepo "facturador/internal/invoice/repository"
	"facturador/internal/invoice/service"
	"facturador/internal/invoice/usecase"
	productrepo "facturador/internal/product/repository"
)

func NewModule(db *sql.DB, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *controller.InvoiceController {
	invoiceRepo := invoicerepo.NewMySQLInvoiceRepository(db)
	itemRepo := invoicerepo.NewMySQLInvoiceItemRepository(db)
	productRepo := productrepo.NewMySQLRepository(db)

	engine := service.NewInvoiceService(
		mysql.NewTxManager(db),
		productRepo,
		invoiceRepo,
		itemRepo,
		logger,
		cfg.Invoice.TxTimeout,
	)

	uc := usecase.NewInvoiceUseCase(
		engine,
		invoiceRepo,
		clientrepo.NewMySQLClientRepository(db),
		companyrepo.NewMySQLCompanyRepository(db),
		m,
		logger,
		cfg.Invoice.MaxRetryAttempts,
	)

	return controller.NewInvoiceController(uc, logger)
}
