package product

import (
	"database/sql"

	"go.uber.org/zap"

	"facturador/internal/product/controller"
	"facturador/internal/product/repository"
	"facturador/internal/product/service"
	"facturador/internal/product/usecase"
)

func NewModule(db *sql.DB, logger *zap.Logger) *controller.Controller {
	repo := repository.NewMySQLRepository(db)
	svc := service.NewService(repo)
	uc := usecase.NewProductUseCase(svc)
	return controller.NewController(uc, logger)
}
