package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"facturador/internal/auth"
	"facturador/internal/domain"
	"facturador/internal/dto"
	apperrors "facturador/internal/errors"
)

const (
	maxItems    = 100
	maxQuantity = 10000
)

type InvoiceUseCase interface {
	CreateInvoice(ctx context.Context, cmd dto.CreateInvoiceCommand) (*domain.Invoice, error)
	UpdateInvoice(ctx context.Context, id string, cmd dto.UpdateInvoiceCommand) (*domain.Invoice, error)
	DeleteInvoice(ctx context.Context, id string) error
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, companyID string) ([]domain.Invoice, error)
}

type InvoiceController struct {
	useCase InvoiceUseCase
	logger  *zap.Logger
}

func NewInvoiceController(useCase InvoiceUseCase, logger *zap.Logger) *InvoiceController {
	return &InvoiceController{
		useCase: useCase,
		logger:  logger,
	}
}

func (c *InvoiceController) Create(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	var req dto.CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.writeInvalidBody(w, traceID)
		return
	}

	if err := validateCreateRequest(req); err != nil {
		ve, _ := apperrors.IsValidationError(err)
		c.writeValidationError(w, traceID, ve.Message, ve.Details...)
		return
	}

	if err := authorizeCompany(r.Context(), req.CompanyID); err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	cmd := dto.CreateInvoiceCommand{
		ClientID:  req.ClientID,
		CompanyID: req.CompanyID,
		Items:     toLines(req.Items),
		DueDate:   req.DueDate,
	}
	if req.Status != nil {
		status := domain.InvoiceStatus(*req.Status)
		cmd.Status = &status
	}

	inv, err := c.useCase.CreateInvoice(r.Context(), cmd)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusCreated, toInvoiceResponse(traceID, inv))
}

func (c *InvoiceController) List(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	invoices, err := c.useCase.ListInvoices(r.Context(), r.URL.Query().Get("companyId"))
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	resp := dto.InvoiceListResponse{
		TraceID:  traceID,
		Invoices: make([]dto.InvoiceResponse, 0, len(invoices)),
		Count:    len(invoices),
	}
	for i := range invoices {
		resp.Invoices = append(resp.Invoices, toInvoiceResponse("", &invoices[i]))
	}

	c.writeJSON(w, http.StatusOK, resp)
}

func (c *InvoiceController) Get(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	inv, err := c.useCase.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, toInvoiceResponse(traceID, inv))
}

func (c *InvoiceController) Update(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	id := chi.URLParam(r, "id")
	logger := c.logger.With(zap.String("traceId", traceID), zap.String("invoiceId", id))

	var req dto.UpdateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.writeInvalidBody(w, traceID)
		return
	}

	if err := validateUpdateRequest(req); err != nil {
		ve, _ := apperrors.IsValidationError(err)
		c.writeValidationError(w, traceID, ve.Message, ve.Details...)
		return
	}

	if err := c.authorizeInvoice(r.Context(), id); err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	cmd := dto.UpdateInvoiceCommand{
		ClientID: req.ClientID,
		DueDate:  req.DueDate,
	}
	if req.Items != nil {
		cmd.Items = toLines(req.Items)
	}
	if req.Status != nil {
		status := domain.InvoiceStatus(*req.Status)
		cmd.Status = &status
	}

	inv, err := c.useCase.UpdateInvoice(r.Context(), id, cmd)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, toInvoiceResponse(traceID, inv))
}

func (c *InvoiceController) Delete(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	id := chi.URLParam(r, "id")
	logger := c.logger.With(zap.String("traceId", traceID), zap.String("invoiceId", id))

	if err := c.authorizeInvoice(r.Context(), id); err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	if err := c.useCase.DeleteInvoice(r.Context(), id); err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	w.Header().Set("X-Trace-Id", traceID)
	w.WriteHeader(http.StatusNoContent)
}

// authorizeCompany rejects a bearer token issued for another company.
// Requests that passed no auth middleware carry no claims and are let through.
func authorizeCompany(ctx context.Context, companyID string) error {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return nil
	}
	if claims.CompanyID != companyID {
		return apperrors.NewForbiddenError("token does not grant access to company " + companyID)
	}
	return nil
}

// authorizeInvoice checks the token against the invoice's company. An
// invoice never changes company, so reading it outside the write
// transaction is safe.
func (c *InvoiceController) authorizeInvoice(ctx context.Context, id string) error {
	if _, ok := auth.ClaimsFromContext(ctx); !ok {
		return nil
	}
	inv, err := c.useCase.GetInvoice(ctx, id)
	if err != nil {
		return err
	}
	return authorizeCompany(ctx, inv.CompanyID)
}

func validateCreateRequest(req dto.CreateInvoiceRequest) error {
	var details []apperrors.ValidationDetail

	if req.ClientID == "" {
		details = append(details, apperrors.ValidationDetail{Field: "clientId", Message: "clientId is required"})
	}
	if req.CompanyID == "" {
		details = append(details, apperrors.ValidationDetail{Field: "companyId", Message: "companyId is required"})
	}
	if len(req.Items) == 0 {
		details = append(details, apperrors.ValidationDetail{Field: "items", Message: "items must not be empty"})
	}
	details = append(details, validateItems(req.Items)...)
	details = append(details, validateStatus(req.Status)...)

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}

func validateUpdateRequest(req dto.UpdateInvoiceRequest) error {
	var details []apperrors.ValidationDetail

	if req.Items != nil && len(req.Items) == 0 {
		details = append(details, apperrors.ValidationDetail{Field: "items", Message: "items must not be empty"})
	}
	if req.ClientID != nil && *req.ClientID == "" {
		details = append(details, apperrors.ValidationDetail{Field: "clientId", Message: "clientId must not be empty"})
	}
	details = append(details, validateItems(req.Items)...)
	details = append(details, validateStatus(req.Status)...)

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}

// Duplicate product ids are allowed: their quantities are summed for the
// stock check.
func validateItems(items []dto.InvoiceItemRequest) []apperrors.ValidationDetail {
	var details []apperrors.ValidationDetail

	if len(items) > maxItems {
		details = append(details, apperrors.ValidationDetail{
			Field:   "items",
			Message: "items exceeds maximum of 100",
		})
	}

	for idx, item := range items {
		if item.ProductID == "" {
			details = append(details, apperrors.ValidationDetail{
				Field:   "items[" + strconv.Itoa(idx) + "].productId",
				Message: "productId is required",
			})
		}
		if item.Quantity < 1 || item.Quantity > maxQuantity {
			details = append(details, apperrors.ValidationDetail{
				Field:   "items[" + strconv.Itoa(idx) + "].quantity",
				Message: "quantity must be between 1 and 10000",
			})
		}
	}

	return details
}

func validateStatus(status *string) []apperrors.ValidationDetail {
	if status == nil || domain.InvoiceStatus(*status).Valid() {
		return nil
	}
	return []apperrors.ValidationDetail{{
		Field:   "status",
		Message: "status must be one of DRAFT, ISSUED, PAID, CANCELLED",
	}}
}

func (c *InvoiceController) handleUseCaseError(w http.ResponseWriter, traceID string, err error, logger *zap.Logger) {
	if ve, ok := apperrors.IsValidationError(err); ok {
		c.writeValidationError(w, traceID, ve.Message, ve.Details...)
		return
	}

	if ise, ok := apperrors.IsInsufficientStockError(err); ok {
		available, requested := ise.Available, ise.Requested
		c.writeErrorResponse(w, traceID, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error(), &dto.ErrorDetails{
			ProductID:   ise.ProductID,
			ProductName: ise.ProductName,
			Available:   &available,
			Requested:   &requested,
		})
		return
	}

	if pnf, ok := apperrors.IsProductNotFoundError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusNotFound, "PRODUCT_NOT_FOUND", err.Error(), &dto.ErrorDetails{
			ProductID: pnf.ProductID,
		})
		return
	}

	if _, ok := apperrors.IsNotFoundError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		return
	}

	if _, ok := apperrors.IsConflictError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusConflict, "CONFLICT", err.Error(), nil)
		return
	}

	if _, ok := apperrors.IsForbiddenError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
		return
	}

	if _, ok := apperrors.IsDeadlockError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusConflict, "DEADLOCK", err.Error(), nil)
		return
	}

	if ie, ok := apperrors.IsInternalError(err); ok {
		logger.Error("infrastructure failure", zap.String("stage", ie.Message), zap.Error(ie.Cause))
		c.writeErrorResponse(w, traceID, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred", nil)
		return
	}

	logger.Error("unexpected error", zap.Error(err))
	c.writeErrorResponse(w, traceID, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred", nil)
}

func (c *InvoiceController) writeErrorResponse(w http.ResponseWriter, traceID string, statusCode int, code string, message string, details *dto.ErrorDetails) {
	c.writeJSON(w, statusCode, dto.ErrorResponse{
		TraceID:   traceID,
		Status:    statusCode,
		Message:   message,
		Code:      code,
		Details:   details,
		Timestamp: time.Now().UTC(),
	})
}

type validationErrorResponse struct {
	TraceID string                       `json:"traceId"`
	Error   string                       `json:"error"`
	Message string                       `json:"message"`
	Details []apperrors.ValidationDetail `json:"details"`
}

func (c *InvoiceController) writeValidationError(w http.ResponseWriter, traceID string, message string, details ...apperrors.ValidationDetail) {
	c.writeJSON(w, http.StatusBadRequest, validationErrorResponse{
		TraceID: traceID,
		Error:   "VALIDATION_ERROR",
		Message: message,
		Details: details,
	})
}

func (c *InvoiceController) writeInvalidBody(w http.ResponseWriter, traceID string) {
	c.writeValidationError(w, traceID, "invalid JSON body", apperrors.ValidationDetail{
		Field:   "body",
		Message: "request body must be valid JSON",
	})
}

func (c *InvoiceController) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}
