package handlers

import (
	"context"
	"net/http"

	"github.com/dompetku/backend/internal/models"
	"github.com/dompetku/backend/internal/services"
	"github.com/shopspring/decimal"
)

// transactionLedger is the part of the ledger the transaction endpoints use
type transactionLedger interface {
	CreateTransaction(ctx context.Context, userID string, in services.NewTransaction) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, userID string, id int64, patch services.TransactionPatch) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID string, id int64) (bool, error)
	GetUserTransactions(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error)
	GetTransaction(ctx context.Context, userID string, id int64) (*models.Transaction, error)
}

type TransactionHandler struct {
	ledger         transactionLedger
	validator      *services.ValidationHelper
	exposeInternal bool
}

func NewTransactionHandler(ledger transactionLedger, exposeInternal bool) *TransactionHandler {
	return &TransactionHandler{
		ledger:         ledger,
		validator:      services.NewValidationHelper(),
		exposeInternal: exposeInternal,
	}
}

type createTransactionRequest struct {
	Description  string          `json:"description" validate:"required,max=255"`
	Amount       decimal.Decimal `json:"amount"`
	Type         string          `json:"type" validate:"required,oneof=income expense savings transfer"`
	WalletID     *int64          `json:"walletId" validate:"required,gt=0"`
	Category     *string         `json:"category,omitempty" validate:"omitempty,max=100"`
	Source       *string         `json:"source,omitempty" validate:"omitempty,max=100"`
	GoalName     *string         `json:"goalName,omitempty" validate:"omitempty,max=100"`
	AssetName    *string         `json:"assetName,omitempty" validate:"omitempty,max=100"`
	TransferType *string         `json:"transferType,omitempty"`
	Date         *string         `json:"date,omitempty"`
}

type updateTransactionRequest struct {
	Description *string          `json:"description,omitempty" validate:"omitempty,max=255"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Type        *string          `json:"type,omitempty"`
	WalletID    *int64           `json:"walletId,omitempty"`
	Category    *string          `json:"category,omitempty" validate:"omitempty,max=100"`
	Source      *string          `json:"source,omitempty" validate:"omitempty,max=100"`
	GoalName    *string          `json:"goalName,omitempty" validate:"omitempty,max=100"`
	AssetName   *string          `json:"assetName,omitempty" validate:"omitempty,max=100"`
	Date        *string          `json:"date,omitempty"`
}

// CreateTransaction records income, an expense or savings
// @Summary Create transaction
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createTransactionRequest true "Transaction"
// @Success 201 {object} object{success=bool,message=string,transaction=models.Transaction}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions [post]
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createTransactionRequest
	if !decodeBody(w, r, h.validator, &req) {
		return
	}

	if models.TransactionType(req.Type) == models.TypeTransfer {
		services.SendErrorResponse(w, "Transfers must be created through /api/v1/wallet-transfers", http.StatusBadRequest, nil)
		return
	}

	date, err := parseOptionalDate(req.Date)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	tx, err := h.ledger.CreateTransaction(r.Context(), userID, services.NewTransaction{
		Description:  req.Description,
		Amount:       req.Amount,
		Type:         models.TransactionType(req.Type),
		WalletID:     req.WalletID,
		Category:     req.Category,
		Source:       req.Source,
		GoalName:     req.GoalName,
		AssetName:    req.AssetName,
		TransferType: req.TransferType,
		Date:         date,
	})
	if err != nil {
		services.WriteServiceError(w, err, h.exposeInternal)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"message":     "Transaction created",
		"transaction": tx,
	})
}

// UpdateTransaction edits a transaction. Type and wallet cannot change.
// @Summary Update transaction
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Param request body updateTransactionRequest true "Changed fields"
// @Success 200 {object} object{success=bool,message=string,transaction=models.Transaction}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{id} [put]
func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req updateTransactionRequest
	if !decodeBody(w, r, h.validator, &req) {
		return
	}

	if req.Type != nil || req.WalletID != nil {
		services.SendErrorResponse(w, "Transaction type and wallet cannot be changed", http.StatusBadRequest, nil)
		return
	}

	date, err := parseOptionalDate(req.Date)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	tx, err := h.ledger.UpdateTransaction(r.Context(), userID, id, services.TransactionPatch{
		Description: req.Description,
		Amount:      req.Amount,
		Category:    req.Category,
		Source:      req.Source,
		GoalName:    req.GoalName,
		AssetName:   req.AssetName,
		Date:        date,
	})
	if err != nil {
		services.WriteServiceError(w, err, h.exposeInternal)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Transaction updated",
		"transaction": tx,
	})
}

// DeleteTransaction removes a transaction; deleting a transfer leg removes both legs
// @Summary Delete transaction
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	deleted, err := h.ledger.DeleteTransaction(r.Context(), userID, id)
	if err != nil {
		services.WriteServiceError(w, err, h.exposeInternal)
		return
	}
	if !deleted {
		services.SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Transaction deleted",
	})
}

// ListTransactions returns the user's transactions, newest first
// @Summary List transactions
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (default 50, max 500)"
// @Param offset query int false "Offset"
// @Success 200 {object} object{success=bool,transactions=[]models.Transaction}
// @Router /transactions [get]
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		services.SendErrorResponse(w, "Invalid limit", http.StatusBadRequest, nil)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		services.SendErrorResponse(w, "Invalid offset", http.StatusBadRequest, nil)
		return
	}

	txs, err := h.ledger.GetUserTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		services.WriteServiceError(w, err, h.exposeInternal)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"transactions": txs,
	})
}

// GetTransaction returns one transaction
// @Summary Get transaction
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Success 200 {object} object{success=bool,transaction=models.Transaction}
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{id} [get]
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	tx, err := h.ledger.GetTransaction(r.Context(), userID, id)
	if err != nil {
		services.WriteServiceError(w, err, h.exposeInternal)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"transaction": tx,
	})
}
