package handlers

import (
	"context"
	"net/http"

	"github.com/dompetku/backend/internal/models"
	"github.com/dompetku/backend/internal/services"
	"github.com/shopspring/decimal"
)

type walletStore interface {
	CreateWallet(ctx context.Context, userID string, in services.NewWallet) (*models.Wallet, error)
	ListWallets(ctx context.Context, userID string, includeInactive bool) (*services.WalletList, error)
	DeactivateWallet(ctx context.Context, userID string, walletID int64) error
}

type transferLedger interface {
	Transfer(ctx context.Context, userID string, req services.TransferRequest) (*services.TransferResult, error)
}

type WalletHandler struct {
	wallets        walletStore
	ledger         transferLedger
	validator      *services.ValidationHelper
	exposeInternal bool
}

func NewWalletHandler(wallets walletStore, ledger transferLedger, exposeInternal bool) *WalletHandler {
	return &WalletHandler{
		wallets:        wallets,
		ledger:         ledger,
		validator:      services.NewValidationHelper(),
		exposeInternal: exposeInternal,
	}
}

type createWalletRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Type  string `json:"type,omitempty" validate:"omitempty,max=50"`
	Color string `json:"color,omitempty" validate:"omitempty,max=20"`
	Icon  string `json:"icon,omitempty" validate:"omitempty,max=50"`
}

type transferRequest struct {
	FromWalletID int64           `json:"fromWalletId" validate:"required,gt=0"`
	ToWalletID   int64           `json:"toWalletId" validate:"required,gt=0"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description" validate:"required,max=255"`
	Date         *string         `json:"date,omitempty"`
}

// CreateWallet adds a wallet
// @Summary Create wallet
// @Tags Wallets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createWalletRequest true "Wallet"
// @Success 201 {object} object{success=bool,wallet=models.Wallet}
// @Failure 400 {object} services.ErrorResponse
// @Router /wallets [post]
func (h *WalletHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createWalletRequest
	if !decodeBody(w, r, h.validator, &req) {
		return
	}

	wallet, err := h.wallets.CreateWallet(r.Context(), userID, services.NewWallet{
		Name:  req.Name,
		Type:  req.Type,
		Color: req.Color,
		Icon:  req.Icon,
	})
	if err != nil {
		services.WriteServiceError(w, err, h.exposeInternal)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"wallet":  wallet,
	})
}

// ListWallets returns wallets with their derived balances
// @Summary List wallets
// @Tags Wallets
// @Produce json
// @Security BearerAuth
// @Param includeInactive query bool false "Include deactivated wallets"
// @Success 200 {object} object{success=bool,wallets=[]models.WalletWithBalance,totalBalance=string,totalSavings=string,totalAssets=string}
// @Router /wallets [get]
func (h *WalletHandler) ListWallets(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	includeInactive := r.URL.Query().Get("includeInactive") == "true"

	list, err := h.wallets.ListWallets(r.Context(), userID, includeInactive)
	if err != nil {
		services.WriteServiceError(w, err, h.exposeInternal)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"wallets":      list.Wallets,
		"totalBalance": list.TotalBalance,
		"totalSavings": list.TotalSavings,
		"totalAssets":  list.TotalAssets,
	})
}

// DeleteWallet deactivates a wallet; its history is kept
// @Summary Deactivate wallet
// @Tags Wallets
// @Produce json
// @Security BearerAuth
// @Param walletId path int true "Wallet ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 404 {object} services.ErrorResponse
// @Router /wallets/{walletId} [delete]
func (h *WalletHandler) DeleteWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	walletID, ok := pathID(w, r, "walletId")
	if !ok {
		return
	}

	if err := h.wallets.DeactivateWallet(r.Context(), userID, walletID); err != nil {
		services.WriteServiceError(w, err, h.exposeInternal)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Wallet deactivated",
	})
}

// Transfer moves money between two of the user's wallets atomically
// @Summary Wallet transfer
// @Tags Wallets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body transferRequest true "Transfer"
// @Success 201 {object} object{success=bool,message=string,transfer=services.TransferResult}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /wallet-transfers [post]
func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if !decodeBody(w, r, h.validator, &req) {
		return
	}

	date, err := parseOptionalDate(req.Date)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	result, err := h.ledger.Transfer(r.Context(), userID, services.TransferRequest{
		FromWalletID: req.FromWalletID,
		ToWalletID:   req.ToWalletID,
		Amount:       req.Amount,
		Description:  req.Description,
		Date:         date,
	})
	if err != nil {
		services.WriteServiceError(w, err, h.exposeInternal)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"message":  "Transfer completed",
		"transfer": result,
	})
}
