package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dompetku/backend/internal/database"
	"github.com/dompetku/backend/internal/models"
	"github.com/dompetku/backend/internal/notifier"
)

const defaultWalletType = "cash"

// NewWallet is the input of CreateWallet
type NewWallet struct {
	Name  string
	Type  string
	Color string
	Icon  string
}

// WalletList is the wallet overview returned to clients
type WalletList struct {
	Wallets      []models.WalletWithBalance `json:"wallets"`
	TotalBalance string                     `json:"totalBalance"`
	TotalSavings string                     `json:"totalSavings"`
	TotalAssets  string                     `json:"totalAssets"`
}

// snapshotResetter drops every memoized daily asset row of a user
type snapshotResetter interface {
	InvalidateAll(ctx context.Context, userID string) error
}

type WalletService struct {
	db        *sql.DB
	balances  *BalanceService
	snapshots snapshotResetter
	notifier  notifier.Notifier
	now       func() time.Time
}

func NewWalletService(db *sql.DB, balances *BalanceService, snapshots snapshotResetter, n notifier.Notifier) *WalletService {
	return &WalletService{
		db:        db,
		balances:  balances,
		snapshots: snapshots,
		notifier:  n,
		now:       time.Now,
	}
}

// CreateWallet adds an active wallet; names are unique per user
func (s *WalletService) CreateWallet(ctx context.Context, userID string, in NewWallet) (*models.Wallet, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, &ValidationError{Message: "Validation failed", Fields: map[string]string{"name": "Name is required"}}
	}
	if in.Type == "" {
		in.Type = defaultWalletType
	}

	now := s.now()
	w := &models.Wallet{
		UserID:    userID,
		Name:      in.Name,
		Type:      in.Type,
		Color:     in.Color,
		Icon:      in.Icon,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO user_wallets (user_id, name, type, color, icon, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, $6, $6)
		RETURNING id`,
		userID, w.Name, w.Type, w.Color, w.Icon, now).Scan(&w.ID)
	if database.IsUniqueViolation(err) {
		return nil, newValidationError("Wallet %q already exists", in.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("insert wallet: %w", err)
	}

	s.notifier.Record(ctx, userID, notifier.EventWalletUpdated, map[string]any{
		"walletId": w.ID,
		"action":   "created",
	})
	return w, nil
}

// ListWallets returns the user's wallets with derived balances. Totals only
// count active wallets, even when inactive ones are included in the list.
func (s *WalletService) ListWallets(ctx context.Context, userID string, includeInactive bool) (*WalletList, error) {
	query := `
		SELECT id, user_id, name, type, color, icon, is_active, created_at, updated_at
		FROM user_wallets
		WHERE user_id = $1`
	if !includeInactive {
		query += ` AND is_active = true`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}

	var wallets []models.Wallet
	for rows.Next() {
		var w models.Wallet
		if err := rows.Scan(&w.ID, &w.UserID, &w.Name, &w.Type, &w.Color, &w.Icon, &w.IsActive, &w.CreatedAt, &w.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		wallets = append(wallets, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	list := &WalletList{Wallets: []models.WalletWithBalance{}}
	total := models.WalletTotals{}
	for _, w := range wallets {
		totals, err := s.balances.WalletTotals(ctx, userID, w.ID)
		if err != nil {
			return nil, err
		}
		list.Wallets = append(list.Wallets, models.WalletWithBalance{
			Wallet:       w,
			Balance:      totals.Balance,
			SavingsTotal: totals.SavingsTotal,
		})
		if w.IsActive {
			total = total.Plus(totals)
		}
	}

	list.TotalBalance = total.Balance.String()
	list.TotalSavings = total.SavingsTotal.String()
	list.TotalAssets = total.Assets().String()
	return list, nil
}

// DeactivateWallet soft deletes a wallet. Its rows stay in the ledger but it
// no longer counts toward totals or accepts writes.
func (s *WalletService) DeactivateWallet(ctx context.Context, userID string, walletID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE user_wallets
		SET is_active = false, updated_at = $1
		WHERE id = $2 AND user_id = $3 AND is_active = true`,
		s.now(), walletID, userID)
	if err != nil {
		return fmt.Errorf("deactivate wallet %d: %w", walletID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &NotFoundError{Resource: "Wallet"}
	}

	s.balances.Invalidate(userID, walletID)
	if s.snapshots != nil {
		if err := s.snapshots.InvalidateAll(context.WithoutCancel(ctx), userID); err != nil {
			log.Printf("[WALLET] Failed to reset snapshots for user %s: %v", userID, err)
		}
	}

	s.notifier.Record(ctx, userID, notifier.EventWalletUpdated, map[string]any{
		"walletId": walletID,
		"action":   "deactivated",
	})
	return nil
}
