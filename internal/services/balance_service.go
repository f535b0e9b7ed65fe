package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dompetku/backend/internal/models"
	"github.com/shopspring/decimal"
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// BalanceService derives wallet balances by folding ledger rows. There is no
// stored balance column; the optional cache is a projection that the ledger
// invalidates on every committed write.
type BalanceService struct {
	db    *sql.DB
	cache *balanceCache
}

func NewBalanceService(db *sql.DB, cacheEnabled bool) *BalanceService {
	s := &BalanceService{db: db}
	if cacheEnabled {
		s.cache = newBalanceCache()
	}
	return s
}

// FoldBalance applies the sign table to a slice of ledger rows
func FoldBalance(txs []models.Transaction) models.WalletTotals {
	totals := models.WalletTotals{}
	for _, tx := range txs {
		totals = totals.Add(tx.Type, tx.Amount)
	}
	return totals
}

// CalculateWalletBalance returns the spendable balance of one wallet. Rows are
// included whether or not the wallet is still active.
func (s *BalanceService) CalculateWalletBalance(ctx context.Context, userID string, walletID int64) (decimal.Decimal, error) {
	totals, err := s.WalletTotals(ctx, userID, walletID)
	if err != nil {
		return decimal.Zero, err
	}
	return totals.Balance, nil
}

// WalletTotals returns balance and savings total of one wallet
func (s *BalanceService) WalletTotals(ctx context.Context, userID string, walletID int64) (models.WalletTotals, error) {
	key := walletKey{userID: userID, walletID: walletID}

	var gen uint64
	if s.cache != nil {
		totals, g, ok := s.cache.get(key)
		if ok {
			return totals, nil
		}
		gen = g
	}

	totals, err := s.walletTotalsTx(ctx, s.db, userID, walletID)
	if err != nil {
		return models.WalletTotals{}, err
	}

	if s.cache != nil {
		s.cache.put(key, totals, gen)
	}
	return totals, nil
}

// CalculateTotalBalance sums the totals of the user's active wallets only
func (s *BalanceService) CalculateTotalBalance(ctx context.Context, userID string) (models.WalletTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM user_wallets
		WHERE user_id = $1 AND is_active = true
		ORDER BY id`, userID)
	if err != nil {
		return models.WalletTotals{}, fmt.Errorf("list active wallets: %w", err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return models.WalletTotals{}, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return models.WalletTotals{}, err
	}

	total := models.WalletTotals{}
	for _, id := range ids {
		totals, err := s.WalletTotals(ctx, userID, id)
		if err != nil {
			return models.WalletTotals{}, err
		}
		total = total.Plus(totals)
	}
	return total, nil
}

// Invalidate drops the cached totals of a wallet. Called by the ledger after
// every commit that touches the wallet.
func (s *BalanceService) Invalidate(userID string, walletID int64) {
	if s.cache != nil {
		s.cache.invalidate(walletKey{userID: userID, walletID: walletID})
	}
}

// walletTotalsTx folds the wallet's rows through q, bypassing the cache.
// The ledger calls it inside a transaction that holds the wallet row lock.
func (s *BalanceService) walletTotalsTx(ctx context.Context, q queryer, userID string, walletID int64) (models.WalletTotals, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT type, amount FROM transactions
		WHERE user_id = $1 AND wallet_id = $2`, userID, walletID)
	if err != nil {
		return models.WalletTotals{}, fmt.Errorf("load wallet %d rows: %w", walletID, err)
	}
	defer rows.Close()

	totals := models.WalletTotals{}
	for rows.Next() {
		var txType string
		var amount decimal.Decimal
		if err := rows.Scan(&txType, &amount); err != nil {
			return models.WalletTotals{}, err
		}
		totals = totals.Add(models.TransactionType(txType), amount)
	}
	return totals, rows.Err()
}

type walletKey struct {
	userID   string
	walletID int64
}

type cacheEntry struct {
	gen    uint64
	valid  bool
	totals models.WalletTotals
}

// balanceCache stores folded totals per wallet. Each entry carries a
// generation bumped on invalidation; a reader may only store a value computed
// under the generation it observed, so a fold that raced a write is dropped.
type balanceCache struct {
	mu      sync.Mutex
	entries map[walletKey]*cacheEntry
}

func newBalanceCache() *balanceCache {
	return &balanceCache{entries: make(map[walletKey]*cacheEntry)}
}

func (c *balanceCache) get(key walletKey) (models.WalletTotals, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return models.WalletTotals{}, 0, false
	}
	return e.totals, e.gen, e.valid
}

func (c *balanceCache) put(key walletKey, totals models.WalletTotals, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		if gen != 0 {
			return
		}
		e = &cacheEntry{}
		c.entries[key] = e
	}
	if e.gen != gen {
		return
	}
	e.totals = totals
	e.valid = true
}

func (c *balanceCache) invalidate(key walletKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	e.gen++
	e.valid = false
	e.totals = models.WalletTotals{}
}
