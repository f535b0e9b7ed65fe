package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is a user-owned money container. Its balance is never stored;
// it is folded from the ledger on demand.
type Wallet struct {
	ID        int64     `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Type      string    `json:"type" db:"type"`
	Color     string    `json:"color" db:"color"`
	Icon      string    `json:"icon" db:"icon"`
	IsActive  bool      `json:"isActive" db:"is_active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// WalletTotals is the derived state of one wallet (or a sum of wallets)
type WalletTotals struct {
	Balance      decimal.Decimal `json:"balance"`
	SavingsTotal decimal.Decimal `json:"savingsTotal"`
}

// Add accumulates one ledger row into the totals
func (w WalletTotals) Add(t TransactionType, amount decimal.Decimal) WalletTotals {
	return WalletTotals{
		Balance:      w.Balance.Add(BalanceEffect(t, amount)),
		SavingsTotal: w.SavingsTotal.Add(SavingsEffect(t, amount)),
	}
}

// Plus sums two totals
func (w WalletTotals) Plus(o WalletTotals) WalletTotals {
	return WalletTotals{
		Balance:      w.Balance.Add(o.Balance),
		SavingsTotal: w.SavingsTotal.Add(o.SavingsTotal),
	}
}

// Assets is spendable balance plus savings
func (w WalletTotals) Assets() decimal.Decimal {
	return w.Balance.Add(w.SavingsTotal)
}

// WalletWithBalance is a wallet decorated with its derived totals
type WalletWithBalance struct {
	Wallet
	Balance      decimal.Decimal `json:"balance"`
	SavingsTotal decimal.Decimal `json:"savingsTotal"`
}

// SavingsGoal tracks virtual allocations against savings. AllocatedAmount is
// bookkeeping metadata only; it is not backed by ledger rows.
type SavingsGoal struct {
	ID              int64           `json:"id" db:"id"`
	UserID          string          `json:"userId" db:"user_id"`
	GoalName        string          `json:"goalName" db:"goal_name"`
	TargetAmount    decimal.Decimal `json:"targetAmount" db:"target_amount"`
	TargetDate      *time.Time      `json:"targetDate,omitempty" db:"target_date"`
	AllocatedAmount decimal.Decimal `json:"allocatedAmount" db:"allocated_amount"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// Remaining is how much can still be allocated before reaching the target
func (g *SavingsGoal) Remaining() decimal.Decimal {
	return g.TargetAmount.Sub(g.AllocatedAmount)
}

// DailyAssetSnapshot is a memoized end-of-day asset position
type DailyAssetSnapshot struct {
	UserID        string          `json:"userId" db:"user_id"`
	Date          time.Time       `json:"date" db:"date"`
	WalletBalance decimal.Decimal `json:"walletBalance" db:"wallet_balance"`
	SavingsTotal  decimal.Decimal `json:"savingsTotal" db:"savings_total"`
	TotalAssets   decimal.Decimal `json:"totalAssets" db:"total_assets"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}
