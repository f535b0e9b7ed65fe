package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the kind of monetary event a ledger row records
type TransactionType string

const (
	TypeIncome   TransactionType = "income"
	TypeExpense  TransactionType = "expense"
	TypeSavings  TransactionType = "savings"
	TypeTransfer TransactionType = "transfer"
)

// TransferWalletToWallet tags both legs of an internal wallet transfer
const TransferWalletToWallet = "wallet_to_wallet"

// Valid reports whether t is one of the known ledger types
func (t TransactionType) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeSavings, TypeTransfer:
		return true
	}
	return false
}

// Debits reports whether a positive amount of this type leaves the spendable balance
func (t TransactionType) Debits() bool {
	return t == TypeExpense || t == TypeSavings
}

// Transaction represents a ledger entry
type Transaction struct {
	ID              int64           `json:"id" db:"id"`
	UserID          string          `json:"userId" db:"user_id"`
	WalletID        *int64          `json:"walletId" db:"wallet_id"`
	Type            TransactionType `json:"type" db:"type"`
	Description     string          `json:"description" db:"description"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Category        *string         `json:"category,omitempty" db:"category"`
	Source          *string         `json:"source,omitempty" db:"source"`
	GoalName        *string         `json:"goalName,omitempty" db:"goal_name"`
	AssetName       *string         `json:"assetName,omitempty" db:"asset_name"`
	TransferType    *string         `json:"transferType,omitempty" db:"transfer_type"`
	TransferGroupID *string         `json:"transferGroupId,omitempty" db:"transfer_group_id"`
	Date            time.Time       `json:"date" db:"date"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// IsTransferLeg reports whether the row is one side of a wallet transfer
func (t *Transaction) IsTransferLeg() bool {
	return t.Type == TypeTransfer
}

// BalanceEffect returns how a stored amount of the given type moves the
// spendable wallet balance. Income and transfer legs carry their own sign;
// expenses and savings are stored positive and subtracted.
func BalanceEffect(t TransactionType, amount decimal.Decimal) decimal.Decimal {
	switch t {
	case TypeIncome, TypeTransfer:
		return amount
	case TypeExpense, TypeSavings:
		return amount.Neg()
	}
	return decimal.Zero
}

// SavingsEffect returns how a stored amount contributes to a wallet's savings total
func SavingsEffect(t TransactionType, amount decimal.Decimal) decimal.Decimal {
	if t == TypeSavings {
		return amount
	}
	return decimal.Zero
}
