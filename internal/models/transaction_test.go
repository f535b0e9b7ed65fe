package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBalanceEffect(t *testing.T) {
	amount := decimal.NewFromInt(30000)

	tests := []struct {
		name    string
		txType  TransactionType
		amount  decimal.Decimal
		balance decimal.Decimal
		savings decimal.Decimal
	}{
		{"income adds", TypeIncome, amount, amount, decimal.Zero},
		{"expense subtracts", TypeExpense, amount, amount.Neg(), decimal.Zero},
		{"savings leaves the spendable balance", TypeSavings, amount, amount.Neg(), amount},
		{"transfer out leg is already negative", TypeTransfer, amount.Neg(), amount.Neg(), decimal.Zero},
		{"transfer in leg adds", TypeTransfer, amount, amount, decimal.Zero},
		{"unknown type is ignored", TransactionType("investment"), amount, decimal.Zero, decimal.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.balance.Equal(BalanceEffect(tt.txType, tt.amount)))
			assert.True(t, tt.savings.Equal(SavingsEffect(tt.txType, tt.amount)))
		})
	}
}

func TestWalletTotals_Add(t *testing.T) {
	totals := WalletTotals{}.
		Add(TypeIncome, decimal.NewFromInt(100000)).
		Add(TypeExpense, decimal.NewFromInt(30000)).
		Add(TypeSavings, decimal.NewFromInt(20000))

	assert.Equal(t, "50000", totals.Balance.String())
	assert.Equal(t, "20000", totals.SavingsTotal.String())
	assert.Equal(t, "70000", totals.Assets().String())

	sum := totals.Plus(WalletTotals{Balance: decimal.NewFromInt(5), SavingsTotal: decimal.NewFromInt(1)})
	assert.Equal(t, "50005", sum.Balance.String())
	assert.Equal(t, "20001", sum.SavingsTotal.String())
}

func TestTransactionType_Valid(t *testing.T) {
	assert.True(t, TypeIncome.Valid())
	assert.True(t, TypeTransfer.Valid())
	assert.False(t, TransactionType("refund").Valid())
	assert.True(t, TypeExpense.Debits())
	assert.True(t, TypeSavings.Debits())
	assert.False(t, TypeIncome.Debits())
}

func TestSavingsGoal_Remaining(t *testing.T) {
	g := &SavingsGoal{TargetAmount: decimal.NewFromInt(1000), AllocatedAmount: decimal.NewFromInt(250)}
	assert.Equal(t, "750", g.Remaining().String())
}
