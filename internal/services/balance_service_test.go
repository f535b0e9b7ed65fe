package services

import (
	"context"
	"math/rand"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dompetku/backend/internal/config"
	"github.com/dompetku/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldBalance(t *testing.T) {
	txs := []models.Transaction{
		{Type: models.TypeIncome, Amount: decimal.NewFromInt(100000)},
		{Type: models.TypeExpense, Amount: decimal.NewFromInt(30000)},
		{Type: models.TypeSavings, Amount: decimal.NewFromInt(20000)},
		{Type: models.TypeTransfer, Amount: decimal.NewFromInt(-10000)},
		{Type: models.TypeTransfer, Amount: decimal.NewFromInt(2500)},
	}

	totals := FoldBalance(txs)
	assert.Equal(t, "42500", totals.Balance.String())
	assert.Equal(t, "20000", totals.SavingsTotal.String())
	assert.True(t, FoldBalance(nil).Balance.IsZero())
}

// Folding any accepted sequence never goes negative when each debit was only
// accepted while the running balance covered it
func TestFoldBalance_NeverNegativeUnderAdmission(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	types := []models.TransactionType{models.TypeIncome, models.TypeExpense, models.TypeSavings, models.TypeTransfer}

	for i := 0; i < 200; i++ {
		var accepted []models.Transaction
		running := models.WalletTotals{}

		for j := 0; j < 50; j++ {
			txType := types[rng.Intn(len(types))]
			amount := decimal.NewFromInt(int64(rng.Intn(100000) + 1))
			if txType == models.TypeTransfer && rng.Intn(2) == 0 {
				amount = amount.Neg()
			}

			next := running.Add(txType, amount)
			if next.Balance.IsNegative() {
				continue
			}
			running = next
			accepted = append(accepted, models.Transaction{Type: txType, Amount: amount})
		}

		folded := FoldBalance(accepted)
		require.True(t, folded.Balance.Equal(running.Balance), "iteration %d", i)
		require.False(t, folded.Balance.IsNegative(), "iteration %d", i)
		require.False(t, folded.SavingsTotal.IsNegative(), "iteration %d", i)
	}
}

func TestBalanceService_Cache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewBalanceService(db, true)
	ctx := context.Background()

	mock.ExpectQuery(walletRowsSQL).WithArgs(testUser, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"type", "amount"}).AddRow("income", "100"))

	first, err := s.CalculateWalletBalance(ctx, testUser, 1)
	require.NoError(t, err)
	second, err := s.CalculateWalletBalance(ctx, testUser, 1)
	require.NoError(t, err)
	assert.Equal(t, "100", first.String())
	assert.Equal(t, "100", second.String())
	require.NoError(t, mock.ExpectationsWereMet(), "second read must be served from cache")

	s.Invalidate(testUser, 1)
	mock.ExpectQuery(walletRowsSQL).WithArgs(testUser, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"type", "amount"}).AddRow("income", "100").AddRow("expense", "40"))

	third, err := s.CalculateWalletBalance(ctx, testUser, 1)
	require.NoError(t, err)
	assert.Equal(t, "60", third.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceService_CacheDisabled(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewBalanceService(db, false)
	for i := 0; i < 2; i++ {
		mock.ExpectQuery(walletRowsSQL).WithArgs(testUser, int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"type", "amount"}).AddRow("income", "5"))
	}

	for i := 0; i < 2; i++ {
		_, err := s.WalletTotals(context.Background(), testUser, 1)
		require.NoError(t, err)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
	s.Invalidate(testUser, 1)
}

func TestBalanceService_SharedBackendSeesOtherInstanceWrites(t *testing.T) {
	t.Setenv("REALTIME_BACKEND", "redis")
	rt := config.LoadRealtimeConfig()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	instanceA := NewBalanceService(db, rt.BalanceCache)
	instanceB := NewBalanceService(db, rt.BalanceCache)
	ctx := context.Background()

	mock.ExpectQuery(walletRowsSQL).WithArgs(testUser, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"type", "amount"}).AddRow("income", "100000"))
	before, err := instanceB.CalculateWalletBalance(ctx, testUser, 1)
	require.NoError(t, err)
	assert.Equal(t, "100000", before.String())

	// expense committed through instance A
	instanceA.Invalidate(testUser, 1)

	mock.ExpectQuery(walletRowsSQL).WithArgs(testUser, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"type", "amount"}).AddRow("income", "100000").AddRow("expense", "30000"))
	after, err := instanceB.CalculateWalletBalance(ctx, testUser, 1)
	require.NoError(t, err)
	assert.Equal(t, "70000", after.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceCache_StalePutIsDropped(t *testing.T) {
	c := newBalanceCache()
	key := walletKey{userID: testUser, walletID: 1}
	stale := models.WalletTotals{Balance: decimal.NewFromInt(100)}

	// A reader observes generation 0, then a write invalidates before it stores
	_, gen, ok := c.get(key)
	require.False(t, ok)
	c.invalidate(key)
	c.put(key, stale, gen)

	_, _, ok = c.get(key)
	assert.False(t, ok)

	// A reader that observed the current generation may store
	_, gen, _ = c.get(key)
	c.put(key, stale, gen)
	totals, _, ok := c.get(key)
	assert.True(t, ok)
	assert.Equal(t, "100", totals.Balance.String())
}

func TestBalanceService_CalculateTotalBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewBalanceService(db, true)

	mock.ExpectQuery(`SELECT id FROM user_wallets WHERE user_id = \$1 AND is_active = true ORDER BY id`).
		WithArgs(testUser).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))
	mock.ExpectQuery(walletRowsSQL).WithArgs(testUser, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"type", "amount"}).
			AddRow("income", "100000").
			AddRow("savings", "20000"))
	mock.ExpectQuery(walletRowsSQL).WithArgs(testUser, int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"type", "amount"}).
			AddRow("transfer", "5000"))

	total, err := s.CalculateTotalBalance(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, "85000", total.Balance.String())
	assert.Equal(t, "20000", total.SavingsTotal.String())
	assert.Equal(t, "105000", total.Assets().String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
