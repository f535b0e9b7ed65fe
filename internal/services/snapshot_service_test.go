package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dompetku/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	loadSnapshotsSQL = `FROM daily_assets WHERE user_id = \$1 AND date >= \$2 AND date <= \$3 ORDER BY date`
	ledgerScanSQL    = `FROM transactions t JOIN user_wallets w ON w.id = t.wallet_id WHERE t.user_id = \$1 AND w.is_active = true AND t.date <= \$2 ORDER BY t.date`
	insertSnapSQL    = `INSERT INTO daily_assets .* ON CONFLICT \(user_id, date\) DO NOTHING`
)

var snapshotColumns = []string{"user_id", "date", "wallet_balance", "savings_total", "total_assets", "created_at"}

func day(month time.Month, d int) time.Time {
	return time.Date(2026, month, d, 0, 0, 0, 0, time.UTC)
}

func newSnapshotFixture(t *testing.T) (*SnapshotService, sqlmock.Sqlmock) {
	t.Helper()
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewSnapshotService(db, 0)
	s.now = func() time.Time { return testNow }
	return s, m
}

func TestSnapshotService_GetDailyAssets(t *testing.T) {
	t.Run("fills missing days cumulatively", func(t *testing.T) {
		s, m := newSnapshotFixture(t)
		from, to := day(3, 8), day(3, 10)

		m.ExpectQuery(loadSnapshotsSQL).
			WithArgs(testUser, from, to).
			WillReturnRows(sqlmock.NewRows(snapshotColumns).
				AddRow(testUser, day(3, 8), "100", "0", "100", testNow))
		m.ExpectQuery(ledgerScanSQL).
			WithArgs(testUser, to).
			WillReturnRows(sqlmock.NewRows([]string{"date", "type", "amount"}).
				AddRow(day(3, 1), "income", "100").
				AddRow(day(3, 9), "expense", "30").
				AddRow(day(3, 10), "savings", "20"))
		m.ExpectExec(insertSnapSQL).
			WithArgs(testUser, day(3, 9), decimal.NewFromInt(70), decimal.Zero, decimal.NewFromInt(70), testNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		m.ExpectExec(insertSnapSQL).
			WithArgs(testUser, day(3, 10), decimal.NewFromInt(50), decimal.NewFromInt(20), decimal.NewFromInt(70), testNow).
			WillReturnResult(sqlmock.NewResult(0, 1))

		snaps, err := s.GetDailyAssets(context.Background(), testUser, &from, &to)
		require.NoError(t, err)
		require.Len(t, snaps, 3)

		assert.Equal(t, day(3, 8), snaps[0].Date)
		assert.Equal(t, "100", snaps[0].TotalAssets.String())
		assert.Equal(t, "70", snaps[1].WalletBalance.String())
		assert.Equal(t, "50", snaps[2].WalletBalance.String())
		assert.Equal(t, "20", snaps[2].SavingsTotal.String())
		assert.Equal(t, "70", snaps[2].TotalAssets.String())
		assert.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("fully stored range skips the ledger scan", func(t *testing.T) {
		s, m := newSnapshotFixture(t)
		from, to := day(3, 9), day(3, 10)

		m.ExpectQuery(loadSnapshotsSQL).
			WithArgs(testUser, from, to).
			WillReturnRows(sqlmock.NewRows(snapshotColumns).
				AddRow(testUser, day(3, 9), "1", "0", "1", testNow).
				AddRow(testUser, day(3, 10), "2", "0", "2", testNow))

		snaps, err := s.GetDailyAssets(context.Background(), testUser, &from, &to)
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		assert.Equal(t, "2", snaps[1].TotalAssets.String())
		assert.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("defaults to the last 30 days", func(t *testing.T) {
		s, m := newSnapshotFixture(t)

		m.ExpectQuery(loadSnapshotsSQL).
			WithArgs(testUser, day(2, 9), testToday).
			WillReturnRows(sqlmock.NewRows(snapshotColumns))
		m.ExpectQuery(ledgerScanSQL).
			WithArgs(testUser, testToday).
			WillReturnRows(sqlmock.NewRows([]string{"date", "type", "amount"}))
		for i := 0; i < 30; i++ {
			m.ExpectExec(insertSnapSQL).WillReturnResult(sqlmock.NewResult(0, 1))
		}

		snaps, err := s.GetDailyAssets(context.Background(), testUser, nil, nil)
		require.NoError(t, err)
		require.Len(t, snaps, 30)
		assert.Equal(t, day(2, 9), snaps[0].Date)
		assert.Equal(t, testToday, snaps[29].Date)
		assert.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("rejects bad ranges", func(t *testing.T) {
		s, m := newSnapshotFixture(t)

		from, to := day(3, 5), day(3, 1)
		_, err := s.GetDailyAssets(context.Background(), testUser, &from, &to)
		assert.True(t, errors.Is(err, ErrValidation))

		future := day(3, 11)
		_, err = s.GetDailyAssets(context.Background(), testUser, nil, &future)
		assert.True(t, errors.Is(err, ErrValidation))

		longAgo := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		_, err = s.GetDailyAssets(context.Background(), testUser, &longAgo, nil)
		assert.True(t, errors.Is(err, ErrValidation))

		assert.NoError(t, m.ExpectationsWereMet())
	})
}

func TestSnapshotService_Invalidation(t *testing.T) {
	t.Run("deletes the written day and every later day", func(t *testing.T) {
		s, m := newSnapshotFixture(t)

		m.ExpectExec(`DELETE FROM daily_assets WHERE user_id = \$1 AND date >= \$2`).
			WithArgs(testUser, day(3, 2)).
			WillReturnResult(sqlmock.NewResult(0, 9))

		require.NoError(t, s.InvalidateFrom(context.Background(), testUser, time.Date(2026, 3, 2, 17, 30, 0, 0, time.UTC)))
		assert.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("reset deletes everything", func(t *testing.T) {
		s, m := newSnapshotFixture(t)

		m.ExpectExec(`DELETE FROM daily_assets WHERE user_id = \$1`).
			WithArgs(testUser).
			WillReturnResult(sqlmock.NewResult(0, 3))

		require.NoError(t, s.InvalidateAll(context.Background(), testUser))
		assert.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("rows computed before an invalidation are not stored", func(t *testing.T) {
		s, m := newSnapshotFixture(t)

		gen := s.generation(testUser)

		m.ExpectExec(`DELETE FROM daily_assets`).WillReturnResult(sqlmock.NewResult(0, 0))
		require.NoError(t, s.InvalidateFrom(context.Background(), testUser, testToday))

		err := s.persist(context.Background(), testUser, gen, []models.DailyAssetSnapshot{{UserID: testUser, Date: testToday}})
		require.NoError(t, err)
		assert.NoError(t, m.ExpectationsWereMet(), "no insert may follow a newer invalidation")
	})
}
