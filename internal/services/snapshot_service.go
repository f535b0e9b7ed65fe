package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/dompetku/backend/internal/models"
	"github.com/shopspring/decimal"
)

const (
	defaultSnapshotDays = 30
	defaultMaxRangeDays = 366
)

// SnapshotService memoizes the end-of-day asset position of each user. A
// snapshot is cumulative: it folds every ledger row of active wallets dated on
// or before its day, so any write dated d makes every snapshot from d on stale.
type SnapshotService struct {
	db      *sql.DB
	maxDays int
	now     func() time.Time

	// gens guards persistence against a write that commits between the
	// ledger scan and the upsert
	mu   sync.Mutex
	gens map[string]uint64
}

func NewSnapshotService(db *sql.DB, maxDays int) *SnapshotService {
	if maxDays <= 0 {
		maxDays = defaultMaxRangeDays
	}
	return &SnapshotService{
		db:      db,
		maxDays: maxDays,
		now:     time.Now,
		gens:    make(map[string]uint64),
	}
}

// GetDailyAssets returns one snapshot per day in [from, to]. A nil bound
// defaults to the last 30 days ending today.
func (s *SnapshotService) GetDailyAssets(ctx context.Context, userID string, from, to *time.Time) ([]models.DailyAssetSnapshot, error) {
	today := truncateDay(s.now())
	end := today
	if to != nil {
		end = truncateDay(*to)
	}
	start := end.AddDate(0, 0, -(defaultSnapshotDays - 1))
	if from != nil {
		start = truncateDay(*from)
	}

	if start.After(end) {
		return nil, newValidationError("from must not be after to")
	}
	if end.After(today) {
		return nil, newValidationError("to must not be in the future")
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > s.maxDays {
		return nil, newValidationError("Date range must not exceed %d days", s.maxDays)
	}

	stored, err := s.loadStored(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	if len(stored) == days {
		return orderedSnapshots(stored, start, days), nil
	}

	gen := s.generation(userID)

	computed, err := s.compute(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	var missing []models.DailyAssetSnapshot
	for _, snap := range orderedSnapshots(computed, start, days) {
		key := snap.Date.Format(dateLayout)
		if existing, ok := stored[key]; ok {
			computed[key] = existing
			continue
		}
		missing = append(missing, snap)
	}

	if err := s.persist(ctx, userID, gen, missing); err != nil {
		return nil, err
	}

	return orderedSnapshots(computed, start, days), nil
}

// InvalidateFrom deletes the user's snapshots dated on or after date
func (s *SnapshotService) InvalidateFrom(ctx context.Context, userID string, date time.Time) error {
	s.bump(userID)
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM daily_assets
		WHERE user_id = $1 AND date >= $2`, userID, truncateDay(date))
	if err != nil {
		return fmt.Errorf("invalidate snapshots: %w", err)
	}
	return nil
}

// InvalidateAll deletes every snapshot of the user. Used when the set of
// active wallets changes, which alters history as well.
func (s *SnapshotService) InvalidateAll(ctx context.Context, userID string) error {
	s.bump(userID)
	_, err := s.db.ExecContext(ctx, `DELETE FROM daily_assets WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("invalidate snapshots: %w", err)
	}
	return nil
}

func (s *SnapshotService) loadStored(ctx context.Context, userID string, start, end time.Time) (map[string]models.DailyAssetSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, date, wallet_balance, savings_total, total_assets, created_at
		FROM daily_assets
		WHERE user_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date`, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	defer rows.Close()

	stored := make(map[string]models.DailyAssetSnapshot)
	for rows.Next() {
		var snap models.DailyAssetSnapshot
		if err := rows.Scan(&snap.UserID, &snap.Date, &snap.WalletBalance, &snap.SavingsTotal, &snap.TotalAssets, &snap.CreatedAt); err != nil {
			return nil, err
		}
		snap.Date = truncateDay(snap.Date)
		stored[snap.Date.Format(dateLayout)] = snap
	}
	return stored, rows.Err()
}

// compute folds the ledger once, in date order, and emits the running totals
// at the end of each day in [start, end]
func (s *SnapshotService) compute(ctx context.Context, userID string, start, end time.Time) (map[string]models.DailyAssetSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.date, t.type, t.amount
		FROM transactions t
		JOIN user_wallets w ON w.id = t.wallet_id
		WHERE t.user_id = $1 AND w.is_active = true AND t.date <= $2
		ORDER BY t.date`, userID, end)
	if err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	defer rows.Close()

	type dated struct {
		date   time.Time
		txType models.TransactionType
		amount decimal.Decimal
	}
	var entries []dated
	for rows.Next() {
		var d dated
		var txType string
		if err := rows.Scan(&d.date, &txType, &d.amount); err != nil {
			return nil, err
		}
		d.date = truncateDay(d.date)
		d.txType = models.TransactionType(txType)
		entries = append(entries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	createdAt := s.now()
	result := make(map[string]models.DailyAssetSnapshot)
	running := models.WalletTotals{}
	i := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		for i < len(entries) && !entries[i].date.After(day) {
			running = running.Add(entries[i].txType, entries[i].amount)
			i++
		}
		result[day.Format(dateLayout)] = models.DailyAssetSnapshot{
			UserID:        userID,
			Date:          day,
			WalletBalance: running.Balance,
			SavingsTotal:  running.SavingsTotal,
			TotalAssets:   running.Assets(),
			CreatedAt:     createdAt,
		}
	}
	return result, nil
}

// persist stores computed rows unless an invalidation happened since gen was
// read. The lock is held across the inserts so an invalidation that starts
// afterwards deletes what was written.
func (s *SnapshotService) persist(ctx context.Context, userID string, gen uint64, snaps []models.DailyAssetSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gens[userID] != gen {
		return nil
	}

	for _, snap := range snaps {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO daily_assets (user_id, date, wallet_balance, savings_total, total_assets, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, date) DO NOTHING`,
			snap.UserID, snap.Date, snap.WalletBalance, snap.SavingsTotal, snap.TotalAssets, snap.CreatedAt)
		if err != nil {
			return fmt.Errorf("store snapshot %s: %w", snap.Date.Format(dateLayout), err)
		}
	}
	return nil
}

func (s *SnapshotService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[userID]
}

func (s *SnapshotService) bump(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[userID]++
}

func orderedSnapshots(byDay map[string]models.DailyAssetSnapshot, start time.Time, days int) []models.DailyAssetSnapshot {
	out := make([]models.DailyAssetSnapshot, 0, days)
	for i := 0; i < days; i++ {
		if snap, ok := byDay[start.AddDate(0, 0, i).Format(dateLayout)]; ok {
			out = append(out, snap)
		}
	}
	return out
}
