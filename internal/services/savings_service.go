package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dompetku/backend/internal/database"
	"github.com/dompetku/backend/internal/models"
	"github.com/dompetku/backend/internal/notifier"
	"github.com/shopspring/decimal"
)

// NewGoal is the input of CreateGoal
type NewGoal struct {
	GoalName     string
	TargetAmount decimal.Decimal
	TargetDate   *time.Time
}

// Allocation moves part of a wallet's savings total onto a goal
type Allocation struct {
	GoalID   int64
	WalletID int64
	Amount   decimal.Decimal
}

// SavingsService keeps goal allocations. Allocations are bookkeeping on the
// goal row only and never write ledger rows.
type SavingsService struct {
	db       *sql.DB
	balances *BalanceService
	notifier notifier.Notifier
	now      func() time.Time
}

func NewSavingsService(db *sql.DB, balances *BalanceService, n notifier.Notifier) *SavingsService {
	return &SavingsService{
		db:       db,
		balances: balances,
		notifier: n,
		now:      time.Now,
	}
}

const goalColumns = `id, user_id, goal_name, target_amount, target_date, allocated_amount, created_at, updated_at`

func (s *SavingsService) CreateGoal(ctx context.Context, userID string, in NewGoal) (*models.SavingsGoal, error) {
	fields := map[string]string{}
	in.GoalName = strings.TrimSpace(in.GoalName)
	if in.GoalName == "" {
		fields["goalName"] = "Goal name is required"
	}
	if !in.TargetAmount.IsPositive() {
		fields["targetAmount"] = "Target amount must be greater than 0"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Message: "Validation failed", Fields: fields}
	}

	now := s.now()
	goal := &models.SavingsGoal{
		UserID:          userID,
		GoalName:        in.GoalName,
		TargetAmount:    in.TargetAmount,
		TargetDate:      in.TargetDate,
		AllocatedAmount: decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO savings_goals (user_id, goal_name, target_amount, target_date, allocated_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $5)
		RETURNING id`,
		userID, goal.GoalName, goal.TargetAmount, goal.TargetDate, now).Scan(&goal.ID)
	if database.IsUniqueViolation(err) {
		return nil, newValidationError("Savings goal %q already exists", in.GoalName)
	}
	if err != nil {
		return nil, fmt.Errorf("insert savings goal: %w", err)
	}

	s.recordGoal(ctx, userID, goal, "created")
	return goal, nil
}

func (s *SavingsService) ListGoals(ctx context.Context, userID string) ([]models.SavingsGoal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+goalColumns+`
		FROM savings_goals
		WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list savings goals: %w", err)
	}
	defer rows.Close()

	goals := []models.SavingsGoal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

// Allocate assigns savings to a goal. The goal's allocated amount may not
// pass its target or the wallet's savings total.
func (s *SavingsService) Allocate(ctx context.Context, userID string, a Allocation) (*models.SavingsGoal, error) {
	if !a.Amount.IsPositive() {
		return nil, newValidationError("Amount must be greater than 0")
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	goal, err := lockGoal(ctx, dbTx, userID, a.GoalID)
	if err != nil {
		return nil, err
	}

	if _, err := lockWallet(ctx, dbTx, userID, a.WalletID); err != nil {
		return nil, err
	}

	if goal.AllocatedAmount.Add(a.Amount).GreaterThan(goal.TargetAmount) {
		return nil, newValidationError("Allocation exceeds goal target: remaining %s, requested %s",
			goal.Remaining().String(), a.Amount.String())
	}

	totals, err := s.balances.walletTotalsTx(ctx, dbTx, userID, a.WalletID)
	if err != nil {
		return nil, err
	}
	// The goal's running total may never exceed what the wallet has saved
	if goal.AllocatedAmount.Add(a.Amount).GreaterThan(totals.SavingsTotal) {
		available := decimal.Max(totals.SavingsTotal.Sub(goal.AllocatedAmount), decimal.Zero)
		return nil, newValidationError("Allocation exceeds savings in wallet %d: available %s, requested %s",
			a.WalletID, available.String(), a.Amount.String())
	}

	goal.AllocatedAmount = goal.AllocatedAmount.Add(a.Amount)
	if err := s.saveAllocation(ctx, dbTx, goal); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit allocation: %w", err)
	}

	s.recordGoal(ctx, userID, goal, "allocated")
	return goal, nil
}

// Deallocate returns part of a goal's allocation
func (s *SavingsService) Deallocate(ctx context.Context, userID string, goalID int64, amount decimal.Decimal) (*models.SavingsGoal, error) {
	if !amount.IsPositive() {
		return nil, newValidationError("Amount must be greater than 0")
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	goal, err := lockGoal(ctx, dbTx, userID, goalID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(goal.AllocatedAmount) {
		return nil, newValidationError("Deallocation exceeds allocated amount: allocated %s, requested %s",
			goal.AllocatedAmount.String(), amount.String())
	}

	goal.AllocatedAmount = goal.AllocatedAmount.Sub(amount)
	if err := s.saveAllocation(ctx, dbTx, goal); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit deallocation: %w", err)
	}

	s.recordGoal(ctx, userID, goal, "deallocated")
	return goal, nil
}

func (s *SavingsService) saveAllocation(ctx context.Context, q queryer, goal *models.SavingsGoal) error {
	goal.UpdatedAt = s.now()
	_, err := q.ExecContext(ctx, `
		UPDATE savings_goals
		SET allocated_amount = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4`,
		goal.AllocatedAmount, goal.UpdatedAt, goal.ID, goal.UserID)
	if err != nil {
		return fmt.Errorf("update savings goal %d: %w", goal.ID, err)
	}
	return nil
}

func (s *SavingsService) recordGoal(ctx context.Context, userID string, goal *models.SavingsGoal, action string) {
	s.notifier.Record(ctx, userID, notifier.EventGoalUpdated, map[string]any{
		"goalId":          goal.ID,
		"action":          action,
		"allocatedAmount": goal.AllocatedAmount.String(),
	})
}

func lockGoal(ctx context.Context, q queryer, userID string, goalID int64) (*models.SavingsGoal, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+goalColumns+`
		FROM savings_goals
		WHERE id = $1 AND user_id = $2
		FOR UPDATE`, goalID, userID)

	goal, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "Savings goal"}
	}
	if err != nil {
		return nil, fmt.Errorf("lock savings goal %d: %w", goalID, err)
	}
	return goal, nil
}

func scanGoal(row rowScanner) (*models.SavingsGoal, error) {
	var g models.SavingsGoal
	err := row.Scan(&g.ID, &g.UserID, &g.GoalName, &g.TargetAmount, &g.TargetDate,
		&g.AllocatedAmount, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
