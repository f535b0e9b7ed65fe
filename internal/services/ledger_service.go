package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dompetku/backend/internal/models"
	"github.com/dompetku/backend/internal/notifier"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

const transactionColumns = `id, user_id, wallet_id, type, description, amount, category, source,
	goal_name, asset_name, transfer_type, transfer_group_id, date, created_at, updated_at`

// auditTrail records committed ledger changes
type auditTrail interface {
	LogTransfer(userID, groupID string, fromWallet, toWallet int64, amount decimal.Decimal, status string)
	LogError(userID, operation string, err error)
	LogOperation(userID, operation string, transactionID, walletID int64, amount decimal.Decimal)
}

// snapshotInvalidator drops memoized daily asset rows made stale by a write
type snapshotInvalidator interface {
	InvalidateFrom(ctx context.Context, userID string, date time.Time) error
}

// NewTransaction is the input of CreateTransaction
type NewTransaction struct {
	Description  string
	Amount       decimal.Decimal
	Type         models.TransactionType
	WalletID     *int64
	Category     *string
	Source       *string
	GoalName     *string
	AssetName    *string
	TransferType *string
	Date         *time.Time
}

// TransactionPatch holds the editable fields of a ledger row; nil means unchanged
type TransactionPatch struct {
	Description *string
	Amount      *decimal.Decimal
	Category    *string
	Source      *string
	GoalName    *string
	AssetName   *string
	Date        *time.Time
}

// TransferRequest moves money between two wallets of the same user
type TransferRequest struct {
	FromWalletID int64
	ToWalletID   int64
	Amount       decimal.Decimal
	Description  string
	Date         *time.Time
}

// TransferResult holds both legs of a committed transfer
type TransferResult struct {
	TransferGroupID string              `json:"transferGroupId"`
	Outgoing        *models.Transaction `json:"outgoing"`
	Incoming        *models.Transaction `json:"incoming"`
}

// LedgerService is the only writer of the transactions table. Every committed
// write invalidates derived state and notifies connected clients before
// returning, so no caller can forget to do either.
type LedgerService struct {
	db         *sql.DB
	balances   *BalanceService
	snapshots  snapshotInvalidator
	notifier   notifier.Notifier
	audit      auditTrail
	now        func() time.Time
	newGroupID func() string
}

func NewLedgerService(db *sql.DB, balances *BalanceService, snapshots snapshotInvalidator, n notifier.Notifier, audit auditTrail) *LedgerService {
	return &LedgerService{
		db:         db,
		balances:   balances,
		snapshots:  snapshots,
		notifier:   n,
		audit:      audit,
		now:        time.Now,
		newGroupID: uuid.NewString,
	}
}

// CreateTransaction validates and appends one ledger row
func (s *LedgerService) CreateTransaction(ctx context.Context, userID string, in NewTransaction) (*models.Transaction, error) {
	in.Description = strings.TrimSpace(in.Description)
	if err := validateNewTransaction(in); err != nil {
		return nil, err
	}

	date := truncateDay(s.now())
	if in.Date != nil {
		date = truncateDay(*in.Date)
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	wallet, err := lockWallet(ctx, dbTx, userID, *in.WalletID)
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive {
		return nil, newValidationError("Wallet %d is inactive", wallet.ID)
	}

	if in.Type.Debits() {
		if err := s.ensureFunds(ctx, dbTx, userID, wallet.ID, in.Amount); err != nil {
			return nil, err
		}
	}

	tx, err := insertTransaction(ctx, dbTx, userID, in, date, nil, s.now())
	if err != nil {
		s.audit.LogError(userID, "create_transaction", err)
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		s.audit.LogError(userID, "create_transaction", err)
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.audit.LogOperation(userID, "TRANSACTION_CREATED", tx.ID, wallet.ID, tx.Amount)
	s.afterCommit(ctx, userID, notifier.EventTransactionCreated, []int64{wallet.ID}, date, transactionPayload(tx))
	return tx, nil
}

// UpdateTransaction applies a partial edit to a row owned by userID.
// Type and wallet are immutable and transfer legs cannot be edited.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID string, id int64, patch TransactionPatch) (*models.Transaction, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	existing, err := lockTransaction(ctx, dbTx, userID, id)
	if err != nil {
		return nil, err
	}
	if existing.IsTransferLeg() {
		return nil, newValidationError("Transfer legs cannot be edited; delete the transfer instead")
	}

	updated := applyPatch(*existing, patch)
	if err := validateUpdatedTransaction(updated); err != nil {
		return nil, err
	}

	if existing.WalletID != nil {
		if _, err := lockWallet(ctx, dbTx, userID, *existing.WalletID); err != nil {
			return nil, err
		}
		increase := updated.Amount.Sub(existing.Amount)
		if updated.Type.Debits() && increase.IsPositive() {
			if err := s.ensureFunds(ctx, dbTx, userID, *existing.WalletID, increase); err != nil {
				return nil, err
			}
		}
	}

	updated.UpdatedAt = s.now()
	_, err = dbTx.ExecContext(ctx, `
		UPDATE transactions
		SET description = $1, amount = $2, category = $3, source = $4, goal_name = $5,
			asset_name = $6, date = $7, updated_at = $8
		WHERE id = $9 AND user_id = $10`,
		updated.Description, updated.Amount, updated.Category, updated.Source, updated.GoalName,
		updated.AssetName, updated.Date, updated.UpdatedAt, id, userID)
	if err != nil {
		s.audit.LogError(userID, "update_transaction", err)
		return nil, fmt.Errorf("update transaction %d: %w", id, err)
	}

	if err := dbTx.Commit(); err != nil {
		s.audit.LogError(userID, "update_transaction", err)
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	earliest := existing.Date
	if updated.Date.Before(earliest) {
		earliest = updated.Date
	}

	s.audit.LogOperation(userID, "TRANSACTION_UPDATED", id, walletIDOf(existing), updated.Amount)
	s.afterCommit(ctx, userID, notifier.EventTransactionUpdated, walletIDsOf(existing), earliest, transactionPayload(&updated))
	return &updated, nil
}

// DeleteTransaction removes a row owned by userID and reports whether one was
// removed. Deleting either leg of a transfer removes both legs.
func (s *LedgerService) DeleteTransaction(ctx context.Context, userID string, id int64) (bool, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	existing, err := lockTransaction(ctx, dbTx, userID, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	wallets := walletIDsOf(existing)
	earliest := existing.Date

	if existing.IsTransferLeg() && existing.TransferGroupID != nil {
		rows, err := dbTx.QueryContext(ctx, `
			DELETE FROM transactions
			WHERE user_id = $1 AND transfer_group_id = $2
			RETURNING wallet_id, date`, userID, *existing.TransferGroupID)
		if err != nil {
			return false, fmt.Errorf("delete transfer %s: %w", *existing.TransferGroupID, err)
		}
		wallets = wallets[:0]
		for rows.Next() {
			var walletID sql.NullInt64
			var date time.Time
			if err := rows.Scan(&walletID, &date); err != nil {
				rows.Close()
				return false, err
			}
			if walletID.Valid {
				wallets = append(wallets, walletID.Int64)
			}
			if date.Before(earliest) {
				earliest = date
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return false, err
		}
	} else {
		if _, err := dbTx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
			return false, fmt.Errorf("delete transaction %d: %w", id, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		s.audit.LogError(userID, "delete_transaction", err)
		return false, fmt.Errorf("commit transaction: %w", err)
	}

	s.audit.LogOperation(userID, "TRANSACTION_DELETED", id, walletIDOf(existing), existing.Amount)
	s.afterCommit(ctx, userID, notifier.EventTransactionDeleted, wallets, earliest, transactionPayload(existing))
	return true, nil
}

// GetUserTransactions lists the user's rows newest first. Every derived view
// (expenses, income, savings, trends) filters this read path.
func (s *LedgerService) GetUserTransactions(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = $1
		ORDER BY date DESC, created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

// GetTransaction returns a single row owned by userID
func (s *LedgerService) GetTransaction(ctx context.Context, userID string, id int64) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = $1 AND user_id = $2`, id, userID)

	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "Transaction"}
	}
	return tx, err
}

// Transfer writes the outgoing and incoming legs in one database transaction.
// Either both legs commit or neither does.
func (s *LedgerService) Transfer(ctx context.Context, userID string, req TransferRequest) (*TransferResult, error) {
	if req.FromWalletID == req.ToWalletID {
		return nil, newValidationError("Cannot transfer to the same wallet")
	}
	if !req.Amount.IsPositive() {
		return nil, newValidationError("Amount must be greater than 0")
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return nil, newValidationError("Description is required")
	}

	date := truncateDay(s.now())
	if req.Date != nil {
		date = truncateDay(*req.Date)
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	// Lock wallets in consistent order to prevent deadlocks
	firstLock, secondLock := req.FromWalletID, req.ToWalletID
	if firstLock > secondLock {
		firstLock, secondLock = secondLock, firstLock
	}
	for _, walletID := range []int64{firstLock, secondLock} {
		wallet, err := lockWallet(ctx, dbTx, userID, walletID)
		if err != nil {
			return nil, err
		}
		if !wallet.IsActive {
			return nil, newValidationError("Wallet %d is inactive", wallet.ID)
		}
	}

	if err := s.ensureFunds(ctx, dbTx, userID, req.FromWalletID, req.Amount); err != nil {
		return nil, err
	}

	groupID := s.newGroupID()
	transferType := models.TransferWalletToWallet
	createdAt := s.now()

	outgoing, err := insertTransaction(ctx, dbTx, userID, NewTransaction{
		Description:  req.Description,
		Amount:       req.Amount.Neg(),
		Type:         models.TypeTransfer,
		WalletID:     &req.FromWalletID,
		TransferType: &transferType,
	}, date, &groupID, createdAt)
	if err != nil {
		s.audit.LogError(userID, "transfer", err)
		return nil, fmt.Errorf("insert outgoing leg: %w", err)
	}

	incoming, err := insertTransaction(ctx, dbTx, userID, NewTransaction{
		Description:  req.Description,
		Amount:       req.Amount,
		Type:         models.TypeTransfer,
		WalletID:     &req.ToWalletID,
		TransferType: &transferType,
	}, date, &groupID, createdAt)
	if err != nil {
		s.audit.LogError(userID, "transfer", err)
		return nil, fmt.Errorf("insert incoming leg: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		s.audit.LogError(userID, "transfer", err)
		return nil, fmt.Errorf("commit transfer: %w", err)
	}

	s.audit.LogTransfer(userID, groupID, req.FromWalletID, req.ToWalletID, req.Amount, "SUCCESS")
	s.afterCommit(ctx, userID, notifier.EventWalletUpdated, []int64{req.FromWalletID, req.ToWalletID}, date, map[string]any{
		"transferGroupId": groupID,
		"fromWalletId":    req.FromWalletID,
		"toWalletId":      req.ToWalletID,
		"amount":          req.Amount.String(),
	})

	return &TransferResult{
		TransferGroupID: groupID,
		Outgoing:        outgoing,
		Incoming:        incoming,
	}, nil
}

// ensureFunds rejects a debit larger than the wallet's current balance. The
// caller must hold the wallet row lock.
func (s *LedgerService) ensureFunds(ctx context.Context, q queryer, userID string, walletID int64, amount decimal.Decimal) error {
	totals, err := s.balances.walletTotalsTx(ctx, q, userID, walletID)
	if err != nil {
		return err
	}
	if totals.Balance.LessThan(amount) {
		return &InsufficientBalanceError{WalletID: walletID, Balance: totals.Balance, Required: amount}
	}
	return nil
}

// afterCommit runs the side effects every ledger write owes its readers:
// balance projection, daily snapshots, then the client notification.
func (s *LedgerService) afterCommit(ctx context.Context, userID string, eventType notifier.EventType, walletIDs []int64, earliest time.Time, payload map[string]any) {
	ctx = context.WithoutCancel(ctx)

	for _, walletID := range walletIDs {
		s.balances.Invalidate(userID, walletID)
	}

	if s.snapshots != nil {
		if err := s.snapshots.InvalidateFrom(ctx, userID, earliest); err != nil {
			log.Printf("[LEDGER] Failed to invalidate snapshots for user %s from %s: %v", userID, earliest.Format(dateLayout), err)
		}
	}

	s.notifier.Record(ctx, userID, eventType, payload)
}

func validateNewTransaction(in NewTransaction) error {
	fields := map[string]string{}

	if in.Description == "" {
		fields["description"] = "Description is required"
	}
	if !in.Type.Valid() {
		fields["type"] = "Type must be one of income, expense, savings, transfer"
	}
	if in.WalletID == nil {
		fields["walletId"] = "Wallet is required"
	}

	if in.Type == models.TypeTransfer {
		if in.Amount.IsZero() {
			fields["amount"] = "Transfer amount must not be zero"
		}
		if in.TransferType == nil || *in.TransferType == "" {
			fields["transferType"] = "Transfer type is required for transfers"
		}
	} else if !in.Amount.IsPositive() {
		fields["amount"] = "Amount must be greater than 0"
	}

	checkAttributes(fields, in.Type, in.Category, in.Source, in.GoalName, in.AssetName, in.TransferType)

	if len(fields) > 0 {
		return &ValidationError{Message: "Validation failed", Fields: fields}
	}
	return nil
}

func validateUpdatedTransaction(tx models.Transaction) error {
	fields := map[string]string{}

	if strings.TrimSpace(tx.Description) == "" {
		fields["description"] = "Description is required"
	}
	if !tx.Amount.IsPositive() {
		fields["amount"] = "Amount must be greater than 0"
	}
	checkAttributes(fields, tx.Type, tx.Category, tx.Source, tx.GoalName, tx.AssetName, tx.TransferType)

	if len(fields) > 0 {
		return &ValidationError{Message: "Validation failed", Fields: fields}
	}
	return nil
}

// checkAttributes enforces that type-keyed attributes only appear on their type
func checkAttributes(fields map[string]string, t models.TransactionType, category, source, goalName, assetName, transferType *string) {
	if isSet(category) && t != models.TypeExpense {
		fields["category"] = "Category is only allowed on expenses"
	}
	if isSet(source) && t != models.TypeIncome {
		fields["source"] = "Source is only allowed on income"
	}
	if isSet(goalName) && t != models.TypeSavings {
		fields["goalName"] = "Goal name is only allowed on savings"
	}
	if isSet(assetName) && t != models.TypeSavings {
		fields["assetName"] = "Asset name is only allowed on savings"
	}
	if isSet(transferType) && t != models.TypeTransfer {
		fields["transferType"] = "Transfer type is only allowed on transfers"
	}
}

func isSet(s *string) bool {
	return s != nil && *s != ""
}

func applyPatch(tx models.Transaction, patch TransactionPatch) models.Transaction {
	if patch.Description != nil {
		tx.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Amount != nil {
		tx.Amount = *patch.Amount
	}
	if patch.Category != nil {
		tx.Category = patch.Category
	}
	if patch.Source != nil {
		tx.Source = patch.Source
	}
	if patch.GoalName != nil {
		tx.GoalName = patch.GoalName
	}
	if patch.AssetName != nil {
		tx.AssetName = patch.AssetName
	}
	if patch.Date != nil {
		tx.Date = truncateDay(*patch.Date)
	}
	return tx
}

func insertTransaction(ctx context.Context, q queryer, userID string, in NewTransaction, date time.Time, groupID *string, now time.Time) (*models.Transaction, error) {
	tx := &models.Transaction{
		UserID:          userID,
		WalletID:        in.WalletID,
		Type:            in.Type,
		Description:     in.Description,
		Amount:          in.Amount,
		Category:        in.Category,
		Source:          in.Source,
		GoalName:        in.GoalName,
		AssetName:       in.AssetName,
		TransferType:    in.TransferType,
		TransferGroupID: groupID,
		Date:            date,
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO transactions (user_id, wallet_id, type, description, amount, category, source,
			goal_name, asset_name, transfer_type, transfer_group_id, date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING id, created_at, updated_at`,
		userID, in.WalletID, string(in.Type), in.Description, in.Amount, in.Category, in.Source,
		in.GoalName, in.AssetName, in.TransferType, groupID, date, now,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func lockWallet(ctx context.Context, q queryer, userID string, walletID int64) (*models.Wallet, error) {
	var w models.Wallet
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, name, type, color, icon, is_active, created_at, updated_at
		FROM user_wallets
		WHERE id = $1 AND user_id = $2
		FOR UPDATE`, walletID, userID).
		Scan(&w.ID, &w.UserID, &w.Name, &w.Type, &w.Color, &w.Icon, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "Wallet"}
	}
	if err != nil {
		return nil, fmt.Errorf("lock wallet %d: %w", walletID, err)
	}
	return &w, nil
}

func lockTransaction(ctx context.Context, q queryer, userID string, id int64) (*models.Transaction, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = $1 AND user_id = $2
		FOR UPDATE`, id, userID)

	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "Transaction"}
	}
	if err != nil {
		return nil, fmt.Errorf("lock transaction %d: %w", id, err)
	}
	return tx, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var tx models.Transaction
	var txType string
	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.WalletID, &txType, &tx.Description, &tx.Amount,
		&tx.Category, &tx.Source, &tx.GoalName, &tx.AssetName, &tx.TransferType,
		&tx.TransferGroupID, &tx.Date, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Type = models.TransactionType(txType)
	return &tx, nil
}

func transactionPayload(tx *models.Transaction) map[string]any {
	payload := map[string]any{
		"transactionId": tx.ID,
		"type":          string(tx.Type),
	}
	if tx.WalletID != nil {
		payload["walletId"] = *tx.WalletID
	}
	return payload
}

func walletIDOf(tx *models.Transaction) int64 {
	if tx.WalletID == nil {
		return 0
	}
	return *tx.WalletID
}

func walletIDsOf(tx *models.Transaction) []int64 {
	if tx.WalletID == nil {
		return nil
	}
	return []int64{*tx.WalletID}
}

const dateLayout = "2006-01-02"

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
