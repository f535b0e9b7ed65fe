package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dompetku/backend/internal/middleware"
	"github.com/dompetku/backend/internal/models"
	"github.com/dompetku/backend/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

const testUser = "user-1"

// withUser authenticates every request as testUser
func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), testUser)))
	})
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) CreateTransaction(ctx context.Context, userID string, in services.NewTransaction) (*models.Transaction, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockLedger) UpdateTransaction(ctx context.Context, userID string, id int64, patch services.TransactionPatch) (*models.Transaction, error) {
	args := m.Called(ctx, userID, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockLedger) DeleteTransaction(ctx context.Context, userID string, id int64) (bool, error) {
	args := m.Called(ctx, userID, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) GetUserTransactions(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transaction), args.Error(1)
}

func (m *MockLedger) GetTransaction(ctx context.Context, userID string, id int64) (*models.Transaction, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockLedger) Transfer(ctx context.Context, userID string, req services.TransferRequest) (*services.TransferResult, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TransferResult), args.Error(1)
}

type MockWallets struct {
	mock.Mock
}

func (m *MockWallets) CreateWallet(ctx context.Context, userID string, in services.NewWallet) (*models.Wallet, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *MockWallets) ListWallets(ctx context.Context, userID string, includeInactive bool) (*services.WalletList, error) {
	args := m.Called(ctx, userID, includeInactive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.WalletList), args.Error(1)
}

func (m *MockWallets) DeactivateWallet(ctx context.Context, userID string, walletID int64) error {
	args := m.Called(ctx, userID, walletID)
	return args.Error(0)
}

type MockGoals struct {
	mock.Mock
}

func (m *MockGoals) CreateGoal(ctx context.Context, userID string, in services.NewGoal) (*models.SavingsGoal, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SavingsGoal), args.Error(1)
}

func (m *MockGoals) ListGoals(ctx context.Context, userID string) ([]models.SavingsGoal, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SavingsGoal), args.Error(1)
}

func (m *MockGoals) Allocate(ctx context.Context, userID string, a services.Allocation) (*models.SavingsGoal, error) {
	args := m.Called(ctx, userID, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SavingsGoal), args.Error(1)
}

func (m *MockGoals) Deallocate(ctx context.Context, userID string, goalID int64, amount decimal.Decimal) (*models.SavingsGoal, error) {
	args := m.Called(ctx, userID, goalID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SavingsGoal), args.Error(1)
}

type MockAssets struct {
	mock.Mock
}

func (m *MockAssets) GetDailyAssets(ctx context.Context, userID string, from, to *time.Time) ([]models.DailyAssetSnapshot, error) {
	args := m.Called(ctx, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DailyAssetSnapshot), args.Error(1)
}
