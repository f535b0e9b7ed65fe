package services

import (
	"context"
	"time"

	"github.com/dompetku/backend/internal/notifier"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Record(ctx context.Context, userID string, eventType notifier.EventType, payload map[string]any) notifier.Event {
	args := m.Called(ctx, userID, eventType, payload)
	if len(args) > 0 {
		if ev, ok := args.Get(0).(notifier.Event); ok {
			return ev
		}
	}
	return notifier.Event{Type: eventType, Payload: payload}
}

func (m *MockNotifier) DrainSince(ctx context.Context, userID string, watermark int64) ([]notifier.Event, error) {
	args := m.Called(ctx, userID, watermark)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]notifier.Event), args.Error(1)
}

func (m *MockNotifier) RegisterPushChannel(userID string, ch notifier.PushChannel) {
	m.Called(userID, ch)
}

func (m *MockNotifier) UnregisterPushChannel(userID string, ch notifier.PushChannel) {
	m.Called(userID, ch)
}

type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) LogTransfer(userID, groupID string, fromWallet, toWallet int64, amount decimal.Decimal, status string) {
	m.Called(userID, groupID, fromWallet, toWallet, amount, status)
}

func (m *MockAuditLogger) LogError(userID, operation string, err error) {
	m.Called(userID, operation, err)
}

func (m *MockAuditLogger) LogOperation(userID, operation string, transactionID, walletID int64, amount decimal.Decimal) {
	m.Called(userID, operation, transactionID, walletID, amount)
}

type MockSnapshots struct {
	mock.Mock
}

func (m *MockSnapshots) InvalidateFrom(ctx context.Context, userID string, date time.Time) error {
	args := m.Called(ctx, userID, date)
	return args.Error(0)
}

func (m *MockSnapshots) InvalidateAll(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// newLoggingAudit returns an audit mock that accepts any call
func newLoggingAudit() *MockAuditLogger {
	a := &MockAuditLogger{}
	a.On("LogTransfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()
	a.On("LogError", mock.Anything, mock.Anything, mock.Anything).Maybe()
	a.On("LogOperation", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()
	return a
}
