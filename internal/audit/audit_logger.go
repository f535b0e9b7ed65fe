package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

type AuditEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	UserID        string    `json:"user_id"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	WalletID      int64     `json:"wallet_id,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Status        string    `json:"status"`
	Details       any       `json:"details,omitempty"`
}

// AuditLogger writes one JSON line per committed ledger change
type AuditLogger struct {
	logf func(format string, args ...any)
}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{logf: log.Printf}
}

func (a *AuditLogger) LogTransfer(userID, groupID string, fromWallet, toWallet int64, amount decimal.Decimal, status string) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "TRANSFER",
		UserID:    userID,
		WalletID:  fromWallet,
		Amount:    amount.String(),
		Status:    status,
		Details: map[string]any{
			"transfer_group_id": groupID,
			"to_wallet":         toWallet,
		},
	}
	a.log(event)
}

func (a *AuditLogger) LogError(userID, operation string, err error) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "ERROR",
		UserID:    userID,
		Status:    "FAILED",
		Details:   map[string]string{"operation": operation, "error": err.Error()},
	}
	a.log(event)
}

func (a *AuditLogger) LogOperation(userID, operation string, transactionID, walletID int64, amount decimal.Decimal) {
	event := AuditEvent{
		Timestamp:     time.Now(),
		EventType:     operation,
		UserID:        userID,
		TransactionID: transactionID,
		WalletID:      walletID,
		Amount:        amount.String(),
		Status:        "SUCCESS",
	}
	a.log(event)
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	a.logf("AUDIT: %s", string(data))
}
