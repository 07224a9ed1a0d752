package audit

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Reference string            `json:"reference"`
	UserID    string            `json:"user_id"`
	Amount    decimal.Decimal   `json:"amount"`
	Status    string            `json:"status"`
	Details   map[string]string `json:"details,omitempty"`
}

// AuditLogger records every money movement and settlement decision.
type AuditLogger struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.Named("audit"),
		now:    time.Now,
	}
}

func (a *AuditLogger) LogCredit(walletUserID, reference string, amount decimal.Decimal, description string) {
	a.log(AuditEvent{
		EventType: "WALLET_CREDIT",
		Reference: reference,
		UserID:    walletUserID,
		Amount:    amount,
		Status:    "SUCCESS",
		Details:   map[string]string{"description": description},
	})
}

func (a *AuditLogger) LogDebit(walletUserID, reference string, amount decimal.Decimal, description string) {
	a.log(AuditEvent{
		EventType: "WALLET_DEBIT",
		Reference: reference,
		UserID:    walletUserID,
		Amount:    amount,
		Status:    "SUCCESS",
		Details:   map[string]string{"description": description},
	})
}

func (a *AuditLogger) LogSettlement(leadID, hrUserID string, tranche int, amount decimal.Decimal, newStatus string) {
	a.log(AuditEvent{
		EventType: "LEAD_SETTLEMENT",
		Reference: leadID,
		UserID:    hrUserID,
		Amount:    amount,
		Status:    newStatus,
		Details:   map[string]string{"tranche": trancheName(tranche)},
	})
}

func (a *AuditLogger) LogWithdrawal(withdrawalID, userID string, amount decimal.Decimal, status, processedBy string) {
	a.log(AuditEvent{
		EventType: "WITHDRAWAL",
		Reference: withdrawalID,
		UserID:    userID,
		Amount:    amount,
		Status:    status,
		Details:   map[string]string{"processed_by": processedBy},
	})
}

func (a *AuditLogger) LogError(reference, userID string, err error) {
	a.log(AuditEvent{
		EventType: "ERROR",
		Reference: reference,
		UserID:    userID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	event.Timestamp = a.now()
	fields := []zap.Field{
		zap.String("event_type", event.EventType),
		zap.String("reference", event.Reference),
		zap.String("user_id", event.UserID),
		zap.String("amount", event.Amount.StringFixed(2)),
		zap.String("status", event.Status),
		zap.Time("timestamp", event.Timestamp),
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String(k, v))
	}
	a.logger.Info("AUDIT", fields...)
}

func trancheName(tranche int) string {
	if tranche == 2 {
		return "commission2"
	}
	return "commission1"
}
