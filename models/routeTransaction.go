package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RouteTransaction records one store visit's committed business effects.
// Identity is immutable; only State may change after commit.
type RouteTransaction struct {
	ID            string           `gorm:"primaryKey;size:36" json:"id"`
	Date          time.Time        `gorm:"not null" json:"date"`
	State         TransactionState `gorm:"size:20;not null;default:ACTIVE" json:"state"`
	CashReceived  decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"cash_received"`
	WorkDayId     string           `gorm:"size:36;not null;index" json:"work_day_id"`
	StoreId       string           `gorm:"size:36;not null;index" json:"store_id"`
	PaymentMethod PaymentMethod    `gorm:"size:20;not null;default:CASH" json:"payment_method"`
	Operations    []TransactionOperation `gorm:"foreignKey:TransactionId" json:"operations"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// TransactionOperation groups a transaction's line items by kind. An
// operation with zero line items is never persisted.
type TransactionOperation struct {
	ID            string        `gorm:"primaryKey;size:36" json:"id"`
	TransactionId string        `gorm:"size:36;not null;index" json:"transaction_id"`
	OperationType OperationType `gorm:"size:20;not null" json:"operation_type"`
	LineItems     []TransactionLineItem `gorm:"foreignKey:OperationId" json:"line_items"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// TransactionLineItem is one product row of an operation; amount > 0 is
// enforced before persistence.
type TransactionLineItem struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	OperationId   string          `gorm:"size:36;not null;index" json:"operation_id"`
	ProductId     string          `gorm:"size:36;not null" json:"product_id"`
	PriceAtMoment decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"price_at_moment"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func GetRouteTransaction(ctx context.Context, db *gorm.DB, transactionId string) (*RouteTransaction, error) {
	var transaction RouteTransaction
	if err := db.WithContext(ctx).
		Preload("Operations.LineItems").
		First(&transaction, "id = ?", transactionId).Error; err != nil {
		return nil, err
	}
	return &transaction, nil
}

// CancelRouteTransaction flips an ACTIVE transaction to CANCELLED and
// enqueues the state change for replication in the same transaction.
func CancelRouteTransaction(ctx context.Context, db *gorm.DB, transactionId string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var transaction RouteTransaction
		if err := tx.First(&transaction, "id = ?", transactionId).Error; err != nil {
			return err
		}
		if transaction.State == TransactionStateCancelled {
			return nil
		}
		transaction.State = TransactionStateCancelled
		if err := tx.Model(&RouteTransaction{}).
			Where("id = ?", transactionId).
			Update("state", TransactionStateCancelled).Error; err != nil {
			return err
		}
		_, err := EnqueueOutbox(ctx, tx, EntityTableRouteTransaction, OutboxActionUpdate, transaction.ID, transaction.ID, &transaction)
		return err
	})
}
