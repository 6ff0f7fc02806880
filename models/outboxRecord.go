package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/routesales_device/utils"
)

// OutboxRecord is one pending write destined for the central server
// (transactional outbox). It is created inside the same DB transaction as
// the entity write it mirrors, and only the replicator may mark it SUCCESS
// or FAILED afterwards.
//
// TypeRank and ActionRank are fixed at enqueue time so a pending batch can
// be drained in dependency order straight from SQL.
type OutboxRecord struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	Status        OutboxStatus    `gorm:"size:20;not null;default:PENDING;index" json:"status"`
	EntityTable   EntityTable     `gorm:"size:40;not null;index" json:"entity_table"`
	EntityId      string          `gorm:"size:36;not null" json:"entity_id"`
	TransactionId string          `gorm:"size:36;index" json:"transaction_id"`
	Action        OutboxAction    `gorm:"size:10;not null" json:"action"`
	Payload       json.RawMessage `gorm:"type:text" json:"payload"`
	TypeRank      int             `gorm:"not null" json:"type_rank"`
	ActionRank    int             `gorm:"not null" json:"action_rank"`
	SyncAttempts  int             `gorm:"not null;default:0" json:"sync_attempts"`
	LastSyncError *string         `gorm:"type:text" json:"last_sync_error"`
	CorrelationId string          `gorm:"size:36" json:"correlation_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	SyncedAt      *time.Time      `json:"synced_at"`
}

// PriorityKey is the total order over pending records: parents before
// children, inserts before updates before deletes, then enqueue time.
// Compared lexicographically, never collapsed into one number.
func (r OutboxRecord) PriorityKey() (typeRank int, actionRank int, enqueuedAtUnixNano int64) {
	return r.TypeRank, r.ActionRank, r.CreatedAt.UnixNano()
}

// EnqueueOutbox writes the record inside the caller's DB transaction but
// does NOT talk to the server; delivery happens asynchronously after commit.
// transactionId ties transaction-domain records together so a compensating
// saga can drop them all; leave it empty for root entities.
func EnqueueOutbox(ctx context.Context, tx *gorm.DB, table EntityTable, action OutboxAction, entityId string, transactionId string, entity interface{}) (*OutboxRecord, error) {
	var payload json.RawMessage
	if entity != nil {
		marshalled, err := json.Marshal(entity)
		if err != nil {
			return nil, err
		}
		payload = marshalled
	}

	record := OutboxRecord{
		ID:            uuid.NewString(),
		Status:        OutboxStatusPending,
		EntityTable:   table,
		EntityId:      entityId,
		TransactionId: transactionId,
		Action:        action,
		Payload:       payload,
		TypeRank:      EntityTypeRank(table),
		ActionRank:    OutboxActionRank(action),
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// ListPendingOutbox returns undelivered records (PENDING plus FAILED ones
// awaiting retry) in ascending priority order. Pass tables to restrict the
// listing to one replication phase.
func ListPendingOutbox(ctx context.Context, db *gorm.DB, tables ...EntityTable) ([]OutboxRecord, error) {
	q := db.WithContext(ctx).
		Where("status IN ?", []OutboxStatus{OutboxStatusPending, OutboxStatusFailed})
	if len(tables) > 0 {
		q = q.Where("entity_table IN ?", tables)
	}
	var records []OutboxRecord
	if err := q.
		Order("type_rank ASC, action_rank ASC, created_at ASC, id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// MarkOutboxSynced flips records to SUCCESS after the server confirmed the
// upsert. Records are kept (not deleted) so a day's replication remains
// auditable until day close.
func MarkOutboxSynced(ctx context.Context, db *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return db.WithContext(ctx).Model(&OutboxRecord{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":          OutboxStatusSuccess,
			"synced_at":       &now,
			"last_sync_error": nil,
		}).Error
}

// MarkOutboxFailed records a failed delivery attempt. The rows remain
// eligible for the next pass (at-least-once delivery).
func MarkOutboxFailed(ctx context.Context, db *gorm.DB, ids []string, cause error) error {
	if len(ids) == 0 {
		return nil
	}
	msg := cause.Error()
	return db.WithContext(ctx).Model(&OutboxRecord{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":          OutboxStatusFailed,
			"sync_attempts":   gorm.Expr("sync_attempts + 1"),
			"last_sync_error": &msg,
		}).Error
}

// DeleteOutboxForTransaction removes every record enqueued for a
// transaction. Used by saga compensation; deleting an already-deleted set
// is a no-op, which keeps the rollback step retryable.
func DeleteOutboxForTransaction(ctx context.Context, tx *gorm.DB, transactionId string) error {
	if transactionId == "" {
		return nil
	}
	return tx.WithContext(ctx).
		Where("transaction_id = ?", transactionId).
		Delete(&OutboxRecord{}).Error
}

func CountPendingOutbox(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&OutboxRecord{}).
		Where("status IN ?", []OutboxStatus{OutboxStatusPending, OutboxStatusFailed}).
		Count(&count).Error
	return count, err
}
