package centralsync

import (
	"context"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/routesales_device/models"
)

// OutboxStore is the replicator's view of the local outbox table.
type OutboxStore interface {
	ListPending(ctx context.Context, tables ...models.EntityTable) ([]models.OutboxRecord, error)
	MarkSynced(ctx context.Context, ids []string) error
	MarkFailed(ctx context.Context, ids []string, cause error) error
}

type gormOutboxStore struct {
	db *gorm.DB
}

func NewGormOutboxStore(db *gorm.DB) OutboxStore {
	return &gormOutboxStore{db: db}
}

func (s *gormOutboxStore) ListPending(ctx context.Context, tables ...models.EntityTable) ([]models.OutboxRecord, error) {
	return models.ListPendingOutbox(ctx, s.db, tables...)
}

func (s *gormOutboxStore) MarkSynced(ctx context.Context, ids []string) error {
	return models.MarkOutboxSynced(ctx, s.db, ids)
}

func (s *gormOutboxStore) MarkFailed(ctx context.Context, ids []string, cause error) error {
	return models.MarkOutboxFailed(ctx, s.db, ids, cause)
}
