package workflow

import (
	"context"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/routesales_device/models"
)

// SagaStore is the sale saga's view of the local durable store. Each write
// method is one atomic unit; the saga sequences them and compensates when
// one fails mid-sequence. Every delete/restore method must be idempotent so
// a rollback step can be retried.
type SagaStore interface {
	ListInventory(ctx context.Context) ([]models.ProductInventory, error)
	GetStore(ctx context.Context, storeId string) (*models.Store, error)
	GetCurrentDayOperation(ctx context.Context, workDayId string) (*models.DayOperation, error)
	ListRoute(ctx context.Context, workDayId string) ([]models.DayOperation, error)
	ListStoreVisitStates(ctx context.Context, route []models.DayOperation) (map[string]models.StoreVisitState, error)

	InsertTransaction(ctx context.Context, transaction *models.RouteTransaction) error
	InsertOperation(ctx context.Context, operation *models.TransactionOperation, lineItems []models.TransactionLineItem) error
	SaveInventories(ctx context.Context, inventories []models.ProductInventory) error
	SaveStoreVisitState(ctx context.Context, storeId string, state models.StoreVisitState) error
	SetCurrentDayOperation(ctx context.Context, workDayId string, dayOperationId string) error
	EnqueueOutbox(ctx context.Context, table models.EntityTable, action models.OutboxAction, entityId string, transactionId string, entity interface{}) error

	DeleteTransaction(ctx context.Context, transactionId string) error
	DeleteOutboxForTransaction(ctx context.Context, transactionId string) error
}

// gormSagaStore backs SagaStore with the embedded SQLite database.
type gormSagaStore struct {
	db *gorm.DB
}

func NewGormSagaStore(db *gorm.DB) SagaStore {
	return &gormSagaStore{db: db}
}

func (s *gormSagaStore) ListInventory(ctx context.Context) ([]models.ProductInventory, error) {
	return models.ListInventory(ctx, s.db)
}

func (s *gormSagaStore) GetStore(ctx context.Context, storeId string) (*models.Store, error) {
	return models.GetStore(ctx, s.db, storeId)
}

func (s *gormSagaStore) GetCurrentDayOperation(ctx context.Context, workDayId string) (*models.DayOperation, error) {
	return models.GetCurrentDayOperation(ctx, s.db, workDayId)
}

func (s *gormSagaStore) ListRoute(ctx context.Context, workDayId string) ([]models.DayOperation, error) {
	return models.ListRouteForWorkDay(ctx, s.db, workDayId)
}

func (s *gormSagaStore) ListStoreVisitStates(ctx context.Context, route []models.DayOperation) (map[string]models.StoreVisitState, error) {
	return models.ListStoreVisitStates(ctx, s.db, route)
}

func (s *gormSagaStore) InsertTransaction(ctx context.Context, transaction *models.RouteTransaction) error {
	return s.db.WithContext(ctx).Omit("Operations").Create(transaction).Error
}

// InsertOperation writes the operation row and its line items in one DB
// transaction: if either insert fails the whole operation insert failed.
func (s *gormSagaStore) InsertOperation(ctx context.Context, operation *models.TransactionOperation, lineItems []models.TransactionLineItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("LineItems").Create(operation).Error; err != nil {
			return err
		}
		if len(lineItems) == 0 {
			return nil
		}
		return tx.Create(&lineItems).Error
	})
}

func (s *gormSagaStore) SaveInventories(ctx context.Context, inventories []models.ProductInventory) error {
	return models.SaveInventories(ctx, s.db, inventories)
}

func (s *gormSagaStore) SaveStoreVisitState(ctx context.Context, storeId string, state models.StoreVisitState) error {
	return models.UpdateStoreVisitState(ctx, s.db, storeId, state)
}

func (s *gormSagaStore) SetCurrentDayOperation(ctx context.Context, workDayId string, dayOperationId string) error {
	return models.SetCurrentDayOperation(ctx, s.db, workDayId, dayOperationId)
}

func (s *gormSagaStore) EnqueueOutbox(ctx context.Context, table models.EntityTable, action models.OutboxAction, entityId string, transactionId string, entity interface{}) error {
	_, err := models.EnqueueOutbox(ctx, s.db, table, action, entityId, transactionId, entity)
	return err
}

// DeleteTransaction removes the transaction and everything under it.
// Safe to call when nothing (or only part) was written.
func (s *gormSagaStore) DeleteTransaction(ctx context.Context, transactionId string) error {
	if transactionId == "" {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var operationIds []string
		if err := tx.Model(&models.TransactionOperation{}).
			Where("transaction_id = ?", transactionId).
			Pluck("id", &operationIds).Error; err != nil {
			return err
		}
		if len(operationIds) > 0 {
			if err := tx.Where("operation_id IN ?", operationIds).
				Delete(&models.TransactionLineItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", operationIds).
				Delete(&models.TransactionOperation{}).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", transactionId).
			Delete(&models.RouteTransaction{}).Error
	})
}

func (s *gormSagaStore) DeleteOutboxForTransaction(ctx context.Context, transactionId string) error {
	return models.DeleteOutboxForTransaction(ctx, s.db, transactionId)
}
