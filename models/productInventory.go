package models

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductInventory is the device-owned stock line for one product. Stock is
// mutated only by the sale saga and by inventory adjustments; stock >= 0
// must hold after every commit.
type ProductInventory struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	ProductId     string          `gorm:"size:36;not null;uniqueIndex" json:"product_id"`
	ProductName   string          `gorm:"size:255" json:"product_name"`
	PriceAtMoment decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"price_at_moment"`
	Stock         decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"stock"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ListInventory returns the full inventory snapshot in a stable order.
// The allocator and the saga both iterate this order.
func ListInventory(ctx context.Context, db *gorm.DB) ([]ProductInventory, error) {
	var inventories []ProductInventory
	if err := db.WithContext(ctx).
		Order("product_name ASC, product_id ASC").
		Find(&inventories).Error; err != nil {
		return nil, err
	}
	return inventories, nil
}

// SaveInventories overwrites stock and price for the given rows in one
// transaction. Used by the saga commit and, with the pre-saga snapshot,
// by compensation; calling it twice with the same rows is harmless.
func SaveInventories(ctx context.Context, db *gorm.DB, inventories []ProductInventory) error {
	if len(inventories) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, inventory := range inventories {
			if inventory.Stock.IsNegative() {
				return fmt.Errorf("inventory %s for product %s would go negative: %s",
					inventory.ID, inventory.ProductId, inventory.Stock.String())
			}
			if err := tx.Model(&ProductInventory{}).
				Where("id = ?", inventory.ID).
				Updates(map[string]interface{}{
					"stock":           inventory.Stock,
					"price_at_moment": inventory.PriceAtMoment,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// InventoryAdjustment is a manual stock correction outside a sale: breakage,
// recount, warehouse top-up. It is the only legal inventory mutator besides
// the saga.
type InventoryAdjustment struct {
	ProductInventoryId string
	NewStock           decimal.Decimal
	Reason             string
}

// ApplyInventoryAdjustments persists manual corrections and enqueues the
// adjusted inventory rows for replication in the same transaction.
func ApplyInventoryAdjustments(ctx context.Context, db *gorm.DB, adjustments []InventoryAdjustment) error {
	if len(adjustments) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, adjustment := range adjustments {
			if adjustment.NewStock.IsNegative() {
				return fmt.Errorf("adjustment for inventory %s would set negative stock: %s",
					adjustment.ProductInventoryId, adjustment.NewStock.String())
			}
			var inventory ProductInventory
			if err := tx.First(&inventory, "id = ?", adjustment.ProductInventoryId).Error; err != nil {
				return err
			}
			inventory.Stock = adjustment.NewStock
			if err := tx.Model(&ProductInventory{}).
				Where("id = ?", inventory.ID).
				Update("stock", adjustment.NewStock).Error; err != nil {
				return err
			}
			if _, err := EnqueueOutbox(ctx, tx, EntityTableProductInventory, OutboxActionUpdate, inventory.ID, "", &inventory); err != nil {
				return err
			}
		}
		return nil
	})
}
