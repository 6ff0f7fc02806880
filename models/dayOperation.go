package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/routesales_device/utils"
)

// DayOperation is one scheduled stop in the day's route. Exactly one stop
// per work day carries IsCurrent = true; the progression automaton decides
// pointer moves and SetCurrentDayOperation applies them atomically.
type DayOperation struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	WorkDayId  string    `gorm:"size:36;not null;index" json:"work_day_id"`
	StoreId    string    `gorm:"size:36;not null;index" json:"store_id"`
	RouteOrder int       `gorm:"not null" json:"route_order"`
	IsCurrent  bool      `gorm:"not null;default:false" json:"is_current"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ListRouteForWorkDay returns the day's stops in route order.
func ListRouteForWorkDay(ctx context.Context, db *gorm.DB, workDayId string) ([]DayOperation, error) {
	var route []DayOperation
	if err := db.WithContext(ctx).
		Where("work_day_id = ?", workDayId).
		Order("route_order ASC").
		Find(&route).Error; err != nil {
		return nil, err
	}
	return route, nil
}

func GetCurrentDayOperation(ctx context.Context, db *gorm.DB, workDayId string) (*DayOperation, error) {
	var current DayOperation
	err := db.WithContext(ctx).
		Where("work_day_id = ? AND is_current = ?", workDayId, true).
		First(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &current, nil
}

// SetCurrentDayOperation moves the is_current pointer in one transaction so
// the one-current-stop invariant holds even if the process dies mid-move.
func SetCurrentDayOperation(ctx context.Context, db *gorm.DB, workDayId string, dayOperationId string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&DayOperation{}).
			Where("work_day_id = ? AND is_current = ?", workDayId, true).
			Update("is_current", false).Error; err != nil {
			return err
		}
		return tx.Model(&DayOperation{}).
			Where("id = ?", dayOperationId).
			Update("is_current", true).Error
	})
}
