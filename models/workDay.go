package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/routesales_device/utils"
)

// WorkDay is the root entity of a vendor's day: it owns the route's day
// operations and every transaction committed during the day. It replicates
// before any entity that references it.
type WorkDay struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	Date         time.Time       `gorm:"not null;index" json:"date"`
	State        WorkDayState    `gorm:"size:20;not null;default:OPEN" json:"state"`
	StartingCash decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"starting_cash"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetOpenWorkDay returns the single OPEN work day, or ErrorRecordNotFound
// when the vendor has not started a day yet.
func GetOpenWorkDay(ctx context.Context, db *gorm.DB) (*WorkDay, error) {
	var workDay WorkDay
	err := db.WithContext(ctx).
		Where("state = ?", WorkDayStateOpen).
		Order("date DESC").
		First(&workDay).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &workDay, nil
}

func CloseWorkDay(ctx context.Context, db *gorm.DB, workDayId string) error {
	return db.WithContext(ctx).Model(&WorkDay{}).
		Where("id = ?", workDayId).
		Update("state", WorkDayStateClosed).Error
}
