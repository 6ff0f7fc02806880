package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/routesales_device/utils"
)

type Store struct {
	ID         string          `gorm:"primaryKey;size:36" json:"id"`
	Name       string          `gorm:"size:255;not null" json:"name"`
	OwnerName  string          `gorm:"size:255" json:"owner_name"`
	Address    string          `gorm:"size:255" json:"address"`
	Phone      string          `gorm:"size:30" json:"phone"`
	VisitState StoreVisitState `gorm:"size:30;not null;default:PENDING_TO_VISIT" json:"visit_state"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetStore(ctx context.Context, db *gorm.DB, storeId string) (*Store, error) {
	var store Store
	err := db.WithContext(ctx).First(&store, "id = ?", storeId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// UpdateStoreVisitState persists a visit-state transition. The only callers
// are the sale saga (forward) and its compensation (restore), so this stays
// a plain column update.
func UpdateStoreVisitState(ctx context.Context, db *gorm.DB, storeId string, state StoreVisitState) error {
	return db.WithContext(ctx).Model(&Store{}).
		Where("id = ?", storeId).
		Update("visit_state", state).Error
}

// ListStoreVisitStates returns visit states keyed by store id for the
// stores referenced by the given day operations.
func ListStoreVisitStates(ctx context.Context, db *gorm.DB, route []DayOperation) (map[string]StoreVisitState, error) {
	states := make(map[string]StoreVisitState, len(route))
	if len(route) == 0 {
		return states, nil
	}
	storeIds := make([]string, 0, len(route))
	for _, stop := range route {
		storeIds = append(storeIds, stop.StoreId)
	}
	var stores []Store
	if err := db.WithContext(ctx).
		Where("id IN ?", utils.UniqueSlice(storeIds)).
		Find(&stores).Error; err != nil {
		return nil, err
	}
	for _, store := range stores {
		states[store.ID] = store.VisitState
	}
	return states, nil
}
