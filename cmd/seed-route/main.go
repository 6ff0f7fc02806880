package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/routesales_device/config"
	"bitbucket.org/mmdatafocus/routesales_device/models"
)

// seed-route provisions a demo work day on a fresh device database: a few
// stores, the day's route, and an inventory load. Dev/testing only.
func main() {
	if err := config.ConnectDatabase(); err != nil {
		log.Fatal(err)
	}
	models.MigrateTable()

	ctx := context.Background()
	db := config.GetDB()

	workDay := models.WorkDay{
		ID:           uuid.NewString(),
		Date:         time.Now().Truncate(24 * time.Hour),
		State:        models.WorkDayStateOpen,
		StartingCash: decimal.NewFromInt(100),
	}
	if err := db.Create(&workDay).Error; err != nil {
		log.Fatal(err)
	}

	storeNames := []string{"Abarrotes La Esquina", "Tienda Central", "Mini Super El Paso"}
	for i, name := range storeNames {
		store := models.Store{
			ID:         uuid.NewString(),
			Name:       name,
			VisitState: models.StoreVisitStatePendingToVisit,
		}
		if err := db.Create(&store).Error; err != nil {
			log.Fatal(err)
		}

		dayOperation := models.DayOperation{
			ID:         uuid.NewString(),
			WorkDayId:  workDay.ID,
			StoreId:    store.ID,
			RouteOrder: i + 1,
			IsCurrent:  i == 0,
		}
		if err := db.Create(&dayOperation).Error; err != nil {
			log.Fatal(err)
		}

		if _, err := models.EnqueueOutbox(ctx, db, models.EntityTableStore, models.OutboxActionInsert, store.ID, "", &store); err != nil {
			log.Fatal(err)
		}
	}

	products := []struct {
		name  string
		price int64
		stock int64
	}{
		{"Pan Blanco 680g", 42, 30},
		{"Tortillinas 10p", 25, 50},
		{"Mantecadas Vainilla", 35, 20},
		{"Donas Azucaradas 6p", 30, 15},
	}
	for _, p := range products {
		inventory := models.ProductInventory{
			ID:            uuid.NewString(),
			ProductId:     uuid.NewString(),
			ProductName:   p.name,
			PriceAtMoment: decimal.NewFromInt(p.price),
			Stock:         decimal.NewFromInt(p.stock),
		}
		if err := db.Create(&inventory).Error; err != nil {
			log.Fatal(err)
		}
	}

	if _, err := models.EnqueueOutbox(ctx, db, models.EntityTableWorkDay, models.OutboxActionInsert, workDay.ID, "", &workDay); err != nil {
		log.Fatal(err)
	}

	log.Printf("seeded work day %s with %d stores and %d products", workDay.ID, len(storeNames), len(products))
}
