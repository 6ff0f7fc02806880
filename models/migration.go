package models

import (
	"log"

	"bitbucket.org/mmdatafocus/routesales_device/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&WorkDay{}, &Store{}, &DayOperation{},
		&ProductInventory{},
		&RouteTransaction{}, &TransactionOperation{}, &TransactionLineItem{},
		&OutboxRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
