package workflow

import (
	"bitbucket.org/mmdatafocus/routesales_device/models"
)

// CommitListener receives saga outcomes. The presentation layer registers
// one to refresh its inventory and store views; the core never imports it.
type CommitListener interface {
	OnCommitted(transaction *models.RouteTransaction, updatedInventory []models.ProductInventory, updatedStore *models.Store)
	OnRolledBack(reason error)
}

// NopCommitListener is the default when no listener is registered.
type NopCommitListener struct{}

func (NopCommitListener) OnCommitted(*models.RouteTransaction, []models.ProductInventory, *models.Store) {
}

func (NopCommitListener) OnRolledBack(error) {}
