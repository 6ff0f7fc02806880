package workflow

import (
	"bitbucket.org/mmdatafocus/routesales_device/models"
)

// Visit-state transitions are data, not per-call-site code. Two closed
// tables: one for planned route stops, one for unplanned visits where the
// store asked the vendor in.
var plannedVisitTransitions = map[models.StoreVisitState]models.StoreVisitState{
	models.StoreVisitStatePendingToVisit: models.StoreVisitStateVisited,
	models.StoreVisitStateVisited:        models.StoreVisitStateVisited,
}

var unplannedVisitTransitions = map[models.StoreVisitState]models.StoreVisitState{
	models.StoreVisitStateRequestForSelling: models.StoreVisitStateSpecialSale,
	models.StoreVisitStateSpecialSale:       models.StoreVisitStateSpecialSale,
}

// NextStoreVisitState computes the state a store lands in after a committed
// sale. Unknown states stay put rather than inventing a transition.
func NextStoreVisitState(current models.StoreVisitState) models.StoreVisitState {
	table := plannedVisitTransitions
	if current == models.StoreVisitStateRequestForSelling || current == models.StoreVisitStateSpecialSale {
		table = unplannedVisitTransitions
	}
	if next, ok := table[current]; ok {
		return next
	}
	return current
}
