package workflow

import (
	"bitbucket.org/mmdatafocus/routesales_device/models"
)

// AdvanceRoute computes the next current stop after a visit at `current`.
// Returns nil when the pointer must not move:
//   - the visited stop is not the current one (selling at a non-current
//     store never advances the route), or
//   - no stop after it, in route order, still awaits a visit (last stop).
//
// The scan is forward-only and never wraps; the earliest eligible index
// wins. Pure and deterministic, inputs are never mutated.
func AdvanceRoute(current models.DayOperation, route []models.DayOperation, visitStates map[string]models.StoreVisitState) *models.DayOperation {
	if !current.IsCurrent {
		return nil
	}

	position := -1
	for i := range route {
		if route[i].ID == current.ID {
			position = i
			break
		}
	}
	if position < 0 {
		return nil
	}

	for i := position + 1; i < len(route); i++ {
		state, ok := visitStates[route[i].StoreId]
		if !ok {
			continue
		}
		if state == models.StoreVisitStatePendingToVisit || state == models.StoreVisitStateRequestForSelling {
			next := route[i]
			return &next
		}
	}
	return nil
}
