package workflow

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/routesales_device/models"
)

// ProductOutflow is one product's proposed outflow amount from the shared
// stock pool (a sale line or a reposition line).
type ProductOutflow struct {
	ProductId string
	Amount    decimal.Decimal
}

// Allocation is the allocator's verdict for one proposed outflow. Reason is
// empty when the proposal was honored in full; otherwise it carries the
// operator-facing explanation and Amount holds the capped value.
type Allocation struct {
	ProductId string
	Amount    decimal.Decimal
	Reason    string
}

// AllocateCommitment decides how much of each proposed outflow the current
// stock can honor, given a prior outflow list that already claimed part of
// the same pool. The prior list keeps its claim in full up to stock; the
// proposed list is capped to what remains.
//
// The function is pure: it never fails, performs no I/O, and always returns
// a best-effort allocation ordered by the inventory snapshot (proposals for
// unknown products follow, in proposal order, with zero stock semantics).
func AllocateCommitment(inventories []models.ProductInventory, proposed []ProductOutflow, prior []ProductOutflow) []Allocation {
	proposedByProduct := make(map[string]decimal.Decimal, len(proposed))
	proposalOrder := make([]string, 0, len(proposed))
	for _, outflow := range proposed {
		if _, seen := proposedByProduct[outflow.ProductId]; !seen {
			proposalOrder = append(proposalOrder, outflow.ProductId)
		}
		proposedByProduct[outflow.ProductId] = proposedByProduct[outflow.ProductId].Add(outflow.Amount)
	}
	priorByProduct := make(map[string]decimal.Decimal, len(prior))
	for _, outflow := range prior {
		priorByProduct[outflow.ProductId] = priorByProduct[outflow.ProductId].Add(outflow.Amount)
	}

	allocations := make([]Allocation, 0, len(proposed))
	claimed := make(map[string]bool, len(proposed))

	appendAllocation := func(productId string, stock decimal.Decimal) {
		requested, ok := proposedByProduct[productId]
		if !ok {
			return
		}
		claimed[productId] = true
		allocations = append(allocations, allocateOne(productId, requested, priorByProduct[productId], stock))
	}

	for _, inventory := range inventories {
		appendAllocation(inventory.ProductId, inventory.Stock)
	}
	// Proposals for products missing from the snapshot behave as stock 0.
	for _, productId := range proposalOrder {
		if !claimed[productId] {
			appendAllocation(productId, decimal.Zero)
		}
	}
	return allocations
}

func allocateOne(productId string, requested, priorClaim, stock decimal.Decimal) Allocation {
	if stock.LessThanOrEqual(decimal.Zero) {
		return Allocation{
			ProductId: productId,
			Amount:    decimal.Zero,
			Reason:    insufficientStockReason(stock),
		}
	}

	combined := requested.Add(priorClaim)
	if combined.LessThanOrEqual(stock) {
		return Allocation{ProductId: productId, Amount: requested}
	}

	available := stock.Sub(priorClaim)
	if available.IsNegative() {
		available = decimal.Zero
	}
	if available.GreaterThan(requested) {
		available = requested
	}
	return Allocation{
		ProductId: productId,
		Amount:    available,
		Reason:    insufficientStockReason(stock),
	}
}

func insufficientStockReason(stock decimal.Decimal) string {
	return fmt.Sprintf("insufficient stock, stock: %s", stock.String())
}
