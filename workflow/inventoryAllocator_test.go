package workflow

import (
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/routesales_device/models"
)

func singleProductInventory(productId string, stock int64) []models.ProductInventory {
	return []models.ProductInventory{
		{
			ID:        "inv-" + productId,
			ProductId: productId,
			Stock:     decimal.NewFromInt(stock),
		},
	}
}

func outflow(productId string, amount int64) ProductOutflow {
	return ProductOutflow{ProductId: productId, Amount: decimal.NewFromInt(amount)}
}

func TestAllocator_SharedPoolHonorsPriorFirst(t *testing.T) {
	// Stock 5, sale already claimed 4, reposition proposes 3:
	// reposition must be capped to 1 with the stock surfaced in the reason.
	inventories := singleProductInventory("P1", 5)
	prior := []ProductOutflow{outflow("P1", 4)}
	proposed := []ProductOutflow{outflow("P1", 3)}

	allocations := AllocateCommitment(inventories, proposed, prior)
	if len(allocations) != 1 {
		t.Fatalf("expected 1 allocation, got %d", len(allocations))
	}
	if !allocations[0].Amount.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected reposition capped to 1, got %s", allocations[0].Amount)
	}
	if allocations[0].Reason != "insufficient stock, stock: 5" {
		t.Fatalf("unexpected reason: %q", allocations[0].Reason)
	}
}

func TestAllocator_BothFitFully(t *testing.T) {
	inventories := singleProductInventory("P1", 10)
	allocations := AllocateCommitment(inventories,
		[]ProductOutflow{outflow("P1", 3)},
		[]ProductOutflow{outflow("P1", 4)})

	if len(allocations) != 1 {
		t.Fatalf("expected 1 allocation, got %d", len(allocations))
	}
	if !allocations[0].Amount.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected full allocation of 3, got %s", allocations[0].Amount)
	}
	if allocations[0].Reason != "" {
		t.Fatalf("expected no reason, got %q", allocations[0].Reason)
	}
}

func TestAllocator_ZeroStockRejectsWithReason(t *testing.T) {
	inventories := singleProductInventory("P1", 0)
	allocations := AllocateCommitment(inventories, []ProductOutflow{outflow("P1", 2)}, nil)

	if len(allocations) != 1 {
		t.Fatalf("expected 1 allocation, got %d", len(allocations))
	}
	if !allocations[0].Amount.IsZero() {
		t.Fatalf("expected zero allocation, got %s", allocations[0].Amount)
	}
	if allocations[0].Reason != "insufficient stock, stock: 0" {
		t.Fatalf("unexpected reason: %q", allocations[0].Reason)
	}
}

func TestAllocator_SingleListCappedAtStock(t *testing.T) {
	inventories := singleProductInventory("P1", 5)
	allocations := AllocateCommitment(inventories, []ProductOutflow{outflow("P1", 7)}, nil)

	if !allocations[0].Amount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected allocation capped at 5, got %s", allocations[0].Amount)
	}
	if allocations[0].Reason != "insufficient stock, stock: 5" {
		t.Fatalf("unexpected reason: %q", allocations[0].Reason)
	}
}

func TestAllocator_UnknownProductBehavesAsZeroStock(t *testing.T) {
	allocations := AllocateCommitment(nil, []ProductOutflow{outflow("ghost", 2)}, nil)

	if len(allocations) != 1 {
		t.Fatalf("expected 1 allocation, got %d", len(allocations))
	}
	if !allocations[0].Amount.IsZero() || allocations[0].Reason == "" {
		t.Fatalf("expected zero allocation with reason, got %s %q", allocations[0].Amount, allocations[0].Reason)
	}
}

func TestAllocator_OutputFollowsInventoryOrder(t *testing.T) {
	inventories := []models.ProductInventory{
		{ID: "i1", ProductId: "P1", Stock: decimal.NewFromInt(5)},
		{ID: "i2", ProductId: "P2", Stock: decimal.NewFromInt(5)},
		{ID: "i3", ProductId: "P3", Stock: decimal.NewFromInt(5)},
	}
	// Proposal order deliberately reversed.
	proposed := []ProductOutflow{outflow("P3", 1), outflow("P1", 1)}

	allocations := AllocateCommitment(inventories, proposed, nil)
	if len(allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(allocations))
	}
	if allocations[0].ProductId != "P1" || allocations[1].ProductId != "P3" {
		t.Fatalf("expected inventory order P1,P3; got %s,%s", allocations[0].ProductId, allocations[1].ProductId)
	}
}

// Conservation: the two lists combined can never draw more than the stock.
func TestAllocator_Property_Conservation(t *testing.T) {
	for stock := int64(0); stock <= 10; stock++ {
		for saleAmount := int64(0); saleAmount <= 10; saleAmount++ {
			for repositionAmount := int64(0); repositionAmount <= 10; repositionAmount++ {
				inventories := singleProductInventory("P1", stock)

				saleAllocations := AllocateCommitment(inventories, []ProductOutflow{outflow("P1", saleAmount)}, nil)
				salePrior := make([]ProductOutflow, 0, 1)
				for _, allocation := range saleAllocations {
					if allocation.Amount.IsPositive() {
						salePrior = append(salePrior, ProductOutflow{ProductId: allocation.ProductId, Amount: allocation.Amount})
					}
				}
				repositionAllocations := AllocateCommitment(inventories, []ProductOutflow{outflow("P1", repositionAmount)}, salePrior)

				total := decimal.Zero
				for _, allocation := range saleAllocations {
					total = total.Add(allocation.Amount)
				}
				for _, allocation := range repositionAllocations {
					total = total.Add(allocation.Amount)
				}
				if total.GreaterThan(decimal.NewFromInt(stock)) {
					t.Fatalf("stock=%d sale=%d reposition=%d allocated %s beyond stock",
						stock, saleAmount, repositionAmount, total)
				}
			}
		}
	}
}

// Monotonicity: growing stock with fixed proposals never shrinks an allocation.
func TestAllocator_Property_Monotonicity(t *testing.T) {
	prior := []ProductOutflow{outflow("P1", 3)}
	proposed := []ProductOutflow{outflow("P1", 4)}

	previous := decimal.NewFromInt(-1)
	for stock := int64(0); stock <= 12; stock++ {
		allocations := AllocateCommitment(singleProductInventory("P1", stock), proposed, prior)
		if allocations[0].Amount.LessThan(previous) {
			t.Fatalf("allocation shrank from %s to %s at stock=%d", previous, allocations[0].Amount, stock)
		}
		previous = allocations[0].Amount
	}
}

func TestAllocator_Deterministic(t *testing.T) {
	inventories := []models.ProductInventory{
		{ID: "i1", ProductId: "P1", Stock: decimal.NewFromInt(5)},
		{ID: "i2", ProductId: "P2", Stock: decimal.NewFromInt(2)},
	}
	proposed := []ProductOutflow{outflow("P1", 4), outflow("P2", 3)}
	prior := []ProductOutflow{outflow("P1", 2)}

	first := AllocateCommitment(inventories, proposed, prior)
	second := AllocateCommitment(inventories, proposed, prior)

	if len(first) != len(second) {
		t.Fatalf("runs differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ProductId != second[i].ProductId ||
			!first[i].Amount.Equal(second[i].Amount) ||
			first[i].Reason != second[i].Reason {
			t.Fatalf("runs differ at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}
