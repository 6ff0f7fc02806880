package models

import (
	"testing"
	"time"
)

func TestEntityTypeRank_DependencyOrder(t *testing.T) {
	order := []EntityTable{
		EntityTableWorkDay,
		EntityTableStore,
		EntityTableProductInventory,
		EntityTableRouteTransaction,
		EntityTableTransactionOperation,
		EntityTableTransactionLineItem,
	}
	for i := 1; i < len(order); i++ {
		if EntityTypeRank(order[i-1]) >= EntityTypeRank(order[i]) {
			t.Fatalf("%s must rank before %s", order[i-1], order[i])
		}
	}
}

func TestEntityTypeRank_UnknownTableRanksLast(t *testing.T) {
	unknown := EntityTypeRank(EntityTable("mystery_table"))
	for table, rank := range entityTypeRanks {
		if rank >= unknown {
			t.Fatalf("known table %s ranks at %d, not before unknown rank %d", table, rank, unknown)
		}
	}
}

func TestOutboxActionRank(t *testing.T) {
	if OutboxActionRank(OutboxActionInsert) >= OutboxActionRank(OutboxActionUpdate) {
		t.Fatal("INSERT must rank before UPDATE")
	}
	if OutboxActionRank(OutboxActionUpdate) >= OutboxActionRank(OutboxActionDelete) {
		t.Fatal("UPDATE must rank before DELETE")
	}
	if OutboxActionRank(OutboxAction("MERGE")) <= OutboxActionRank(OutboxActionDelete) {
		t.Fatal("unknown actions must rank last")
	}
}

func TestPriorityKey_LexicographicNotCollapsed(t *testing.T) {
	// A later timestamp must never outrank a lower type rank, which is the
	// failure mode of collapsing the tuple into one weighted number.
	early := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	late := early.Add(48 * time.Hour)

	parent := OutboxRecord{
		EntityTable: EntityTableRouteTransaction,
		Action:      OutboxActionInsert,
		TypeRank:    EntityTypeRank(EntityTableRouteTransaction),
		ActionRank:  OutboxActionRank(OutboxActionInsert),
		CreatedAt:   late,
	}
	child := OutboxRecord{
		EntityTable: EntityTableTransactionLineItem,
		Action:      OutboxActionInsert,
		TypeRank:    EntityTypeRank(EntityTableTransactionLineItem),
		ActionRank:  OutboxActionRank(OutboxActionInsert),
		CreatedAt:   early,
	}

	pType, _, pTime := parent.PriorityKey()
	cType, _, cTime := child.PriorityKey()
	if pType >= cType {
		t.Fatalf("parent type rank %d must precede child %d", pType, cType)
	}
	if pTime <= cTime {
		t.Fatal("timestamps are reversed in fixture, fix the test")
	}
}
