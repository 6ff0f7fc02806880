package models

type TransactionState string

const (
	TransactionStateActive    TransactionState = "ACTIVE"
	TransactionStateCancelled TransactionState = "CANCELLED"
)

type OperationType string

const (
	OperationTypeDevolution OperationType = "DEVOLUTION"
	OperationTypeReposition OperationType = "REPOSITION"
	OperationTypeSale       OperationType = "SALE"
)

// OperationTypes lists the three operation kinds in the order the saga
// builds them. A transaction owns at most one operation per kind.
var OperationTypes = []OperationType{
	OperationTypeDevolution,
	OperationTypeReposition,
	OperationTypeSale,
}

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodCredit   PaymentMethod = "CREDIT"
	PaymentMethodTransfer PaymentMethod = "TRANSFER"
)

// StoreVisitState is the per-store visit lifecycle. Transitions are driven
// only by the route progression tables in the workflow package.
type StoreVisitState string

const (
	StoreVisitStatePendingToVisit    StoreVisitState = "PENDING_TO_VISIT"
	StoreVisitStateRequestForSelling StoreVisitState = "REQUEST_FOR_SELLING"
	StoreVisitStateVisited           StoreVisitState = "VISITED"
	StoreVisitStateSpecialSale       StoreVisitState = "SPECIAL_SALE"
	StoreVisitStateSkipped           StoreVisitState = "SKIPPED"
)

type WorkDayState string

const (
	WorkDayStateOpen   WorkDayState = "OPEN"
	WorkDayStateClosed WorkDayState = "CLOSED"
)

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
	OutboxStatusSuccess OutboxStatus = "SUCCESS"
	OutboxStatusFailed  OutboxStatus = "FAILED"
)

type OutboxAction string

const (
	OutboxActionInsert OutboxAction = "INSERT"
	OutboxActionUpdate OutboxAction = "UPDATE"
	OutboxActionDelete OutboxAction = "DELETE"
)

// EntityTable identifies which local table an outbox payload belongs to.
type EntityTable string

const (
	EntityTableWorkDay              EntityTable = "work_days"
	EntityTableStore                EntityTable = "stores"
	EntityTableProductInventory     EntityTable = "product_inventories"
	EntityTableRouteTransaction     EntityTable = "route_transactions"
	EntityTableTransactionOperation EntityTable = "transaction_operations"
	EntityTableTransactionLineItem  EntityTable = "transaction_line_items"
)

// entityTypeRanks encodes the strict replication dependency order:
// root entities before transactions, transactions before operations,
// operations before line items. Lower rank replicates first.
var entityTypeRanks = map[EntityTable]int{
	EntityTableWorkDay:              1,
	EntityTableStore:                2,
	EntityTableProductInventory:     3,
	EntityTableRouteTransaction:     4,
	EntityTableTransactionOperation: 5,
	EntityTableTransactionLineItem:  6,
}

var outboxActionRanks = map[OutboxAction]int{
	OutboxActionInsert: 1,
	OutboxActionUpdate: 2,
	OutboxActionDelete: 3,
}

func EntityTypeRank(table EntityTable) int {
	if rank, ok := entityTypeRanks[table]; ok {
		return rank
	}
	// Unknown tables replicate last so a missing rank can never jump
	// ahead of a parent entity.
	return 99
}

func OutboxActionRank(action OutboxAction) int {
	if rank, ok := outboxActionRanks[action]; ok {
		return rank
	}
	return 9
}
