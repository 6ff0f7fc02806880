package workflow

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/routesales_device/config"
	"bitbucket.org/mmdatafocus/routesales_device/models"
	"bitbucket.org/mmdatafocus/routesales_device/utils"
)

type SagaState string

const (
	SagaStateBuilding     SagaState = "BUILDING"
	SagaStatePersisting   SagaState = "PERSISTING"
	SagaStateCommitted    SagaState = "COMMITTED"
	SagaStateCompensating SagaState = "COMPENSATING"
	SagaStateRolledBack   SagaState = "ROLLED_BACK"
)

// ProposalLine is one product row the operator keyed in before commit.
type ProposalLine struct {
	ProductId     string          `validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	PriceAtMoment decimal.Decimal `json:"price_at_moment"`
}

// SaleProposal is the immutable input to a commit: the three product lists
// built on screen plus the payment facts. The saga never mutates it, so the
// operator can retry the same proposal after a rollback.
type SaleProposal struct {
	WorkDayId     string               `validate:"required"`
	StoreId       string               `validate:"required"`
	Date          time.Time            `validate:"required"`
	PaymentMethod models.PaymentMethod `validate:"required,oneof=CASH CREDIT TRANSFER"`
	CashReceived  decimal.Decimal
	Devolution    []ProposalLine `validate:"dive"`
	Reposition    []ProposalLine `validate:"dive"`
	Sale          []ProposalLine `validate:"dive"`
}

// CommitResult reports a committed saga: the persisted transaction, the
// inventory rows it changed, the store's new state, and any allocator
// warnings (capped amounts) the operator should see.
type CommitResult struct {
	Transaction      *models.RouteTransaction
	UpdatedInventory []models.ProductInventory
	UpdatedStore     *models.Store
	Warnings         []string
}

// SaleSaga commits one store visit: transaction + operations + line items,
// inventory deduction, store-state transition, route-pointer advance and
// outbox enqueueing. Any persistence failure triggers full compensation
// back to the pre-saga snapshot.
//
// One saga instance serves one commit attempt; the UI layer serializes
// sale attempts, so there is never a second saga against the same snapshot.
type SaleSaga struct {
	store    SagaStore
	logger   *logrus.Logger
	listener CommitListener
	validate *validator.Validate
	state    SagaState
}

func NewSaleSaga(store SagaStore, logger *logrus.Logger, listener CommitListener) *SaleSaga {
	if listener == nil {
		listener = NopCommitListener{}
	}
	return &SaleSaga{
		store:    store,
		logger:   logger,
		listener: listener,
		validate: validator.New(),
		state:    SagaStateBuilding,
	}
}

func (s *SaleSaga) State() SagaState {
	return s.state
}

// preCommitSnapshot captures everything compensation must restore.
type preCommitSnapshot struct {
	inventories []models.ProductInventory
	visitState  models.StoreVisitState
	currentOp   *models.DayOperation
}

type builtOperation struct {
	operation models.TransactionOperation
	lineItems []models.TransactionLineItem
}

// Commit runs the saga to COMMITTED or ROLLED_BACK. Caller cancellation is
// honored only before PERSISTING begins; after that the saga always runs to
// one of its two terminal states.
func (s *SaleSaga) Commit(ctx context.Context, proposal SaleProposal) (*CommitResult, error) {
	s.state = SagaStateBuilding

	if err := s.validate.Struct(proposal); err != nil {
		return nil, &utils.ValidationError{Field: "proposal", Reason: validationReason(err)}
	}
	if err := validateProposalAmounts(proposal); err != nil {
		return nil, err
	}

	inventories, err := s.store.ListInventory(ctx)
	if err != nil {
		return nil, err
	}
	storeRecord, err := s.store.GetStore(ctx, proposal.StoreId)
	if err != nil {
		return nil, err
	}
	currentOp, err := s.store.GetCurrentDayOperation(ctx, proposal.WorkDayId)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}
	route, err := s.store.ListRoute(ctx, proposal.WorkDayId)
	if err != nil {
		return nil, err
	}
	visitStates, err := s.store.ListStoreVisitStates(ctx, route)
	if err != nil {
		return nil, err
	}

	// The sale list claims the shared pool first; reposition gets whatever
	// stock remains after the sale's allocation.
	saleAllocations := AllocateCommitment(inventories, toOutflows(proposal.Sale), nil)
	repositionAllocations := AllocateCommitment(inventories, toOutflows(proposal.Reposition), allocationsToOutflows(saleAllocations))

	warnings := collectWarnings(saleAllocations, repositionAllocations)
	saleLines := cappedLines(proposal.Sale, saleAllocations)
	repositionLines := cappedLines(proposal.Reposition, repositionAllocations)

	transaction, operations := buildTransaction(proposal, proposal.Devolution, repositionLines, saleLines)
	if len(operations) == 0 {
		return nil, &utils.ValidationError{Field: "proposal", Reason: "no committable line items"}
	}

	updatedInventories := deductOutflows(inventories, append(allocationsToOutflows(repositionAllocations), allocationsToOutflows(saleAllocations)...))
	nextVisitState := NextStoreVisitState(storeRecord.VisitState)

	projectedStates := make(map[string]models.StoreVisitState, len(visitStates))
	for storeId, state := range visitStates {
		projectedStates[storeId] = state
	}
	projectedStates[storeRecord.ID] = nextVisitState

	// The pointer may only move when the visited store is the route's
	// current stop, so the automaton gets the visited stop, not the
	// global current one.
	var nextCurrent *models.DayOperation
	for i := range route {
		if route[i].StoreId == proposal.StoreId {
			nextCurrent = AdvanceRoute(route[i], route, projectedStates)
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snapshot := preCommitSnapshot{
		inventories: inventories,
		visitState:  storeRecord.VisitState,
		currentOp:   currentOp,
	}

	// No mid-flight cancellation once persistence starts.
	persistCtx := context.WithoutCancel(ctx)

	s.state = SagaStatePersisting
	persistErr := s.persist(persistCtx, transaction, operations, updatedInventories, nextVisitState, nextCurrent)
	if persistErr == nil {
		s.state = SagaStateCommitted
		storeRecord.VisitState = nextVisitState
		s.listener.OnCommitted(transaction, updatedInventories, storeRecord)
		return &CommitResult{
			Transaction:      transaction,
			UpdatedInventory: updatedInventories,
			UpdatedStore:     storeRecord,
			Warnings:         warnings,
		}, nil
	}

	s.state = SagaStateCompensating
	if compErr := s.compensate(persistCtx, proposal.WorkDayId, transaction.ID, storeRecord.ID, snapshot); compErr != nil {
		logCompensationFailure(s.logger, transaction.ID, compErr)
		return nil, compErr
	}
	s.state = SagaStateRolledBack
	s.listener.OnRolledBack(persistErr)
	return nil, persistErr
}

// persist runs the PERSISTING sub-steps in order, each in its own atomic
// unit, and reports the first failure with its step name.
func (s *SaleSaga) persist(ctx context.Context, transaction *models.RouteTransaction, operations []builtOperation,
	updatedInventories []models.ProductInventory, nextVisitState models.StoreVisitState, nextCurrent *models.DayOperation) error {

	if err := s.store.InsertTransaction(ctx, transaction); err != nil {
		return &utils.PersistenceError{Step: "insert transaction", Err: err}
	}
	for i := range operations {
		if err := s.store.InsertOperation(ctx, &operations[i].operation, operations[i].lineItems); err != nil {
			return &utils.PersistenceError{Step: "insert operation " + string(operations[i].operation.OperationType), Err: err}
		}
	}
	if err := s.store.SaveInventories(ctx, updatedInventories); err != nil {
		return &utils.PersistenceError{Step: "save inventory", Err: err}
	}
	if err := s.store.SaveStoreVisitState(ctx, transaction.StoreId, nextVisitState); err != nil {
		return &utils.PersistenceError{Step: "save store state", Err: err}
	}
	if nextCurrent != nil {
		if err := s.store.SetCurrentDayOperation(ctx, transaction.WorkDayId, nextCurrent.ID); err != nil {
			return &utils.PersistenceError{Step: "advance route", Err: err}
		}
	}

	// Only transaction-domain entities replicate from this engine; inventory
	// and store/day-operation state are device-local derived state.
	if err := s.store.EnqueueOutbox(ctx, models.EntityTableRouteTransaction, models.OutboxActionInsert, transaction.ID, transaction.ID, transaction); err != nil {
		return &utils.PersistenceError{Step: "enqueue transaction outbox", Err: err}
	}
	for i := range operations {
		operation := operations[i].operation
		if err := s.store.EnqueueOutbox(ctx, models.EntityTableTransactionOperation, models.OutboxActionInsert, operation.ID, transaction.ID, operation); err != nil {
			return &utils.PersistenceError{Step: "enqueue operation outbox", Err: err}
		}
		for _, lineItem := range operations[i].lineItems {
			if err := s.store.EnqueueOutbox(ctx, models.EntityTableTransactionLineItem, models.OutboxActionInsert, lineItem.ID, transaction.ID, lineItem); err != nil {
				return &utils.PersistenceError{Step: "enqueue line item outbox", Err: err}
			}
		}
	}
	return nil
}

// compensate undoes everything persist may have written. Every step is
// idempotent, so a partial compensation can be retried; the first failing
// step is reported after the remaining steps have been attempted.
func (s *SaleSaga) compensate(ctx context.Context, workDayId string, transactionId string, storeId string, snapshot preCommitSnapshot) error {
	var firstErr error
	fail := func(step string, err error) {
		if err != nil && firstErr == nil {
			firstErr = &utils.CompensationError{TransactionId: transactionId, Step: step, Err: err}
		}
	}

	fail("delete outbox", s.store.DeleteOutboxForTransaction(ctx, transactionId))
	fail("delete transaction", s.store.DeleteTransaction(ctx, transactionId))
	fail("restore inventory", s.store.SaveInventories(ctx, snapshot.inventories))
	fail("restore store state", s.store.SaveStoreVisitState(ctx, storeId, snapshot.visitState))
	if snapshot.currentOp != nil {
		fail("restore route pointer", s.store.SetCurrentDayOperation(ctx, workDayId, snapshot.currentOp.ID))
	}
	return firstErr
}

func validationReason(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}
	parts := make([]string, 0, len(validationErrors))
	for field, tag := range utils.ProcessValidationErrors(err) {
		parts = append(parts, field+" failed "+tag)
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func validateProposalAmounts(proposal SaleProposal) error {
	for _, list := range [][]ProposalLine{proposal.Devolution, proposal.Reposition, proposal.Sale} {
		for _, line := range list {
			if !line.Amount.IsPositive() {
				return &utils.ValidationError{
					Field:  "amount",
					Reason: "line amount must be positive for product " + line.ProductId,
				}
			}
		}
	}
	return nil
}

// buildTransaction assembles the transaction tree in memory. Operations
// with an empty line-item list are skipped entirely.
func buildTransaction(proposal SaleProposal, devolution, reposition, sale []ProposalLine) (*models.RouteTransaction, []builtOperation) {
	transaction := &models.RouteTransaction{
		ID:            uuid.NewString(),
		Date:          proposal.Date,
		State:         models.TransactionStateActive,
		CashReceived:  proposal.CashReceived,
		WorkDayId:     proposal.WorkDayId,
		StoreId:       proposal.StoreId,
		PaymentMethod: proposal.PaymentMethod,
	}

	listsByType := map[models.OperationType][]ProposalLine{
		models.OperationTypeDevolution: devolution,
		models.OperationTypeReposition: reposition,
		models.OperationTypeSale:       sale,
	}

	var operations []builtOperation
	for _, operationType := range models.OperationTypes {
		lines := listsByType[operationType]
		if len(lines) == 0 {
			continue
		}
		operation := models.TransactionOperation{
			ID:            uuid.NewString(),
			TransactionId: transaction.ID,
			OperationType: operationType,
		}
		lineItems := make([]models.TransactionLineItem, 0, len(lines))
		for _, line := range lines {
			lineItems = append(lineItems, models.TransactionLineItem{
				ID:            uuid.NewString(),
				OperationId:   operation.ID,
				ProductId:     line.ProductId,
				PriceAtMoment: line.PriceAtMoment,
				Amount:        line.Amount,
			})
		}
		operations = append(operations, builtOperation{operation: operation, lineItems: lineItems})
	}
	return transaction, operations
}

// deductOutflows applies reposition + sale outflows (never devolution) to
// copies of the affected inventory rows and returns only the changed rows.
func deductOutflows(inventories []models.ProductInventory, outflows []ProductOutflow) []models.ProductInventory {
	totalByProduct := make(map[string]decimal.Decimal, len(outflows))
	for _, outflow := range outflows {
		totalByProduct[outflow.ProductId] = totalByProduct[outflow.ProductId].Add(outflow.Amount)
	}

	var updated []models.ProductInventory
	for _, inventory := range inventories {
		total, ok := totalByProduct[inventory.ProductId]
		if !ok || total.IsZero() {
			continue
		}
		changed := inventory
		changed.Stock = inventory.Stock.Sub(total)
		if changed.Stock.IsNegative() {
			// The allocator already capped outflows at stock; clamping here
			// keeps the stock >= 0 invariant even for a stale snapshot.
			changed.Stock = decimal.Zero
		}
		updated = append(updated, changed)
	}
	return updated
}

func toOutflows(lines []ProposalLine) []ProductOutflow {
	outflows := make([]ProductOutflow, 0, len(lines))
	for _, line := range lines {
		outflows = append(outflows, ProductOutflow{ProductId: line.ProductId, Amount: line.Amount})
	}
	return outflows
}

func allocationsToOutflows(allocations []Allocation) []ProductOutflow {
	outflows := make([]ProductOutflow, 0, len(allocations))
	for _, allocation := range allocations {
		if allocation.Amount.IsPositive() {
			outflows = append(outflows, ProductOutflow{ProductId: allocation.ProductId, Amount: allocation.Amount})
		}
	}
	return outflows
}

// cappedLines rewrites proposal lines with the allocator's amounts,
// dropping lines capped to zero.
func cappedLines(lines []ProposalLine, allocations []Allocation) []ProposalLine {
	remainingByProduct := make(map[string]decimal.Decimal, len(allocations))
	for _, allocation := range allocations {
		remainingByProduct[allocation.ProductId] = allocation.Amount
	}

	capped := make([]ProposalLine, 0, len(lines))
	for _, line := range lines {
		remaining, ok := remainingByProduct[line.ProductId]
		if !ok || !remaining.IsPositive() {
			continue
		}
		granted := line.Amount
		if granted.GreaterThan(remaining) {
			granted = remaining
		}
		remainingByProduct[line.ProductId] = remaining.Sub(granted)
		capped = append(capped, ProposalLine{
			ProductId:     line.ProductId,
			Amount:        granted,
			PriceAtMoment: line.PriceAtMoment,
		})
	}
	return capped
}

func collectWarnings(allocationLists ...[]Allocation) []string {
	var warnings []string
	for _, allocations := range allocationLists {
		for _, allocation := range allocations {
			if allocation.Reason != "" {
				warnings = append(warnings, allocation.ProductId+": "+allocation.Reason)
			}
		}
	}
	return warnings
}

func logCompensationFailure(logger *logrus.Logger, transactionId string, err error) {
	if logger == nil {
		return
	}
	config.LogError(logger, "workflow", "SaleSaga.Commit",
		"compensation failed, local state needs reconciliation",
		map[string]string{"transaction_id": transactionId}, err)
}
