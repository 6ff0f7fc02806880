package centralsync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/routesales_device/models"
	"bitbucket.org/mmdatafocus/routesales_device/utils"
)

// fakeOutboxStore holds records in memory and tracks status flips.
type fakeOutboxStore struct {
	records map[string]*models.OutboxRecord

	listErr error
	markErr error
}

func newFakeOutboxStore() *fakeOutboxStore {
	return &fakeOutboxStore{records: map[string]*models.OutboxRecord{}}
}

func (s *fakeOutboxStore) add(record models.OutboxRecord) {
	copied := record
	s.records[record.ID] = &copied
}

func (s *fakeOutboxStore) ListPending(ctx context.Context, tables ...models.EntityTable) ([]models.OutboxRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	wanted := map[models.EntityTable]bool{}
	for _, table := range tables {
		wanted[table] = true
	}
	var out []models.OutboxRecord
	for _, record := range s.records {
		if record.Status != models.OutboxStatusPending && record.Status != models.OutboxStatusFailed {
			continue
		}
		if len(wanted) > 0 && !wanted[record.EntityTable] {
			continue
		}
		out = append(out, *record)
	}
	return out, nil
}

func (s *fakeOutboxStore) MarkSynced(ctx context.Context, ids []string) error {
	if s.markErr != nil {
		return s.markErr
	}
	for _, id := range ids {
		if record, ok := s.records[id]; ok {
			record.Status = models.OutboxStatusSuccess
		}
	}
	return nil
}

func (s *fakeOutboxStore) MarkFailed(ctx context.Context, ids []string, cause error) error {
	for _, id := range ids {
		if record, ok := s.records[id]; ok {
			record.Status = models.OutboxStatusFailed
			record.SyncAttempts++
		}
	}
	return nil
}

type upsertCall struct {
	table   models.EntityTable
	records []json.RawMessage
}

// fakeRemoteClient records upserts in call order and can fail per table.
type fakeRemoteClient struct {
	calls       []upsertCall
	failOnTable models.EntityTable
	failWith    error
}

func (c *fakeRemoteClient) Upsert(ctx context.Context, table models.EntityTable, records []json.RawMessage, key string) error {
	if c.failWith != nil && table == c.failOnTable {
		return c.failWith
	}
	if key != "id" {
		return errors.New("unexpected conflict key " + key)
	}
	c.calls = append(c.calls, upsertCall{table: table, records: records})
	return nil
}

func pendingRecord(id string, table models.EntityTable, action models.OutboxAction, createdAt time.Time) models.OutboxRecord {
	return models.OutboxRecord{
		ID:          id,
		Status:      models.OutboxStatusPending,
		EntityTable: table,
		EntityId:    "entity-" + id,
		Action:      action,
		Payload:     json.RawMessage(`{"id":"entity-` + id + `"}`),
		TypeRank:    models.EntityTypeRank(table),
		ActionRank:  models.OutboxActionRank(action),
		CreatedAt:   createdAt,
	}
}

func TestSyncOnce_DrainsInDependencyOrder(t *testing.T) {
	store := newFakeOutboxStore()
	base := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)

	// Insert deliberately out of dependency order.
	store.add(pendingRecord("li-1", models.EntityTableTransactionLineItem, models.OutboxActionInsert, base))
	store.add(pendingRecord("tx-1", models.EntityTableRouteTransaction, models.OutboxActionInsert, base.Add(time.Second)))
	store.add(pendingRecord("wd-1", models.EntityTableWorkDay, models.OutboxActionInsert, base.Add(2*time.Second)))
	store.add(pendingRecord("op-1", models.EntityTableTransactionOperation, models.OutboxActionInsert, base.Add(3*time.Second)))
	store.add(pendingRecord("st-1", models.EntityTableStore, models.OutboxActionInsert, base.Add(4*time.Second)))
	store.add(pendingRecord("pi-1", models.EntityTableProductInventory, models.OutboxActionUpdate, base.Add(5*time.Second)))

	client := &fakeRemoteClient{}
	replicator := NewReplicator(store, client, nil)

	if err := replicator.SyncOnce(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	wantOrder := []models.EntityTable{
		models.EntityTableWorkDay,
		models.EntityTableStore,
		models.EntityTableProductInventory,
		models.EntityTableRouteTransaction,
		models.EntityTableTransactionOperation,
		models.EntityTableTransactionLineItem,
	}
	if len(client.calls) != len(wantOrder) {
		t.Fatalf("expected %d upserts, got %d", len(wantOrder), len(client.calls))
	}
	for i, call := range client.calls {
		if call.table != wantOrder[i] {
			t.Fatalf("upsert %d hit %s, want %s", i, call.table, wantOrder[i])
		}
	}

	for id, record := range store.records {
		if record.Status != models.OutboxStatusSuccess {
			t.Fatalf("record %s left in %s", id, record.Status)
		}
	}
}

func TestSyncOnce_InsertBeforeUpdateWithinTable(t *testing.T) {
	store := newFakeOutboxStore()
	base := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)

	// The update was enqueued first; the insert must still go out first.
	store.add(pendingRecord("up-1", models.EntityTableStore, models.OutboxActionUpdate, base))
	store.add(pendingRecord("in-1", models.EntityTableStore, models.OutboxActionInsert, base.Add(time.Minute)))

	client := &fakeRemoteClient{}
	replicator := NewReplicator(store, client, nil)
	if err := replicator.SyncOnce(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if len(client.calls) != 2 {
		t.Fatalf("expected 2 upserts, got %d", len(client.calls))
	}
	if string(client.calls[0].records[0]) != `{"id":"entity-in-1"}` {
		t.Fatalf("first upsert was %s, want the insert", client.calls[0].records[0])
	}
}

func TestSyncOnce_BatchesConsecutiveSameTableRecords(t *testing.T) {
	store := newFakeOutboxStore()
	base := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	store.add(pendingRecord("li-1", models.EntityTableTransactionLineItem, models.OutboxActionInsert, base))
	store.add(pendingRecord("li-2", models.EntityTableTransactionLineItem, models.OutboxActionInsert, base.Add(time.Second)))
	store.add(pendingRecord("li-3", models.EntityTableTransactionLineItem, models.OutboxActionInsert, base.Add(2*time.Second)))

	client := &fakeRemoteClient{}
	replicator := NewReplicator(store, client, nil)
	if err := replicator.SyncOnce(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if len(client.calls) != 1 {
		t.Fatalf("expected 1 batched upsert, got %d", len(client.calls))
	}
	if len(client.calls[0].records) != 3 {
		t.Fatalf("expected 3 records in batch, got %d", len(client.calls[0].records))
	}
}

func TestSyncOnce_FailedPhaseAbortsLaterPhases(t *testing.T) {
	store := newFakeOutboxStore()
	base := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	store.add(pendingRecord("wd-1", models.EntityTableWorkDay, models.OutboxActionInsert, base))
	store.add(pendingRecord("tx-1", models.EntityTableRouteTransaction, models.OutboxActionInsert, base.Add(time.Second)))
	store.add(pendingRecord("li-1", models.EntityTableTransactionLineItem, models.OutboxActionInsert, base.Add(2*time.Second)))

	client := &fakeRemoteClient{
		failOnTable: models.EntityTableRouteTransaction,
		failWith:    errors.New("connection refused"),
	}
	replicator := NewReplicator(store, client, nil)

	err := replicator.SyncOnce(context.Background())
	if !utils.IsReplication(err) {
		t.Fatalf("expected replication error, got %T: %v", err, err)
	}
	var replicationErr *utils.ReplicationError
	errors.As(err, &replicationErr)
	if replicationErr.Phase != "transaction & inventory headers" {
		t.Fatalf("expected failing phase reported, got %q", replicationErr.Phase)
	}

	// Phase 1 succeeded, the failed rows flip to FAILED with an attempt
	// counted, and phase 3 was never touched.
	if store.records["wd-1"].Status != models.OutboxStatusSuccess {
		t.Fatalf("wd-1 status = %s, want SUCCESS", store.records["wd-1"].Status)
	}
	if store.records["tx-1"].Status != models.OutboxStatusFailed || store.records["tx-1"].SyncAttempts != 1 {
		t.Fatalf("tx-1 status=%s attempts=%d, want FAILED/1",
			store.records["tx-1"].Status, store.records["tx-1"].SyncAttempts)
	}
	if store.records["li-1"].Status != models.OutboxStatusPending {
		t.Fatalf("li-1 status = %s, want untouched PENDING", store.records["li-1"].Status)
	}
	for _, call := range client.calls {
		if call.table == models.EntityTableTransactionLineItem {
			t.Fatal("line-item phase ran after an aborted phase")
		}
	}
}

func TestSyncOnce_FailedRecordsRetryNextPass(t *testing.T) {
	store := newFakeOutboxStore()
	record := pendingRecord("tx-1", models.EntityTableRouteTransaction, models.OutboxActionInsert, time.Now())
	record.Status = models.OutboxStatusFailed
	record.SyncAttempts = 2
	store.add(record)

	client := &fakeRemoteClient{}
	replicator := NewReplicator(store, client, nil)
	if err := replicator.SyncOnce(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if store.records["tx-1"].Status != models.OutboxStatusSuccess {
		t.Fatalf("retried record status = %s, want SUCCESS", store.records["tx-1"].Status)
	}
}

func TestSyncOnce_EmptyOutboxIsNoOp(t *testing.T) {
	client := &fakeRemoteClient{}
	replicator := NewReplicator(newFakeOutboxStore(), client, nil)
	if err := replicator.SyncOnce(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if len(client.calls) != 0 {
		t.Fatalf("expected no upserts, got %d", len(client.calls))
	}
}

func TestNextDelay_ExponentialBackoffCapped(t *testing.T) {
	replicator := NewReplicator(newFakeOutboxStore(), &fakeRemoteClient{}, nil)
	replicator.PollInterval = 10 * time.Second
	replicator.InitialBackoff = 5 * time.Second
	replicator.MaxBackoff = 40 * time.Second

	wants := []struct {
		failures int
		delay    time.Duration
	}{
		{0, 10 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{10, 40 * time.Second},
	}
	for _, want := range wants {
		replicator.consecutiveFailures = want.failures
		if got := replicator.nextDelay(); got != want.delay {
			t.Fatalf("failures=%d delay=%s, want %s", want.failures, got, want.delay)
		}
	}
}

func TestGroupForUpsert_SplitsOnActionChange(t *testing.T) {
	base := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	records := []models.OutboxRecord{
		pendingRecord("a", models.EntityTableStore, models.OutboxActionInsert, base),
		pendingRecord("b", models.EntityTableStore, models.OutboxActionInsert, base.Add(time.Second)),
		pendingRecord("c", models.EntityTableStore, models.OutboxActionUpdate, base.Add(2*time.Second)),
	}
	groups := groupForUpsert(records)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0].records) != 2 || groups[0].action != models.OutboxActionInsert {
		t.Fatalf("unexpected first group: %+v", groups[0])
	}
	if len(groups[1].records) != 1 || groups[1].action != models.OutboxActionUpdate {
		t.Fatalf("unexpected second group: %+v", groups[1])
	}
}
