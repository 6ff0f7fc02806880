package centralsync

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/routesales_device/config"
	"bitbucket.org/mmdatafocus/routesales_device/models"
	"bitbucket.org/mmdatafocus/routesales_device/utils"
)

// conflictKey is the primary-id column every upsert is keyed on.
const conflictKey = "id"

// replicationPhases fixes the pass structure: a phase runs only if the
// previous phase's server calls all succeeded, so a parent entity is always
// on the server before its children arrive.
var replicationPhases = []struct {
	name   string
	tables []models.EntityTable
}{
	{
		name:   "work-day & store",
		tables: []models.EntityTable{models.EntityTableWorkDay, models.EntityTableStore},
	},
	{
		name: "transaction & inventory headers",
		tables: []models.EntityTable{
			models.EntityTableProductInventory,
			models.EntityTableRouteTransaction,
			models.EntityTableTransactionOperation,
		},
	},
	{
		name:   "line items",
		tables: []models.EntityTable{models.EntityTableTransactionLineItem},
	},
}

// Replicator drains the outbox toward the central server. It may run while
// a sale saga is writing; every outbox touch is its own small statement, so
// the two never hold the store across a network call.
type Replicator struct {
	Outbox   OutboxStore
	Client   RemoteClient
	Logger   *logrus.Logger
	WorkerID string

	PollInterval   time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	consecutiveFailures int
}

func NewReplicator(outbox OutboxStore, client RemoteClient, logger *logrus.Logger) *Replicator {
	return &Replicator{
		Outbox:         outbox,
		Client:         client,
		Logger:         logger,
		WorkerID:       uuid.NewString(),
		PollInterval:   10 * time.Second,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     10 * time.Minute,
	}
}

// Run executes replication passes until the context is cancelled. A failed
// pass backs off exponentially; any successful pass resets the backoff.
func (r *Replicator) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := r.SyncOnce(ctx); err != nil {
			r.consecutiveFailures++
			if r.Logger != nil {
				r.Logger.WithFields(logrus.Fields{
					"module":    "centralsync",
					"funcName":  "Replicator.Run",
					"worker_id": r.WorkerID,
					"failures":  r.consecutiveFailures,
				}).Warn("replication pass failed, records stay pending: " + err.Error())
			}
		} else {
			r.consecutiveFailures = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.nextDelay()):
		}
	}
}

func (r *Replicator) nextDelay() time.Duration {
	if r.consecutiveFailures == 0 {
		return r.PollInterval
	}
	backoff := r.InitialBackoff
	for i := 1; i < r.consecutiveFailures; i++ {
		backoff *= 2
		if backoff >= r.MaxBackoff {
			return r.MaxBackoff
		}
	}
	return backoff
}

// SyncOnce runs one replication pass. A failed phase aborts the remaining
// phases; the attempted records are marked FAILED (retried next pass) and
// everything untouched stays PENDING, giving at-least-once delivery.
func (r *Replicator) SyncOnce(ctx context.Context) error {
	for _, phase := range replicationPhases {
		records, err := r.Outbox.ListPending(ctx, phase.tables...)
		if err != nil {
			return &utils.ReplicationError{Phase: phase.name, Err: err}
		}
		if len(records) == 0 {
			continue
		}

		sortByPriority(records)

		for _, group := range groupForUpsert(records) {
			payloads := make([]json.RawMessage, 0, len(group.records))
			ids := make([]string, 0, len(group.records))
			for _, record := range group.records {
				payloads = append(payloads, record.Payload)
				ids = append(ids, record.ID)
			}

			if err := r.Client.Upsert(ctx, group.table, payloads, conflictKey); err != nil {
				if markErr := r.Outbox.MarkFailed(ctx, ids, err); markErr != nil && r.Logger != nil {
					logMarkError(r.Logger, group.table, markErr)
				}
				return &utils.ReplicationError{Phase: phase.name, Err: err}
			}
			if err := r.Outbox.MarkSynced(ctx, ids); err != nil {
				// The server already has the data; the rows will be re-sent
				// next pass and the idempotent upsert absorbs the replay.
				return &utils.ReplicationError{Phase: phase.name, Err: err}
			}
		}
	}
	return nil
}

type upsertGroup struct {
	table   models.EntityTable
	action  models.OutboxAction
	records []models.OutboxRecord
}

// groupForUpsert batches consecutive records sharing table and action,
// preserving the priority order across groups.
func groupForUpsert(records []models.OutboxRecord) []upsertGroup {
	var groups []upsertGroup
	for _, record := range records {
		n := len(groups)
		if n > 0 && groups[n-1].table == record.EntityTable && groups[n-1].action == record.Action {
			groups[n-1].records = append(groups[n-1].records, record)
			continue
		}
		groups = append(groups, upsertGroup{
			table:   record.EntityTable,
			action:  record.Action,
			records: []models.OutboxRecord{record},
		})
	}
	return groups
}

// sortByPriority orders records by the (typeRank, actionRank, enqueue time)
// tuple. The store already returns them sorted; sorting again here keeps
// the ordering guarantee independent of the store implementation.
func sortByPriority(records []models.OutboxRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		iType, iAction, iTime := records[i].PriorityKey()
		jType, jAction, jTime := records[j].PriorityKey()
		if iType != jType {
			return iType < jType
		}
		if iAction != jAction {
			return iAction < jAction
		}
		return iTime < jTime
	})
}

func logMarkError(logger *logrus.Logger, table models.EntityTable, err error) {
	config.LogError(logger, "centralsync", "Replicator.SyncOnce",
		"failed to mark outbox records",
		map[string]string{"table": string(table)}, err)
}
