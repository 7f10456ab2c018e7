package backup

import (
	"sort"

	"github.com/tom-mesh/tom-protocol/envelope"
	"github.com/tom-mesh/tom-protocol/types"
)

// CoordinatorEvent groups the kinds of outcome the backup lifecycle
// produces. No Coordinator method returns it; each method returns its own
// plain result instead.
type CoordinatorEvent struct {
	BackupStored      *string // envelope id
	BackupQuery       *types.NodeId
	ReplicateTo       []types.NodeId // candidates chosen for an envelope id
	DeliverNow        []envelope.Envelope
	DeletionFinalized *string
}

// Coordinator drives the query/store/deliver/delete lifecycle on top of a
// Store (spec §4.3). Like Store, it is pure and I/O-free: it returns
// plain results (ids, envelopes, flags) for the runtime/executor to act
// on, rather than performing sends itself.
type Coordinator struct {
	store *Store
	self  types.NodeId

	lastQueryMs      map[types.NodeId]int64
	queryDebounceMs  int64
	queryTimeoutMs   int64
}

// NewCoordinator creates a Coordinator for self backed by store.
func NewCoordinator(self types.NodeId, store *Store, queryDebounceMs, queryTimeoutMs int64) *Coordinator {
	return &Coordinator{
		store:           store,
		self:            self,
		lastQueryMs:     make(map[types.NodeId]int64),
		queryDebounceMs: queryDebounceMs,
		queryTimeoutMs:  queryTimeoutMs,
	}
}

// MaybeQuery returns recipient as the target of a BackupQuery, or nil if a
// query was already issued within the debounce window (spec §4.3 step 1).
func (c *Coordinator) MaybeQuery(recipient types.NodeId, nowMs int64) *types.NodeId {
	if last, ok := c.lastQueryMs[recipient]; ok && nowMs-last < c.queryDebounceMs {
		return nil
	}
	c.lastQueryMs[recipient] = nowMs
	return &recipient
}

// StoreAndSelectReplicas inserts env as a new backup entry (triggered by a
// send failure) and selects up to MaxReplicas viable candidates other than
// the originator, ranked by UptimeHours*BandwidthBudget with the lower
// NodeId first on ties (spec §4.3 step 2). It does not check
// ReplicationThreshold; ConfirmReplica reports when that is reached.
func (c *Coordinator) StoreAndSelectReplicas(env envelope.Envelope, nowMs int64, ttlMs int64, candidates map[types.NodeId]HostFactors) []types.NodeId {
	entry := NewBackupEntry(env, nowMs, ttlMs)
	c.store.Insert(entry)

	entrySize := int64(len(env.Payload))
	type scored struct {
		id    types.NodeId
		score float64
	}
	var viable []scored
	for id, hf := range candidates {
		if id == env.From {
			continue // never store our own originated backup as one of our own replicas
		}
		if !hf.Viable(entrySize) {
			continue
		}
		viable = append(viable, scored{id: id, score: hf.UptimeHours*hf.BandwidthBudget})
	}
	sort.Slice(viable, func(i, j int) bool {
		if viable[i].score != viable[j].score {
			return viable[i].score > viable[j].score
		}
		return lessNodeID(viable[i].id, viable[j].id)
	})

	var chosen []types.NodeId
	for _, v := range viable {
		if len(chosen) >= MaxReplicas {
			break
		}
		chosen = append(chosen, v.id)
	}
	return chosen
}

func lessNodeID(a, b types.NodeId) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// StoreReplica inserts env into this node's store on behalf of another
// node's BackupStore request (this node is acting as a replica holder,
// not the originator, so it never re-selects further replicas for it).
func (c *Coordinator) StoreReplica(env envelope.Envelope, ttlMs int64, nowMs int64) {
	c.store.Insert(NewBackupEntry(env, nowMs, ttlMs))
}

// ConfirmReplica records that holder acknowledged holding envelopeID.
// Returns true once ReplicationThreshold replicas are confirmed (callers
// may stop sending further BackupStore to remaining candidates).
func (c *Coordinator) ConfirmReplica(envelopeID string, holder types.NodeId) bool {
	entry, ok := c.store.AddReplica(envelopeID, holder)
	if !ok {
		return false
	}
	return len(entry.Replicas) >= ReplicationThreshold
}

// DeliverBuffered returns every envelope buffered for recipient, for
// BackupDeliver once a heartbeat shows it is back online (spec §4.3 step
// 3). It does not mark them delivered; the caller does that after a send
// succeeds via ConfirmDelivery.
func (c *Coordinator) DeliverBuffered(recipient types.NodeId) []envelope.Envelope {
	entries := c.store.GetByRecipient(recipient)
	out := make([]envelope.Envelope, 0, len(entries))
	for _, e := range entries {
		if !e.Delivered {
			out = append(out, e.Envelope)
		}
	}
	return out
}

// ConfirmDelivery marks envelopeID delivered, called when the recipient
// sends BackupConfirmDelivery (spec §4.3 step 3).
func (c *Coordinator) ConfirmDelivery(envelopeID string) {
	c.store.MarkDelivered(envelopeID)
}

// AckDeletion records a deletion ack from holder and reports whether the
// entry should now be finalized/removed (spec §4.3 step 4).
func (c *Coordinator) AckDeletion(envelopeID string, holder types.NodeId) bool {
	action := c.store.AddDeletionAck(envelopeID, holder)
	if action == ActionFinalizeDeletion {
		c.store.Remove(envelopeID)
		return true
	}
	return false
}

// Cleanup purges expired/finalized entries; call on every
// CleanupIntervalMs tick (spec §4.3 "Periodic maintenance").
func (c *Coordinator) Cleanup(nowMs int64) []string {
	return c.store.PurgeExpired(nowMs)
}

// RecomputeViability updates ViableTargets for every stored entry from the
// current candidate set; call on every ViabilityCheckIntervalMs tick so
// re-replication can rebalance as nodes churn (spec §4.3).
func (c *Coordinator) RecomputeViability(candidates map[types.NodeId]HostFactors, entrySizeOf func(string) int64) {
	for id, entry := range c.storeEntries() {
		entry.ViableTargets = make(map[types.NodeId]struct{})
		size := entrySizeOf(id)
		for cid, hf := range candidates {
			if cid == entry.Envelope.From {
				continue
			}
			if hf.Viable(size) {
				entry.ViableTargets[cid] = struct{}{}
			}
		}
	}
}

func (c *Coordinator) storeEntries() map[string]*BackupEntry {
	// Store keeps its entries map unexported; Coordinator lives in the
	// same package, so it can reach in. Kept as a method for readability
	// at call sites.
	return c.store.entries
}

// Len reports how many backup entries are currently held.
func (c *Coordinator) Len() int {
	return c.store.Len()
}
