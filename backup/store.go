package backup

import (
	"github.com/tom-mesh/tom-protocol/types"
)

// BackupAction is a declarative instruction emitted by Store mutations for
// the coordinator to act on (mirrors the original's backup::BackupAction).
type BackupAction int

const (
	ActionNone BackupAction = iota
	ActionReplicate
	ActionFinalizeDeletion
)

// Store is the in-memory envelope_id -> BackupEntry map plus a secondary
// recipient -> set<envelope_id> index (spec §4.3). It holds no goroutines;
// all expiry/maintenance is driven by explicit calls from the runtime's
// tick handler so the whole subsystem stays I/O-free and deterministic.
type Store struct {
	entries     map[string]*BackupEntry
	byRecipient map[types.NodeId]map[string]struct{}
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		entries:     make(map[string]*BackupEntry),
		byRecipient: make(map[types.NodeId]map[string]struct{}),
	}
}

// Insert adds entry under its envelope's id, indexed by recipient
// (env.To). Returns ActionReplicate if the entry does not yet have enough
// replicas and replication should be triggered.
func (s *Store) Insert(entry *BackupEntry) BackupAction {
	id := entry.Envelope.ID
	s.entries[id] = entry

	recipient := entry.Envelope.To
	set, ok := s.byRecipient[recipient]
	if !ok {
		set = make(map[string]struct{})
		s.byRecipient[recipient] = set
	}
	set[id] = struct{}{}

	if len(entry.Replicas) < ReplicationThreshold {
		return ActionReplicate
	}
	return ActionNone
}

// GetByRecipient returns every backup entry stored for recipient.
func (s *Store) GetByRecipient(recipient types.NodeId) []*BackupEntry {
	ids, ok := s.byRecipient[recipient]
	if !ok {
		return nil
	}
	out := make([]*BackupEntry, 0, len(ids))
	for id := range ids {
		if e, ok := s.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Get returns the entry for envelopeID, if present.
func (s *Store) Get(envelopeID string) (*BackupEntry, bool) {
	e, ok := s.entries[envelopeID]
	return e, ok
}

// MarkDelivered marks envelopeID's entry as delivered. Returns the entry
// and whether it was found.
func (s *Store) MarkDelivered(envelopeID string) (*BackupEntry, bool) {
	e, ok := s.entries[envelopeID]
	if !ok {
		return nil, false
	}
	e.Delivered = true
	return e, true
}

// AddReplica records that holder now has a copy of envelopeID. A node
// never stores its own originated backup as one of its own replicas
// (spec §4.3 last sentence): when holder is the originator, the entry is
// returned unchanged.
func (s *Store) AddReplica(envelopeID string, holder types.NodeId) (*BackupEntry, bool) {
	e, ok := s.entries[envelopeID]
	if !ok {
		return nil, false
	}
	if holder == e.Envelope.From {
		return e, true
	}
	e.Replicas[holder] = struct{}{}
	return e, true
}

// AddDeletionAck records a deletion acknowledgment from holder. Returns
// ActionFinalizeDeletion once the entry is ready for removal.
func (s *Store) AddDeletionAck(envelopeID string, holder types.NodeId) BackupAction {
	e, ok := s.entries[envelopeID]
	if !ok {
		return ActionNone
	}
	e.DeletionAcks[holder] = struct{}{}
	if e.ReadyForDeletion() {
		return ActionFinalizeDeletion
	}
	return ActionNone
}

// Remove deletes envelopeID from the store and its recipient index.
func (s *Store) Remove(envelopeID string) {
	e, ok := s.entries[envelopeID]
	if !ok {
		return
	}
	delete(s.entries, envelopeID)
	if set, ok := s.byRecipient[e.Envelope.To]; ok {
		delete(set, envelopeID)
		if len(set) == 0 {
			delete(s.byRecipient, e.Envelope.To)
		}
	}
}

// PurgeExpired removes every entry whose hard TTL ceiling has passed as of
// nowMs, or that is ready for deletion, returning the ids removed.
func (s *Store) PurgeExpired(nowMs int64) []string {
	var removed []string
	for id, e := range s.entries {
		if e.Expired(nowMs) || e.ReadyForDeletion() {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		s.Remove(id)
	}
	return removed
}

// Len reports how many entries the store currently holds.
func (s *Store) Len() int {
	return len(s.entries)
}
