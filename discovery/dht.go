package discovery

import (
	"crypto/sha1"
	"fmt"
	"sync"

	"github.com/tom-mesh/tom-protocol/types"
)

// DhtKey derives the 20-byte DHT key for a NodeId, matching the original
// implementation's SHA1(node_id_str) derivation (spec §6.2).
func DhtKey(id types.NodeId) [20]byte {
	return sha1.Sum([]byte(id.String()))
}

// NodeAddr is the address record published and looked up via Discovery.
type NodeAddr struct {
	NodeID    types.NodeId
	Addresses []string
}

// Discovery is the DHT collaborator boundary (spec §6.2). The core never
// assumes more than this; a production implementation would back it with
// a Kademlia-style DHT using BEP-0044 mutable signed records. This
// in-memory reference implementation is a direct analogue of the
// original's simplified PoC and is suitable for tests and single-process
// demos, not production rendezvous.
type Discovery interface {
	Publish(addr NodeAddr) error
	Lookup(id types.NodeId) (*NodeAddr, bool, error)
}

// MemoryDiscovery is an in-memory Discovery, keyed by the same SHA1
// derivation the production DHT would use.
type MemoryDiscovery struct {
	mu      sync.RWMutex
	records map[[20]byte]NodeAddr
}

// NewMemoryDiscovery returns an empty in-memory Discovery.
func NewMemoryDiscovery() *MemoryDiscovery {
	return &MemoryDiscovery{records: make(map[[20]byte]NodeAddr)}
}

func (d *MemoryDiscovery) Publish(addr NodeAddr) error {
	if addr.NodeID.IsZero() {
		return fmt.Errorf("discovery: cannot publish zero node id")
	}
	key := DhtKey(addr.NodeID)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[key] = addr
	return nil
}

func (d *MemoryDiscovery) Lookup(id types.NodeId) (*NodeAddr, bool, error) {
	key := DhtKey(id)
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.records[key]
	if !ok {
		return nil, false, nil
	}
	out := rec
	return &out, true, nil
}
