package discovery

import (
	"encoding/hex"

	"golang.org/x/sync/singleflight"

	"github.com/tom-mesh/tom-protocol/types"
)

// CoalescingDiscovery wraps a Discovery so concurrent cold-lookups for the
// same NodeId collapse into a single underlying Lookup call (spec §6.2:
// the DHT is "used only at startup and on cold-lookup of an unknown
// peer" — exactly the single-flight burst a fresh connection storm
// produces).
type CoalescingDiscovery struct {
	inner Discovery
	group singleflight.Group
}

// NewCoalescingDiscovery wraps inner with single-flight lookup
// deduplication.
func NewCoalescingDiscovery(inner Discovery) *CoalescingDiscovery {
	return &CoalescingDiscovery{inner: inner}
}

func (c *CoalescingDiscovery) Publish(addr NodeAddr) error {
	return c.inner.Publish(addr)
}

type lookupResult struct {
	addr  *NodeAddr
	found bool
}

func (c *CoalescingDiscovery) Lookup(id types.NodeId) (*NodeAddr, bool, error) {
	key := hex.EncodeToString(id[:])
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		addr, found, err := c.inner.Lookup(id)
		return lookupResult{addr: addr, found: found}, err
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(lookupResult)
	return res.addr, res.found, nil
}
