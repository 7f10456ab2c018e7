package runtime

import (
	"crypto/ed25519"

	"github.com/tom-mesh/tom-protocol/backup"
	"github.com/tom-mesh/tom-protocol/discovery"
	"github.com/tom-mesh/tom-protocol/group"
	"github.com/tom-mesh/tom-protocol/roles"
	"github.com/tom-mesh/tom-protocol/tracker"
	"github.com/tom-mesh/tom-protocol/types"
)

// State is the pure, I/O-free core described by spec §4.2. It exclusively
// owns every subsystem (Tracker, Discovery, Roles, Backup, Group); no
// external code holds a reference into any of them (spec §9 "Ownership of
// subsystems").
type State struct {
	Self       types.NodeId
	secret     ed25519.PrivateKey
	cfg        Config

	Tracker  *tracker.Tracker
	Heartbeat *discovery.HeartbeatTracker
	Subnets  *discovery.EphemeralSubnetManager
	Roles    *roles.Manager
	Backup   *backup.Coordinator
	Groups   *group.Manager

	knownPeers map[types.NodeId]struct{} // peers reachable via a direct connection
	idSeq      uint64
	lastHeartbeatTickMs int64
	lastCleanupTickMs   int64
	lastViabilityTickMs int64
}

// New constructs a RuntimeState for self, signed with secret, using cfg
// for tunables. nowMs seeds every subsystem's "first seen" clock.
func New(self types.NodeId, secret ed25519.PrivateKey, cfg Config, nowMs int64) *State {
	store := backup.NewStore()
	return &State{
		Self:       self,
		secret:     secret,
		cfg:        cfg,
		Tracker:    tracker.New(),
		Heartbeat:  discovery.NewHeartbeatTracker(cfg.StaleThresholdMs, cfg.OfflineThresholdMs, cfg.MaxFutureDriftMs),
		Subnets:    discovery.NewEphemeralSubnetManager(cfg.OfflineThresholdMs),
		Roles:      roles.NewManager(self, nowMs),
		Backup:     backup.NewCoordinator(self, store, cfg.QueryDebounceMs, cfg.QueryTimeoutMs),
		Groups:     group.NewManager(self),
		knownPeers: make(map[types.NodeId]struct{}),
	}
}

// nextID generates a unique, monotonically increasing envelope id scoped
// to this node. Deterministic given the sequence of calls, so tests stay
// seed-reproducible.
func (s *State) nextID() string {
	s.idSeq++
	return s.Self.String() + "-" + itoa(s.idSeq)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// AddPeer marks peer as directly reachable (spec §6.5 add_peer command).
func (s *State) AddPeer(peer types.NodeId) {
	s.knownPeers[peer] = struct{}{}
}

// RemovePeer clears a peer's direct-reachability marker (used on
// disconnect).
func (s *State) RemovePeer(peer types.NodeId) {
	delete(s.knownPeers, peer)
}

func (s *State) isKnownDirect(peer types.NodeId) bool {
	_, ok := s.knownPeers[peer]
	return ok
}
