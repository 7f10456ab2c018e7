package runtime

import (
	"github.com/tom-mesh/tom-protocol/envelope"
	"github.com/tom-mesh/tom-protocol/errs"
	"github.com/tom-mesh/tom-protocol/roles"
	"github.com/tom-mesh/tom-protocol/types"
)

// SendRaw signs data as a Chat envelope addressed directly to recipient,
// bypassing encryption, liveness-based routing, and backup fallback
// (spec §6.5 send_raw(to, bytes) — a low-level escape hatch for callers
// that want to address a specific next hop themselves).
func (s *State) SendRaw(recipient types.NodeId, data []byte, nowMs int64) ([]Effect, error) {
	if len(data) > s.cfg.MaxMessageSize {
		err := errs.MessageTooLarge(len(data), s.cfg.MaxMessageSize)
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}, err
	}
	env, err := envelope.NewBuilder(s.nextID(), s.Self, recipient, types.MessageTypeChat, data, nowMs).
		Sign(s.secret)
	if err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}, err
	}
	return []Effect{SendEnvelopeTo{Target: recipient, Envelope: env}}, nil
}

// GetRoleMetrics returns the observable role/contribution snapshot for
// peer (spec §6.5 get_role_metrics(id)).
func (s *State) GetRoleMetrics(peer types.NodeId, nowMs int64) (roles.RoleMetrics, bool) {
	return s.Roles.Metrics(peer, nowMs)
}

// GetAllRoleScores returns a snapshot for every peer this node has
// observed (spec §6.5 get_all_role_scores()).
func (s *State) GetAllRoleScores(nowMs int64) []roles.RoleMetrics {
	return s.Roles.AllMetrics(nowMs)
}

// BuildSelfAnnounce signs this node's own PeerAnnounce addressed to the
// zero NodeId (no recipient known yet), for the add_peer_addr bootstrap
// path: a freshly dialed connection has no peer identity on either side
// until one party speaks first (spec §6.5 add_peer_addr(addr) — the
// node-wiring layer sends this as the first frame over a newly dialed
// connection so the far side can learn who just connected).
func (s *State) BuildSelfAnnounce(nowMs int64) (envelope.Envelope, error) {
	wire, err := s.peerAnnouncePayload(nowMs)
	if err != nil {
		return envelope.Envelope{}, err
	}
	return envelope.NewBuilder(s.nextID(), s.Self, types.NodeId{}, types.MessageTypePeerAnnounce, wire, nowMs).
		TTL(0).
		Sign(s.secret)
}
