package runtime

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tom-mesh/tom-protocol/discovery"
	"github.com/tom-mesh/tom-protocol/envelope"
	"github.com/tom-mesh/tom-protocol/errs"
	"github.com/tom-mesh/tom-protocol/group"
	"github.com/tom-mesh/tom-protocol/roles"
	"github.com/tom-mesh/tom-protocol/types"
)

// CreateGroup establishes a new group with self as owner and hub, and
// invites the given members (spec §4.4, app command create_group(id,
// members)).
func (s *State) CreateGroup(members []types.NodeId, nowMs int64) (group.GroupID, []Effect, error) {
	if len(members)+1 > s.cfg.MaxGroupMembers {
		err := errs.InvalidEnvelope("group: membership would exceed configured max_group_members")
		return group.GroupID{}, []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}, err
	}
	info := s.Groups.Create(members, nowMs)

	var effects []Effect
	for _, member := range members {
		if member == s.Self {
			continue
		}
		env, err := s.buildGroupEnvelope(member, types.MessageTypeGroupInvite, group.Invite{
			GroupID: info.ID,
			Inviter: s.Self,
			Hub:     s.Self,
		}, nowMs)
		if err != nil {
			effects = append(effects, EmitEffect{Event: ErrorEvent(err.Error())})
			continue
		}
		effects = append(effects, SendEnvelope{Envelope: env})
	}
	return info.ID, effects, nil
}

// JoinGroup accepts a standing invitation to groupID (hosted at hub),
// registering a provisional local membership and requesting the full
// roster from the hub (spec app command join_group(id)).
func (s *State) JoinGroup(groupID group.GroupID, hub types.NodeId, nowMs int64) ([]Effect, error) {
	s.Groups.Join(group.Info{
		ID:        groupID,
		Members:   map[types.NodeId]group.MemberRole{s.Self: group.RoleMember},
		Hub:       hub,
		HubEpoch:  0,
		CreatedAt: nowMs,
	})

	env, err := s.buildGroupEnvelope(hub, types.MessageTypeGroupJoin, group.Payload{GroupID: groupID}, nowMs)
	if err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}, err
	}
	return []Effect{SendEnvelope{Envelope: env}}, nil
}

// SendGroupMessage builds a GroupMessage envelope for body: if self is the
// hub, fan it out directly to every other member; otherwise address it to
// the hub, which will fan it out on receipt (spec §4.4).
func (s *State) SendGroupMessage(groupID group.GroupID, body []byte, nowMs int64) ([]Effect, error) {
	info, ok := s.Groups.Get(groupID)
	if !ok {
		err := errs.InvalidEnvelope("unknown group")
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}, err
	}

	payload, err := msgpack.Marshal(&group.Payload{GroupID: groupID, Body: body})
	if err != nil {
		wrapped := errs.Serialization(err)
		return []Effect{EmitEffect{Event: ErrorEvent(wrapped.Error())}}, wrapped
	}

	if s.Groups.IsHub(groupID) {
		return s.fanOutGroupMessage(*info, s.Self, payload, nowMs), nil
	}

	env, err := envelope.NewBuilder(s.nextID(), s.Self, info.Hub, types.MessageTypeGroupMessage, payload, nowMs).
		Sign(s.secret)
	if err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}, err
	}
	return []Effect{SendEnvelope{Envelope: env}}, nil
}

// LeaveGroup removes self from groupID. If self was the hub, it runs an
// immediate election among the remaining members and broadcasts the
// resulting GroupHubMigration (spec §4.4 ElectionHubStepDown).
func (s *State) LeaveGroup(groupID group.GroupID, nowMs int64) ([]Effect, error) {
	info, ok := s.Groups.Get(groupID)
	if !ok {
		err := errs.InvalidEnvelope("unknown group")
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}, err
	}
	wasHub := info.Hub == s.Self
	remaining := make(map[types.NodeId]group.MemberRole, len(info.Members))
	for id, role := range info.Members {
		if id == s.Self {
			continue
		}
		remaining[id] = role
	}
	oldEpoch := info.HubEpoch

	if err := s.Groups.Leave(groupID, group.LeaveVoluntary); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent(err.Error())}}, err
	}

	var effects []Effect
	for peer := range remaining {
		env, err := s.buildGroupEnvelope(peer, types.MessageTypeGroupLeave, group.Payload{GroupID: groupID}, nowMs)
		if err != nil {
			effects = append(effects, EmitEffect{Event: ErrorEvent(err.Error())})
			continue
		}
		effects = append(effects, SendEnvelope{Envelope: env})
	}

	if !wasHub || len(remaining) == 0 {
		return effects, nil
	}

	isLive := func(id types.NodeId) bool { return s.Heartbeat.Liveness(id, nowMs) != discovery.Offline }
	isRelay := func(id types.NodeId) bool { return s.Roles.Role(id) == roles.RoleRelay }
	result, ok := group.ElectHub(remaining, oldEpoch, group.ElectionHubStepDown, isLive, isRelay, s.Roles.Score)
	if !ok {
		return effects, nil
	}
	effects = append(effects, s.broadcastHubMigration(groupID, remaining, result, nowMs)...)
	return effects, nil
}

// handleGroupInvite is reached from deliverLocally for an envelope whose
// msg_type is GroupInvite: it registers provisional membership and
// requests the full roster from the hub, mirroring JoinGroup.
func (s *State) handleGroupInvite(payload []byte, nowMs int64) []Effect {
	var invite group.Invite
	if err := msgpack.Unmarshal(payload, &invite); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent("group: malformed invite: " + err.Error())}}
	}
	effects, _ := s.JoinGroup(invite.GroupID, invite.Hub, nowMs)
	return effects
}

// handleGroupJoin is reached on the hub for an incoming GroupJoin: it adds
// the requester as a member, replies with a full GroupSync, and notifies
// the rest of the group.
func (s *State) handleGroupJoin(payload []byte, from types.NodeId, nowMs int64) []Effect {
	var req group.Payload
	if err := msgpack.Unmarshal(payload, &req); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent("group: malformed join: " + err.Error())}}
	}
	info, ok := s.Groups.Get(req.GroupID)
	if !ok {
		return []Effect{EmitEffect{Event: ErrorEvent("group: join for unknown group")}}
	}
	if len(info.Members)+1 > s.cfg.MaxGroupMembers {
		return []Effect{EmitEffect{Event: ErrorEvent("group: join rejected, at max_group_members")}}
	}
	if !s.Groups.AddMember(req.GroupID, from, group.RoleMember) {
		return []Effect{EmitEffect{Event: ErrorEvent("group: join for unknown group")}}
	}

	var effects []Effect
	syncEnv, err := s.buildGroupEnvelope(from, types.MessageTypeGroupSync, *info, nowMs)
	if err == nil {
		effects = append(effects, SendEnvelope{Envelope: syncEnv})
	}
	for member := range info.Members {
		if member == s.Self || member == from {
			continue
		}
		env, err := s.buildGroupEnvelope(member, types.MessageTypeGroupMemberJoined, group.Member{NodeID: from, Role: group.RoleMember}, nowMs)
		if err != nil {
			continue
		}
		effects = append(effects, SendEnvelope{Envelope: env})
	}
	return effects
}

// handleGroupSync is reached on a member for an incoming GroupSync sent by
// the hub in response to a join: it replaces the local, provisional group
// copy with the authoritative roster.
func (s *State) handleGroupSync(payload []byte) []Effect {
	var info group.Info
	if err := msgpack.Unmarshal(payload, &info); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent("group: malformed sync: " + err.Error())}}
	}
	s.Groups.Join(info)
	return nil
}

// handleGroupMessage is reached on the hub (fans out to every other
// member, each copy from the hub with the author carried in the payload's
// Sender) or, for a non-hub member receiving a
// hub-addressed group message meant for self, delivers it directly.
func (s *State) handleGroupMessage(payload []byte, from types.NodeId, nowMs int64) []Effect {
	var msg group.Payload
	if err := msgpack.Unmarshal(payload, &msg); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent("group: malformed message: " + err.Error())}}
	}

	if s.Groups.IsHub(msg.GroupID) {
		info, ok := s.Groups.Get(msg.GroupID)
		if !ok {
			return nil
		}
		return s.fanOutGroupMessage(*info, from, payload, nowMs)
	}

	// A hub-fanned copy is signed (and thus From-addressed) by the hub, not
	// the original author, so msg.Sender — carried in the payload — is the
	// real author whenever it's set. On the direct member-to-hub leg there
	// is no fan-out yet and Sender is zero, so from (the verified signer)
	// is already correct.
	deliveredFrom := from
	if !msg.Sender.IsZero() {
		deliveredFrom = msg.Sender
	}

	return []Effect{DeliverMessageEffect{Message: DeliveredMessage{
		EnvelopeID:     s.nextID(),
		From:           deliveredFrom,
		Payload:        msg.Body,
		WasEncrypted:   false,
		SignatureValid: true,
		Timestamp:      nowMs,
	}}}
}

// handleGroupLeave is reached on the hub for an incoming GroupLeave: it
// drops the member from the roster.
func (s *State) handleGroupLeave(payload []byte, from types.NodeId) []Effect {
	var req group.Payload
	if err := msgpack.Unmarshal(payload, &req); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent("group: malformed leave: " + err.Error())}}
	}
	s.Groups.RemoveMember(req.GroupID, from)
	return nil
}

// handleGroupHubMigration is reached on a member for an incoming
// GroupHubMigration broadcast by a newly elected hub: it is applied only
// if the epoch is strictly newer than the last seen one (spec §4.4).
func (s *State) handleGroupHubMigration(payload []byte) []Effect {
	var migration struct {
		GroupID group.GroupID    `msgpack:"group_id"`
		Result  group.ElectionResult `msgpack:"result"`
	}
	if err := msgpack.Unmarshal(payload, &migration); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent("group: malformed hub migration: " + err.Error())}}
	}
	if !s.Groups.ApplyMigration(migration.GroupID, migration.Result) {
		return nil
	}
	groupIDStr := migration.GroupID.String()
	return []Effect{EmitEffect{Event: ProtocolEvent{HubMigrated: &HubMigratedEvent{
		GroupID: groupIDStr,
		NewHub:  migration.Result.NewHub,
		Epoch:   migration.Result.Epoch,
	}}}}
}

// fanOutGroupMessage builds and signs, under the hub's own key, one
// envelope per other member of info (spec §4.4 "preserving from...but
// rewriting to per member"). The fanned envelopes are addressed From the
// hub itself, since the hub is what actually signs them — a recipient's
// VerifySignature recomputes the sender's pubkey from From, so a
// hub-signed envelope claiming From=originalFrom would always fail
// verification and be dropped. originalFrom instead travels inside the
// payload (group.Payload.Sender) so recipients can still attribute the
// message to its real author.
func (s *State) fanOutGroupMessage(info group.Info, originalFrom types.NodeId, payload []byte, nowMs int64) []Effect {
	var msg group.Payload
	if err := msgpack.Unmarshal(payload, &msg); err != nil {
		return []Effect{EmitEffect{Event: ErrorEvent("group: malformed message: " + err.Error())}}
	}
	msg.Sender = originalFrom
	enriched, err := msgpack.Marshal(&msg)
	if err != nil {
		wrapped := errs.Serialization(err)
		return []Effect{EmitEffect{Event: ErrorEvent(wrapped.Error())}}
	}

	envs := group.FanOut(info, s.Self, originalFrom, types.MessageTypeGroupMessage, enriched, nowMs, func(types.NodeId) string {
		return s.nextID()
	})
	effects := make([]Effect, 0, len(envs))
	for _, env := range envs {
		if err := env.Sign(s.secret); err != nil {
			effects = append(effects, EmitEffect{Event: ErrorEvent(err.Error())})
			continue
		}
		effects = append(effects, SendEnvelope{Envelope: env})
	}
	return effects
}

// broadcastHubMigration signs a GroupHubMigration announcement for result
// and sends it to every remaining member.
func (s *State) broadcastHubMigration(groupID group.GroupID, members map[types.NodeId]group.MemberRole, result group.ElectionResult, nowMs int64) []Effect {
	body := struct {
		GroupID group.GroupID    `msgpack:"group_id"`
		Result  group.ElectionResult `msgpack:"result"`
	}{GroupID: groupID, Result: result}

	var effects []Effect
	for peer := range members {
		env, err := s.buildGroupEnvelope(peer, types.MessageTypeGroupHubMigration, body, nowMs)
		if err != nil {
			effects = append(effects, EmitEffect{Event: ErrorEvent(err.Error())})
			continue
		}
		effects = append(effects, SendEnvelope{Envelope: env})
	}
	return effects
}

// buildGroupEnvelope msgpack-encodes body as the payload of a signed,
// unencrypted envelope addressed to target. Group control traffic is
// signed like any other envelope but never encrypted: membership and
// routing metadata are not secret payload content.
func (s *State) buildGroupEnvelope(target types.NodeId, msgType types.MessageType, body interface{}, nowMs int64) (envelope.Envelope, error) {
	payload, err := msgpack.Marshal(body)
	if err != nil {
		return envelope.Envelope{}, errs.Serialization(err)
	}
	return envelope.NewBuilder(s.nextID(), s.Self, target, msgType, payload, nowMs).Sign(s.secret)
}
