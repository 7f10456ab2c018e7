package group

import (
	"fmt"

	"github.com/tom-mesh/tom-protocol/types"
)

// Manager owns every group this node participates in. Like every other
// RuntimeState subcomponent it is synchronous and I/O-free.
type Manager struct {
	self   types.NodeId
	groups map[GroupID]*Info
}

// NewManager returns an empty Manager.
func NewManager(self types.NodeId) *Manager {
	return &Manager{self: self, groups: make(map[GroupID]*Info)}
}

// Create establishes a new group with self as creator and hub, and the
// given initial members as RoleMember.
func (m *Manager) Create(members []types.NodeId, nowMs int64) *Info {
	id := NewGroupID()
	info := &Info{
		ID:        id,
		Members:   map[types.NodeId]MemberRole{m.self: RoleOwner},
		Hub:       m.self,
		HubEpoch:  0,
		CreatedAt: nowMs,
	}
	for _, member := range members {
		if member == m.self {
			continue
		}
		info.Members[member] = RoleMember
	}
	m.groups[id] = info
	return info
}

// Join adds self to an already-known group description (typically
// received via GroupInvite/GroupSync).
func (m *Manager) Join(info Info) {
	copyMembers := make(map[types.NodeId]MemberRole, len(info.Members)+1)
	for id, role := range info.Members {
		copyMembers[id] = role
	}
	if _, ok := copyMembers[m.self]; !ok {
		copyMembers[m.self] = RoleMember
	}
	info.Members = copyMembers
	m.groups[info.ID] = &info
}

// Leave drops groupID from the groups this node participates in. If self
// was the hub, the caller is expected to separately trigger ElectHub with
// ElectionHubStepDown.
func (m *Manager) Leave(groupID GroupID, reason LeaveReason) error {
	if _, ok := m.groups[groupID]; !ok {
		return fmt.Errorf("group: unknown group %s", groupID)
	}
	delete(m.groups, groupID)
	return nil
}

// Get returns the group info for groupID.
func (m *Manager) Get(groupID GroupID) (*Info, bool) {
	info, ok := m.groups[groupID]
	return info, ok
}

// IsHub reports whether self is the current hub of groupID.
func (m *Manager) IsHub(groupID GroupID) bool {
	info, ok := m.groups[groupID]
	return ok && info.Hub == m.self
}

// ApplyMigration accepts a hub migration only if result.Epoch is strictly
// greater than the group's currently known epoch (spec §4.4: "members
// accept only if epoch > last_seen_epoch").
func (m *Manager) ApplyMigration(groupID GroupID, result ElectionResult) bool {
	info, ok := m.groups[groupID]
	if !ok {
		return false
	}
	if result.Epoch <= info.HubEpoch {
		return false
	}
	info.Hub = result.NewHub
	info.HubEpoch = result.Epoch
	return true
}

// MemberNodeIDs returns every member of groupID.
func (m *Manager) MemberNodeIDs(groupID GroupID) []types.NodeId {
	info, ok := m.groups[groupID]
	if !ok {
		return nil
	}
	out := make([]types.NodeId, 0, len(info.Members))
	for id := range info.Members {
		out = append(out, id)
	}
	return out
}

// AddMember adds member to groupID with the given role (called by the hub
// on receiving a GroupJoin).
func (m *Manager) AddMember(groupID GroupID, member types.NodeId, role MemberRole) bool {
	info, ok := m.groups[groupID]
	if !ok {
		return false
	}
	info.Members[member] = role
	return true
}

// RemoveMember removes member from groupID (called by the hub on
// receiving a GroupLeave, or after a quorum kick).
func (m *Manager) RemoveMember(groupID GroupID, member types.NodeId) bool {
	info, ok := m.groups[groupID]
	if !ok {
		return false
	}
	delete(info.Members, member)
	return true
}
