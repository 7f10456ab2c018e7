package types

// MessageType determines how the runtime routes and handles an envelope.
//
// The distilled spec names categories (Chat, Ack, Group*, Backup*, …); this
// enumerates the full set from the original implementation so group
// lifecycle and backup replication sub-messages are addressable on the
// wire.
type MessageType uint8

const (
	MessageTypeChat MessageType = iota
	MessageTypeAck
	MessageTypeReadReceipt
	MessageTypeHeartbeat

	// Group lifecycle
	MessageTypeGroupCreate
	MessageTypeGroupCreated
	MessageTypeGroupInvite
	MessageTypeGroupJoin
	MessageTypeGroupSync
	MessageTypeGroupMessage
	MessageTypeGroupLeave

	// Group broadcasts (hub -> members)
	MessageTypeGroupMemberJoined
	MessageTypeGroupMemberLeft
	MessageTypeGroupHubMigration
	MessageTypeGroupDeliveryAck
	MessageTypeGroupHubHeartbeat

	// Backup ("virus backup")
	MessageTypeBackupStore
	MessageTypeBackupDeliver
	MessageTypeBackupReplicate
	MessageTypeBackupReplicateAck
	MessageTypeBackupQuery
	MessageTypeBackupQueryResponse
	MessageTypeBackupConfirmDelivery

	// Network
	MessageTypePeerAnnounce
	MessageTypeRoleAnnounce
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeChat:
		return "Chat"
	case MessageTypeAck:
		return "Ack"
	case MessageTypeReadReceipt:
		return "ReadReceipt"
	case MessageTypeHeartbeat:
		return "Heartbeat"
	case MessageTypeGroupCreate:
		return "GroupCreate"
	case MessageTypeGroupCreated:
		return "GroupCreated"
	case MessageTypeGroupInvite:
		return "GroupInvite"
	case MessageTypeGroupJoin:
		return "GroupJoin"
	case MessageTypeGroupSync:
		return "GroupSync"
	case MessageTypeGroupMessage:
		return "GroupMessage"
	case MessageTypeGroupLeave:
		return "GroupLeave"
	case MessageTypeGroupMemberJoined:
		return "GroupMemberJoined"
	case MessageTypeGroupMemberLeft:
		return "GroupMemberLeft"
	case MessageTypeGroupHubMigration:
		return "GroupHubMigration"
	case MessageTypeGroupDeliveryAck:
		return "GroupDeliveryAck"
	case MessageTypeGroupHubHeartbeat:
		return "GroupHubHeartbeat"
	case MessageTypeBackupStore:
		return "BackupStore"
	case MessageTypeBackupDeliver:
		return "BackupDeliver"
	case MessageTypeBackupReplicate:
		return "BackupReplicate"
	case MessageTypeBackupReplicateAck:
		return "BackupReplicateAck"
	case MessageTypeBackupQuery:
		return "BackupQuery"
	case MessageTypeBackupQueryResponse:
		return "BackupQueryResponse"
	case MessageTypeBackupConfirmDelivery:
		return "BackupConfirmDelivery"
	case MessageTypePeerAnnounce:
		return "PeerAnnounce"
	case MessageTypeRoleAnnounce:
		return "RoleAnnounce"
	default:
		return "Unknown"
	}
}

// MessageStatus is the delivery-status ladder a message climbs:
// Pending -> Sent -> Relayed -> Delivered -> Read. Values are ordered so
// callers can compare statuses with plain integer comparison.
type MessageStatus uint8

const (
	MessageStatusPending MessageStatus = iota
	MessageStatusSent
	MessageStatusRelayed
	MessageStatusDelivered
	MessageStatusRead
)

func (s MessageStatus) String() string {
	switch s {
	case MessageStatusPending:
		return "Pending"
	case MessageStatusSent:
		return "Sent"
	case MessageStatusRelayed:
		return "Relayed"
	case MessageStatusDelivered:
		return "Delivered"
	case MessageStatusRead:
		return "Read"
	default:
		return "Unknown"
	}
}

// Normative wire-compatibility constants (spec.md §6.6, first eight).
// These are never configurable — changing them would desync a deployment.
const (
	// MaxTTL is the maximum relay depth (hops) for an envelope.
	MaxTTL uint32 = 4
	// DefaultTTL is the TTL assigned to newly built envelopes.
	DefaultTTL uint32 = 4

	MaxReplicas          = 3
	ReplicationThreshold = 2
	DeletionThreshold    = 2

	DefaultTTLMs int64 = 86_400_000
	MaxTTLMs     int64 = 86_400_000
)

// TomALPN is the ALPN identifier the transport layer advertises. The QUIC
// transport itself is out of scope for this module; the constant is
// defined here, and no executor or transport in this module checks ALPNs.
const TomALPN = "tom-protocol/transport/0"
