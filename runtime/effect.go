package runtime

import (
	"github.com/tom-mesh/tom-protocol/envelope"
	"github.com/tom-mesh/tom-protocol/tracker"
	"github.com/tom-mesh/tom-protocol/types"
)

// DeliveredMessage is handed to the application over the messages channel
// once an incoming envelope addressed to self has been verified and
// (if needed) decrypted.
type DeliveredMessage struct {
	EnvelopeID     string
	From           types.NodeId
	Payload        []byte
	WasEncrypted   bool
	SignatureValid bool
	Timestamp      int64
}

// Effect is a declarative I/O intent produced by a pure handler. Only the
// executor performs the corresponding I/O (spec §4.6, §9).
type Effect interface {
	isEffect()
}

// SendEnvelope sends env to env.NextHop().
type SendEnvelope struct {
	Envelope envelope.Envelope
}

// SendEnvelopeTo sends env to an explicit target, bypassing NextHop().
type SendEnvelopeTo struct {
	Target   types.NodeId
	Envelope envelope.Envelope
}

// DeliverMessageEffect enqueues msg onto the application's messages
// channel (non-blocking; dropped if full).
type DeliverMessageEffect struct {
	Message DeliveredMessage
}

// StatusChangeEffect enqueues a StatusChange onto the status channel.
type StatusChangeEffect struct {
	Change tracker.StatusChange
}

// EmitEffect enqueues a ProtocolEvent onto the events channel.
type EmitEffect struct {
	Event ProtocolEvent
}

// SendWithBackupFallback attempts to send Envelope; on success it
// recursively executes OnSuccess, on failure OnFailure (spec §4.6).
type SendWithBackupFallback struct {
	Envelope  envelope.Envelope
	OnSuccess []Effect
	OnFailure []Effect
}

func (SendEnvelope) isEffect()           {}
func (SendEnvelopeTo) isEffect()         {}
func (DeliverMessageEffect) isEffect()   {}
func (StatusChangeEffect) isEffect()     {}
func (EmitEffect) isEffect()             {}
func (SendWithBackupFallback) isEffect() {}
