package group

import (
	"github.com/tom-mesh/tom-protocol/envelope"
	"github.com/tom-mesh/tom-protocol/types"
)

// FanOut builds one outgoing envelope per member of info other than
// exclude (the original sender, who doesn't need an echo of their own
// message) and signer (the hub itself), rewriting To per member (spec §4.4). Envelopes are addressed
// From signer — the hub, which will sign them under its own key — not
// from the original author: a recipient's VerifySignature reconstructs
// the sender's pubkey from From, so From must name whoever actually signs
// the envelope. The original author, when different from signer, has to
// travel inside payload instead (see group.Payload.Sender). idFor
// supplies a unique envelope id per recipient (the runtime injects id
// generation so this stays pure).
func FanOut(info Info, signer, exclude types.NodeId, msgType types.MessageType, payload []byte, nowMs int64, idFor func(types.NodeId) string) []envelope.Envelope {
	var out []envelope.Envelope
	for member := range info.Members {
		if member == exclude || member == signer {
			continue
		}
		env := envelope.NewBuilder(idFor(member), signer, member, msgType, payload, nowMs).Build()
		out = append(out, env)
	}
	return out
}
