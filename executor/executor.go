// SPDX-License-Identifier: LGPL-3.0-or-later

package executor

import (
	"github.com/tom-mesh/tom-protocol/envelope"
	"github.com/tom-mesh/tom-protocol/runtime"
	"github.com/tom-mesh/tom-protocol/tracker"
	"github.com/tom-mesh/tom-protocol/types"
)

// ChannelCapacity is the buffer size for every application-facing
// channel. Deliveries past this capacity are dropped rather than
// blocking the executor (spec §4.6/§9: "non-blocking delivery").
const ChannelCapacity = 4096

// Channels bundles the three application-facing outputs Execute writes
// to. NewChannels allocates all three at ChannelCapacity.
type Channels struct {
	Messages chan runtime.DeliveredMessage
	Statuses chan tracker.StatusChange
	Events   chan runtime.ProtocolEvent
}

// NewChannels allocates a Channels bundle at ChannelCapacity.
func NewChannels() *Channels {
	return &Channels{
		Messages: make(chan runtime.DeliveredMessage, ChannelCapacity),
		Statuses: make(chan tracker.StatusChange, ChannelCapacity),
		Events:   make(chan runtime.ProtocolEvent, ChannelCapacity),
	}
}

// Execute performs every effect in effects against t, writing to ch as it
// goes. It is the only place in the module that touches a socket or
// sends on an outbound channel (spec §4.6 "the single I/O component");
// channel sends never block and drop the item when the channel is full.
func Execute(effects []runtime.Effect, t Transport, ch *Channels) {
	for _, eff := range effects {
		execOne(eff, t, ch)
	}
}

func execOne(eff runtime.Effect, t Transport, ch *Channels) {
	switch e := eff.(type) {
	case runtime.SendEnvelope:
		sendEnvelope(e.Envelope, t, ch)

	case runtime.SendEnvelopeTo:
		send(e.Target, e.Envelope, t, ch)

	case runtime.DeliverMessageEffect:
		trySendMessage(ch, e.Message)

	case runtime.StatusChangeEffect:
		trySendStatus(ch, e.Change)

	case runtime.EmitEffect:
		trySendEvent(ch, e.Event)

	case runtime.SendWithBackupFallback:
		if err := send(e.Envelope.NextHop(), e.Envelope, t, ch); err != nil {
			Execute(e.OnFailure, t, ch)
		} else {
			Execute(e.OnSuccess, t, ch)
		}
	}
}

func sendEnvelope(env envelope.Envelope, t Transport, ch *Channels) {
	_ = send(env.NextHop(), env, t, ch)
}

// send serializes env and hands it to t, emitting a Transport error event
// on failure. It returns the underlying send error so
// SendWithBackupFallback can branch on it.
func send(target types.NodeId, env envelope.Envelope, t Transport, ch *Channels) error {
	wire, err := env.ToBytes()
	if err != nil {
		trySendEvent(ch, runtime.ErrorEvent(err.Error()))
		return err
	}
	if err := t.SendRaw(target, wire); err != nil {
		trySendEvent(ch, runtime.ErrorEvent(err.Error()))
		return err
	}
	return nil
}

func trySendMessage(ch *Channels, msg runtime.DeliveredMessage) {
	select {
	case ch.Messages <- msg:
	default:
	}
}

func trySendStatus(ch *Channels, change tracker.StatusChange) {
	select {
	case ch.Statuses <- change:
	default:
	}
}

func trySendEvent(ch *Channels, event runtime.ProtocolEvent) {
	select {
	case ch.Events <- event:
	default:
	}
}
