// Package errs defines the protocol-level error taxonomy surfaced by the
// ToM core (spec §7). These are distinct from internal/logger.TomError,
// which covers ambient/operational failures (config, CLI, I/O) rather than
// protocol semantics.
package errs

import "fmt"

// Kind identifies which row of the error taxonomy an error belongs to.
type Kind string

const (
	KindInvalidEnvelope    Kind = "invalid_envelope"
	KindCrypto             Kind = "crypto"
	KindInvalidSignature   Kind = "invalid_signature"
	KindPeerUnreachable    Kind = "peer_unreachable"
	KindRelayRejected      Kind = "relay_rejected"
	KindTransport          Kind = "transport"
	KindSerialization      Kind = "serialization"
	KindDeserialization    Kind = "deserialization"
	KindMessageTooLarge    Kind = "message_too_large"
)

// Error is a protocol-level error: a Kind plus a human-readable reason.
// Handlers never panic on bad input; fallible operations return an *Error
// (or an effect list containing a ProtocolEvent::Error) instead.
type Error struct {
	Kind   Kind
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is comparisons against a bare Kind sentinel created by
// New(kind, "").
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates an *Error with the given kind and reason.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap creates an *Error that also carries an underlying cause.
func Wrap(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}

// InvalidEnvelope reports a structurally malformed envelope.
func InvalidEnvelope(reason string) *Error { return New(KindInvalidEnvelope, reason) }

// Crypto reports an AEAD or ECDH failure.
func Crypto(reason string) *Error { return New(KindCrypto, reason) }

// InvalidSignature reports an Ed25519 verification failure.
func InvalidSignature() *Error { return New(KindInvalidSignature, "ed25519 verification failed") }

// PeerUnreachable reports that no direct or relay path exists.
func PeerUnreachable(nodeID string) *Error {
	return New(KindPeerUnreachable, fmt.Sprintf("no path to %s", nodeID))
}

// RelayRejected reports a dropped relay (ttl exhausted, loop, oversize).
func RelayRejected(reason string) *Error { return New(KindRelayRejected, reason) }

// Transport wraps an underlying transport send/recv failure.
func Transport(cause error) *Error { return Wrap(KindTransport, "transport error", cause) }

// Serialization reports a wire-encoding failure while writing.
func Serialization(cause error) *Error { return Wrap(KindSerialization, "serialization error", cause) }

// Deserialization reports a wire-decoding failure while reading.
func Deserialization(cause error) *Error {
	return Wrap(KindDeserialization, "deserialization error", cause)
}

// MessageTooLarge reports a message exceeding the configured size cap.
type MessageTooLargeError struct {
	Size int
	Max  int
}

func (e *MessageTooLargeError) Error() string {
	return fmt.Sprintf("%s: size=%d max=%d", KindMessageTooLarge, e.Size, e.Max)
}

// MessageTooLarge constructs the size-cap error named in scenario E.
func MessageTooLarge(size, max int) *MessageTooLargeError {
	return &MessageTooLargeError{Size: size, Max: max}
}
