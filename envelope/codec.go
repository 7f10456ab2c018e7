package envelope

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tom-mesh/tom-protocol/errs"
)

// ToBytes encodes the envelope to its wire form (MessagePack).
func (e *Envelope) ToBytes() ([]byte, error) {
	b, err := msgpack.Marshal(e)
	if err != nil {
		return nil, errs.Serialization(err)
	}
	return b, nil
}

// FromBytes decodes an envelope from its wire form.
func FromBytes(data []byte) (Envelope, error) {
	var e Envelope
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return Envelope{}, errs.Deserialization(err)
	}
	return e, nil
}
