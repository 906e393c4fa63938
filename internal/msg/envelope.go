package msg

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Envelope is a message under construction. It is owned by a single
// producer; build a new one per message or Reset it before reuse. Received
// messages are read through View instead.
type Envelope struct {
	frame
	ids IDGenerator
}

// CreateHeader stamps a fresh id from the codec's generator together with
// the given type, command and key.
func (e *Envelope) CreateHeader(t Type, c Command, k Key) {
	e.SetHeader(Header{ID: e.ids.NextID(), Type: t, Command: c, Key: k})
}

// SetHeader writes all header fields verbatim, id included. Replies use it
// to echo the id of the message they acknowledge.
func (e *Envelope) SetHeader(h Header) {
	e.setProp(IDOffset, h.ID)
	e.setProp(TypeOffset, uint16(h.Type))
	e.setProp(CommandOffset, uint16(h.Command))
	e.setProp(KeyOffset, uint16(h.Key))
}

// SetPayloadBit sets payload bit idx.
func (e *Envelope) SetPayloadBit(idx int) error {
	b, bit, err := e.bitPos(idx)
	if err != nil {
		return err
	}
	e.frame[b] |= 1 << bit
	return nil
}

// ClearPayloadBit clears payload bit idx.
func (e *Envelope) ClearPayloadBit(idx int) error {
	b, bit, err := e.bitPos(idx)
	if err != nil {
		return err
	}
	e.frame[b] &^= 1 << bit
	return nil
}

// SetPayloadBits sets every index in idxs, stopping at the first bad one.
func (e *Envelope) SetPayloadBits(idxs ...int) error {
	for _, idx := range idxs {
		if err := e.SetPayloadBit(idx); err != nil {
			return err
		}
	}
	return nil
}

// SetPayloadFloat stores v big-endian at payload offset 0, replacing any
// bit flags in payload bytes 0..3. Nothing in the frame records which of
// the two payload modes is in use; receivers decide from type, command and
// key.
func (e *Envelope) SetPayloadFloat(v float32) {
	binary.BigEndian.PutUint32(e.frame[PayloadOffset:PayloadOffset+4], math.Float32bits(v))
}

// SetPayload copies p into the payload region and zeroes the remainder.
func (e *Envelope) SetPayload(p []byte) error {
	if len(p) > e.PayloadSize() {
		return fmt.Errorf("%w: %d bytes, capacity %d", ErrPayloadTooLarge, len(p), e.PayloadSize())
	}
	n := copy(e.frame[PayloadOffset:], p)
	clear(e.frame[PayloadOffset+n:])
	return nil
}

// Reset zeroes header and payload.
func (e *Envelope) Reset() {
	clear(e.frame)
}

// Bytes returns a copy of the serialized envelope for the transport.
func (e *Envelope) Bytes() []byte {
	return append([]byte(nil), e.frame...)
}

// View snapshots the envelope as a read-only view.
func (e *Envelope) View() *View {
	return &View{frame: append(frame(nil), e.frame...)}
}
