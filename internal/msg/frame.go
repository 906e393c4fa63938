package msg

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// Header is the decoded form of the first HeaderSize bytes.
type Header struct {
	ID      uint16  `json:"id"`
	Type    Type    `json:"type"`
	Command Command `json:"command"`
	Key     Key     `json:"key"`
}

// Topic derives the header's pub/sub topic.
func (h Header) Topic() string {
	return Topic(h.Type, h.Command)
}

// frame holds the read side shared by Envelope and View. Its length is
// always HeaderSize plus the payload size.
type frame []byte

func (f frame) prop(offset int) uint16 {
	return binary.BigEndian.Uint16(f[offset : offset+2])
}

func (f frame) setProp(offset int, v uint16) {
	binary.BigEndian.PutUint16(f[offset:offset+2], v)
}

// ID returns the message id.
func (f frame) ID() uint16 { return f.prop(IDOffset) }

// Type returns the message type. Unknown values are returned unchanged.
func (f frame) Type() Type { return Type(f.prop(TypeOffset)) }

// Command returns the message command. Unknown values are returned unchanged.
func (f frame) Command() Command { return Command(f.prop(CommandOffset)) }

// Key returns the message key. Unknown values are returned unchanged.
func (f frame) Key() Key { return Key(f.prop(KeyOffset)) }

// Header decodes all four header fields.
func (f frame) Header() Header {
	return Header{ID: f.ID(), Type: f.Type(), Command: f.Command(), Key: f.Key()}
}

// Topic derives the topic from the current type and command. It is never
// stored in the buffer.
func (f frame) Topic() string {
	return Topic(f.Type(), f.Command())
}

// PayloadSize returns the payload capacity in bytes.
func (f frame) PayloadSize() int {
	return len(f) - HeaderSize
}

// Payload returns a copy of the payload region.
func (f frame) Payload() []byte {
	return append([]byte(nil), f[PayloadOffset:]...)
}

// bitPos maps a payload bit index to its absolute byte and bit position.
func (f frame) bitPos(idx int) (int, uint, error) {
	limit := f.PayloadSize() * 8
	if idx < 0 || idx >= limit {
		return 0, 0, fmt.Errorf("%w: %d not in [0, %d)", ErrBitIndexOutOfRange, idx, limit)
	}
	return PayloadOffset + idx>>3, uint(idx % 8), nil
}

// IsActive reports whether payload bit idx is set.
func (f frame) IsActive(idx int) (bool, error) {
	b, bit, err := f.bitPos(idx)
	if err != nil {
		return false, err
	}
	return f[b]&(1<<bit) != 0, nil
}

// ActiveBits lists the indexes of all set payload bits in ascending order.
func (f frame) ActiveBits() []int {
	var out []int
	for i, b := range f[PayloadOffset:] {
		for b != 0 {
			bit := bits.TrailingZeros8(b)
			out = append(out, i*8+bit)
			b &^= 1 << bit
		}
	}
	return out
}

// Bits expands the first n payload bits into a bool slice, one entry per
// bit index.
func (f frame) Bits(n int) ([]bool, error) {
	if n < 0 || n > f.PayloadSize()*8 {
		return nil, fmt.Errorf("%w: %d bits requested, capacity %d", ErrBitIndexOutOfRange, n, f.PayloadSize()*8)
	}
	out := make([]bool, n)
	for i := range out {
		out[i] = f[PayloadOffset+i>>3]&(1<<uint(i%8)) != 0
	}
	return out, nil
}

// PayloadFloat reads the float32 stored at payload offset 0.
func (f frame) PayloadFloat() float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(f[PayloadOffset : PayloadOffset+4]))
}

// String renders every byte of the frame, comma separated. Debug only.
func (f frame) String() string {
	var sb strings.Builder
	for i, b := range f {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(b)))
	}
	return sb.String()
}

// Describe is a one-line summary for logs.
func (f frame) Describe() string {
	return fmt.Sprintf("id=%d type=%s cmd=%s key=%s topic=%s payload=%dB active=%d",
		f.ID(), f.Type(), f.Command(), f.Key(), f.Topic(), f.PayloadSize(), len(f.ActiveBits()))
}
