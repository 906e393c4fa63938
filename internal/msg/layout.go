// Package msg implements the binary message envelope exchanged between
// publishers and subscribers: an 8-byte header (id, type, command, key)
// followed by a fixed-size payload used either as a bitset or as a packed
// float32.
//
//	0..1   id       uint16 big-endian
//	2..3   type     uint16 big-endian
//	4..5   command  uint16 big-endian
//	6..7   key      uint16 big-endian
//	8..    payload  PayloadSize bytes
package msg

// Byte offsets of the header fields. Every other package reads the layout
// from here.
const (
	IDOffset      = 0
	TypeOffset    = 2
	CommandOffset = 4
	KeyOffset     = 6
	PayloadOffset = 8

	HeaderSize = PayloadOffset

	// KeyDiv splits the key space: keys >= KeyDiv address data, keys below
	// it address control values.
	KeyDiv = 1000

	// DefaultPayloadSize is a deployment default, not a format constant.
	DefaultPayloadSize = 512
)

// FrameSize returns the total length of an envelope with the given payload.
func FrameSize(payloadSize int) int {
	return HeaderSize + payloadSize
}
