package msg

import "fmt"

// Codec carries the per-deployment parameters shared by producer and
// consumer: payload size and id policy. A Codec is immutable and safe to
// share; the envelopes it creates are not.
type Codec struct {
	payloadSize int
	ids         IDGenerator
}

type Option func(*Codec)

// WithPayloadSize overrides DefaultPayloadSize. Both ends of a topic must
// agree on it.
func WithPayloadSize(n int) Option {
	return func(c *Codec) { c.payloadSize = n }
}

// WithIDGenerator sets the id policy used by CreateHeader.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Codec) { c.ids = g }
}

func NewCodec(opts ...Option) (*Codec, error) {
	c := &Codec{payloadSize: DefaultPayloadSize}
	for _, opt := range opts {
		opt(c)
	}
	if c.payloadSize < 4 {
		return nil, fmt.Errorf("%w: %d", ErrPayloadSize, c.payloadSize)
	}
	if c.ids == nil {
		c.ids = NewSequence(1)
	}
	return c, nil
}

// PayloadSize returns the payload capacity of every envelope this codec
// builds or accepts.
func (c *Codec) PayloadSize() int { return c.payloadSize }

// FrameSize returns the exact length of a serialized envelope.
func (c *Codec) FrameSize() int { return FrameSize(c.payloadSize) }

// NewEnvelope returns a zeroed envelope ready to be built.
func (c *Codec) NewEnvelope() *Envelope {
	return &Envelope{frame: make(frame, c.FrameSize()), ids: c.ids}
}

// Parse wraps a received buffer in a read-only View. The buffer must be
// exactly FrameSize bytes; anything else is ErrMalformedBuffer. The view
// keeps its own copy, so b may be reused by the caller.
func (c *Codec) Parse(b []byte) (*View, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrMalformedBuffer, len(b), HeaderSize)
	}
	if len(b) != c.FrameSize() {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrMalformedBuffer, len(b), c.FrameSize())
	}
	return &View{frame: append(frame(nil), b...)}, nil
}
