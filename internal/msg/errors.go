package msg

import "errors"

var (
	ErrBitIndexOutOfRange = errors.New("payload bit index out of range")
	ErrMalformedBuffer    = errors.New("malformed message buffer")
	ErrPayloadTooLarge    = errors.New("payload exceeds envelope capacity")
	ErrPayloadSize        = errors.New("payload size must hold at least a float32")
	ErrMalformedTopic     = errors.New("malformed topic")
	ErrUnknownName        = errors.New("unknown enum name")
)
