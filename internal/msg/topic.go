package msg

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic derives the pub/sub topic for a (type, command) pair, for example
// "T002.002" for DATA/WRITE. Both numbers are zero-padded to three digits;
// values of 1000 and above print in full and are not expected on the wire.
func Topic(t Type, c Command) string {
	return fmt.Sprintf("T%03d.%03d", uint16(t), uint16(c))
}

// TypePrefix is the topic prefix shared by every command of type t. It is
// what a subscriber passes to receive all DATA messages, say.
func TypePrefix(t Type) string {
	return fmt.Sprintf("T%03d.", uint16(t))
}

// ParseTopic is the inverse of Topic. Only the canonical form is accepted.
func ParseTopic(topic string) (Type, Command, error) {
	rest, ok := strings.CutPrefix(topic, "T")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedTopic, topic)
	}
	ts, cs, ok := strings.Cut(rest, ".")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedTopic, topic)
	}
	t, err := strconv.ParseUint(ts, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q: type: %v", ErrMalformedTopic, topic, err)
	}
	c, err := strconv.ParseUint(cs, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q: command: %v", ErrMalformedTopic, topic, err)
	}
	if Topic(Type(t), Command(c)) != topic {
		return 0, 0, fmt.Errorf("%w: %q is not canonical", ErrMalformedTopic, topic)
	}
	return Type(t), Command(c), nil
}
