package msg

// View is a read-only envelope, typically one parsed from the wire. It
// owns its bytes; nothing else aliases them.
type View struct {
	frame
}

// Bytes returns a copy of the underlying frame.
func (v *View) Bytes() []byte {
	return append([]byte(nil), v.frame...)
}

// MatchesTopic reports whether the header derives the topic the message
// was delivered on. The transport does not check this.
func (v *View) MatchesTopic(topic string) bool {
	return v.Topic() == topic
}
