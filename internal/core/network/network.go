package network

// Message is one delivery from the transport: the topic it was published
// on and the raw envelope bytes. Payload is owned by the receiver.
type Message struct {
	Topic   string
	Payload []byte
}

// PubSub is the broadcast transport envelopes travel over.
//
// Subscribe takes a filter. MemoryPubSub treats it as a topic prefix, so
// "" receives everything and "T002." every DATA message; Libp2pPubSub
// joins exactly one gossipsub topic per filter.
type PubSub interface {
	Publish(topic string, payload []byte) error
	Subscribe(filter string) (<-chan Message, func(), error)
}
