// Package node runs producers and consumers of message envelopes on top of
// a network.PubSub.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/johker/phtm/internal/core/network"
	"github.com/johker/phtm/internal/msg"
)

var (
	ErrClosed      = errors.New("node closed")
	ErrNilEnvelope = errors.New("nil envelope")
)

// HandlerFunc receives every well-formed envelope delivered to a
// subscription. topic is the topic the transport delivered on.
type HandlerFunc func(topic string, v *msg.View)

// Stats are cumulative counters since the node was created.
type Stats struct {
	Sent     uint64 `json:"sent"`
	Received uint64 `json:"received"`
	Dropped  uint64 `json:"dropped"`
}

type Options struct {
	// StrictTopic drops inbound messages whose header does not derive the
	// topic they were delivered on.
	StrictTopic bool
	Logger      *logrus.Entry
}

// Node binds a codec to a transport. Outbound messages get a fresh
// envelope each; inbound deliveries are parsed into their own views.
type Node struct {
	codec  *msg.Codec
	pubsub network.PubSub
	strict bool
	log    *logrus.Entry

	mu      sync.Mutex
	cancels []func()
	closed  bool
	wg      sync.WaitGroup

	sent     atomic.Uint64
	received atomic.Uint64
	dropped  atomic.Uint64
}

func New(codec *msg.Codec, pubsub network.PubSub, opts Options) *Node {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Node{
		codec:  codec,
		pubsub: pubsub,
		strict: opts.StrictTopic,
		log:    logger.WithField("component", "node"),
	}
}

// Codec returns the codec shared by this node's producers and consumers.
func (n *Node) Codec() *msg.Codec { return n.codec }

// Send publishes env on the topic derived from its header.
func (n *Node) Send(env *msg.Envelope) error {
	if env == nil {
		return ErrNilEnvelope
	}
	if n.isClosed() {
		return ErrClosed
	}
	topic := env.Topic()
	if err := n.pubsub.Publish(topic, env.Bytes()); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	n.sent.Add(1)
	n.log.WithFields(logrus.Fields{"topic": topic, "id": env.ID(), "key": env.Key().String()}).Debug("sent")
	return nil
}

// Publish builds a fresh envelope with the given header, lets fill write
// the payload and sends it. An error from fill aborts the send.
func (n *Node) Publish(t msg.Type, c msg.Command, k msg.Key, fill func(*msg.Envelope) error) error {
	env := n.codec.NewEnvelope()
	env.CreateHeader(t, c, k)
	if fill != nil {
		if err := fill(env); err != nil {
			return fmt.Errorf("build %s/%s/%s: %w", t, c, k, err)
		}
	}
	return n.Send(env)
}

// SendSDR publishes a DATA/WRITE message whose payload bitset has exactly
// the active bits given.
func (n *Node) SendSDR(k msg.Key, active []int) error {
	return n.Publish(msg.TypeData, msg.CommandWrite, k, func(env *msg.Envelope) error {
		return env.SetPayloadBits(active...)
	})
}

// SendValue publishes a single float for the key named keyName, accepting
// "D_INPUT" as well as the dotted "MessageKey.D_INPUT" form. Unknown names
// are rejected before anything is sent.
func (n *Node) SendValue(t msg.Type, keyName string, v float32) error {
	k, err := msg.LookupKey(keyName)
	if err != nil {
		return err
	}
	return n.Publish(t, msg.CommandWrite, k, func(env *msg.Envelope) error {
		env.SetPayloadFloat(v)
		return nil
	})
}

// Handle subscribes to filter and calls h for each delivery that parses.
// Malformed deliveries are logged and dropped. The returned func stops the
// subscription.
func (n *Node) Handle(filter string, h HandlerFunc) (func(), error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrClosed
	}
	ch, cancel, err := n.pubsub.Subscribe(filter)
	if err != nil {
		return nil, fmt.Errorf("subscribe %q: %w", filter, err)
	}
	var once sync.Once
	stop := func() { once.Do(cancel) }
	n.cancels = append(n.cancels, stop)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.consume(ch, h)
	}()
	n.log.WithField("filter", filter).Info("subscribed")
	return stop, nil
}

func (n *Node) consume(ch <-chan network.Message, h HandlerFunc) {
	for m := range ch {
		v, err := n.codec.Parse(m.Payload)
		if err != nil {
			n.dropped.Add(1)
			n.log.WithError(err).WithFields(logrus.Fields{"topic": m.Topic, "len": len(m.Payload)}).Warn("dropping malformed message")
			continue
		}
		if n.strict && !v.MatchesTopic(m.Topic) {
			n.dropped.Add(1)
			n.log.WithFields(logrus.Fields{"topic": m.Topic, "header_topic": v.Topic()}).Warn("dropping message with mismatched topic")
			continue
		}
		n.received.Add(1)
		h(m.Topic, v)
	}
}

// RunProducer calls build every interval and sends the envelope it
// returns, until ctx is done. A build or send error stops the loop.
func (n *Node) RunProducer(ctx context.Context, interval time.Duration, build func(*msg.Codec) (*msg.Envelope, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			env, err := build(n.codec)
			if err != nil {
				return fmt.Errorf("build envelope: %w", err)
			}
			if err := n.Send(env); err != nil {
				return err
			}
			n.log.WithFields(logrus.Fields{"topic": env.Topic(), "id": env.ID()}).Info("sent message")
		}
	}
}

func (n *Node) Stats() Stats {
	return Stats{
		Sent:     n.sent.Load(),
		Received: n.received.Load(),
		Dropped:  n.dropped.Load(),
	}
}

// Close cancels every subscription and waits for their handlers to return.
func (n *Node) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	cancels := n.cancels
	n.cancels = nil
	n.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	n.wg.Wait()
}

func (n *Node) isClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}
