package network

import (
	"strings"
	"sync"
	"sync/atomic"
)

// MemoryPubSub is a process-local transport used for tests and single
// process deployments. Delivery uses prefix matching on the topic.
type MemoryPubSub struct {
	mu      sync.RWMutex
	nextID  int
	subs    map[string]map[int]chan Message
	dropped atomic.Uint64
}

func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{subs: make(map[string]map[int]chan Message)}
}

func (m *MemoryPubSub) Publish(topic string, payload []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for filter, chans := range m.subs {
		if !strings.HasPrefix(topic, filter) {
			continue
		}
		for _, ch := range chans {
			msg := Message{Topic: topic, Payload: append([]byte(nil), payload...)}
			select {
			case ch <- msg:
			default:
				// Non-blocking send to avoid one slow subscriber stalling all publishers.
				m.dropped.Add(1)
			}
		}
	}
	return nil
}

func (m *MemoryPubSub) Subscribe(filter string) (<-chan Message, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[filter]; !ok {
		m.subs[filter] = make(map[int]chan Message)
	}
	id := m.nextID
	m.nextID++
	ch := make(chan Message, 64)
	m.subs[filter][id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if subsByFilter, ok := m.subs[filter]; ok {
			if sub, exists := subsByFilter[id]; exists {
				delete(subsByFilter, id)
				close(sub)
			}
			if len(subsByFilter) == 0 {
				delete(m.subs, filter)
			}
		}
	}
	return ch, cancel, nil
}

// Dropped counts deliveries discarded because a subscriber's buffer was full.
func (m *MemoryPubSub) Dropped() uint64 {
	return m.dropped.Load()
}
