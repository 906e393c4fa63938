package network

import (
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func expectNone(t *testing.T, ch <-chan Message) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected delivery on %s", msg.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryPrefixFilter(t *testing.T) {
	ps := NewMemoryPubSub()
	exact, cancelExact, _ := ps.Subscribe("T002.002")
	defer cancelExact()
	data, cancelData, _ := ps.Subscribe("T002.")
	defer cancelData()
	all, cancelAll, _ := ps.Subscribe("")
	defer cancelAll()

	if err := ps.Publish("T002.003", []byte{1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := recv(t, data); got.Topic != "T002.003" {
		t.Fatalf("prefix subscriber got topic %s", got.Topic)
	}
	recv(t, all)
	expectNone(t, exact)

	if err := ps.Publish("T002.002", []byte{2}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := recv(t, exact); got.Payload[0] != 2 {
		t.Fatalf("unexpected payload %v", got.Payload)
	}
	recv(t, data)
	recv(t, all)

	if err := ps.Publish("T001.005", []byte{3}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	recv(t, all)
	expectNone(t, data)
	expectNone(t, exact)
}

func TestMemoryPayloadIsCopied(t *testing.T) {
	ps := NewMemoryPubSub()
	a, cancelA, _ := ps.Subscribe("T")
	defer cancelA()
	b, cancelB, _ := ps.Subscribe("T")
	defer cancelB()

	buf := []byte{7, 7}
	_ = ps.Publish("T000.000", buf)
	buf[0] = 0

	ma := recv(t, a)
	ma.Payload[1] = 9
	mb := recv(t, b)
	if mb.Payload[0] != 7 || mb.Payload[1] != 7 {
		t.Fatalf("payload shared between deliveries: %v", mb.Payload)
	}
}

func TestMemoryCancelClosesChannel(t *testing.T) {
	ps := NewMemoryPubSub()
	ch, cancel, _ := ps.Subscribe("T002.")
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	if err := ps.Publish("T002.002", nil); err != nil {
		t.Fatalf("publish after cancel: %v", err)
	}
}

func TestMemoryDropsWhenSubscriberIsFull(t *testing.T) {
	ps := NewMemoryPubSub()
	_, cancel, _ := ps.Subscribe("")
	defer cancel()
	for i := 0; i < 70; i++ {
		_ = ps.Publish("T000.000", nil)
	}
	if got := ps.Dropped(); got != 6 {
		t.Fatalf("expected 6 dropped deliveries, got %d", got)
	}
}
