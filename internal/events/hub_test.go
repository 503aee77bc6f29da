// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHub_SubscribeAndUnsubscribe(t *testing.T) {
	hub := NewHub()

	ch := hub.Subscribe("")
	ch2 := hub.Subscribe("reg-1")
	assert.Equal(t, 2, hub.SubscriberCount())

	hub.Unsubscribe(ch)
	assert.Equal(t, 1, hub.SubscriberCount())
	_, open := <-ch
	assert.False(t, open, "unsubscribed channel is closed")

	hub.Unsubscribe(ch2)
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestHub_UnsubscribeTwice(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe("")

	hub.Unsubscribe(ch)
	assert.NotPanics(t, func() { hub.Unsubscribe(ch) })
}

func TestHub_PublishFiltersByRegistration(t *testing.T) {
	hub := NewHub()
	all := hub.Subscribe("")
	one := hub.Subscribe("reg-1")
	other := hub.Subscribe("reg-2")

	hub.Publish(Event{Type: RegistrationUpdated, RegistrationID: "reg-1"})

	select {
	case e := <-all:
		assert.Equal(t, "reg-1", e.RegistrationID)
	case <-time.After(time.Second):
		t.Fatal("catch-all subscriber did not receive event")
	}
	select {
	case e := <-one:
		assert.Equal(t, RegistrationUpdated, e.Type)
	case <-time.After(time.Second):
		t.Fatal("registration subscriber did not receive event")
	}
	select {
	case <-other:
		t.Fatal("unrelated subscriber received event")
	default:
	}
}

func TestHub_PublishDoesNotBlockOnFullChannel(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe("")

	done := make(chan struct{})
	go func() {
		for range 100 {
			hub.Publish(Event{Type: RegistrationUpdated, RegistrationID: "reg-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Len(t, ch, cap(ch))
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := hub.Subscribe("")
			hub.Publish(Event{Type: RegistrationSubmitted})
			hub.Unsubscribe(ch)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, hub.SubscriberCount())
}
