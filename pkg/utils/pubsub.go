package utils

import (
	"github.com/sasha-s/go-deadlock"
)

// How many values a subscriber can fall behind before it starts missing
// them.
const SubscriberBuffer = 16

// Topic fans values out to subscribers. Publishing never blocks: a
// subscriber that is not keeping up drops values.
type Topic[T any] struct {
	subscribers map[chan T]struct{}
	closed      bool
	mutex       deadlock.Mutex
}

func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{
		subscribers: make(map[chan T]struct{}),
	}
}

func (t *Topic[T]) Publish(value T) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.closed {
		return
	}

	for subscriber := range t.subscribers {
		select {
		case subscriber <- value:
		default:
		}
	}
}

// Close ends every subscription. Receivers see their channel closed once
// they have drained it.
func (t *Topic[T]) Close() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.closed {
		return
	}
	t.closed = true

	for subscriber := range t.subscribers {
		close(subscriber)
	}
	t.subscribers = make(map[chan T]struct{})
}

type Subscriber[T any] struct {
	channel chan T
	topic   *Topic[T]
}

func (t *Topic[T]) Subscribe() *Subscriber[T] {
	channel := make(chan T, SubscriberBuffer)
	t.mutex.Lock()
	if t.closed {
		close(channel)
	} else {
		t.subscribers[channel] = struct{}{}
	}
	t.mutex.Unlock()

	return &Subscriber[T]{channel, t}
}

func (t *Subscriber[T]) Recv() <-chan T {
	return t.channel
}

func (t *Subscriber[T]) Done() {
	topic := t.topic
	topic.mutex.Lock()
	if _, ok := topic.subscribers[t.channel]; ok {
		delete(topic.subscribers, t.channel)
		close(t.channel)
	}
	topic.mutex.Unlock()
}
