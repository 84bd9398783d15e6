package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Broker is an in-process pub/sub broker backed by an observer list per
// channel. It lets components in the same process react to reminder firings
// without a Redis round trip, and doubles as the broker used in tests.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string][]chan []byte
	closed bool
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string][]chan []byte),
	}
}

func (b *Broker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("broker is closed")
	}

	for _, ch := range b.subs[channel] {
		// Slow subscribers drop messages rather than block the publisher.
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("broker is closed")
	}

	ch := make(chan []byte, 100)
	b.subs[channel] = append(b.subs[channel], ch)

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			b.unsubscribe(channel, ch)
		}()
	}

	return ch, nil
}

func (b *Broker) unsubscribe(channel string, ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	subs := b.subs[channel]
	for i, c := range subs {
		if c == ch {
			b.subs[channel] = append(subs[:i], subs[i+1:]...)
			close(c)
			return
		}
	}
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.subs = nil
	return nil
}
