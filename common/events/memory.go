package events

import (
	"context"
	"sync"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
)

// MemoryPublisher is an in-process publisher backed by buffered
// channels, one per pub/sub channel name. Subscribers that fall
// behind lose events rather than block the publisher.
type MemoryPublisher struct {
	mu       sync.RWMutex
	channels map[string]chan Event
	closed   bool
	log      *logger.Logger
}

// NewMemoryPublisher creates an in-process publisher
func NewMemoryPublisher(log *logger.Logger) *MemoryPublisher {
	return &MemoryPublisher{
		channels: make(map[string]chan Event),
		log:      log,
	}
}

// Publish delivers the event to the project's channel. A full channel
// drops the event with a warning.
func (p *MemoryPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	ch := p.channel(ChannelFor(event.Project))
	select {
	case ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.log.Warn("event channel full, dropping event",
			"channel", ChannelFor(event.Project), "event", event.Event)
		return nil
	}
}

// Subscribe returns the receive side of a project's channel. Intended
// for tests and single-binary listeners.
func (p *MemoryPublisher) Subscribe(project string) <-chan Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel(ChannelFor(project))
}

// channel returns the named channel, creating it when absent.
// Callers hold p.mu.
func (p *MemoryPublisher) channel(name string) chan Event {
	ch, ok := p.channels[name]
	if !ok {
		ch = make(chan Event, 256)
		p.channels[name] = ch
	}
	return ch
}

// Close closes every channel; later publishes are silently dropped
func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	for name, ch := range p.channels {
		close(ch)
		delete(p.channels, name)
	}
	return nil
}
