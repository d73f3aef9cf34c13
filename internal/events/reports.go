package events

import (
	"sync"

	"github.com/vadiminshakov/reckon/internal/entity"
)

// DiagnosisBroadcaster fans out finished diagnoses to subscribers via
// buffered channels, so the web stream does not have to poll the
// journal.
type DiagnosisBroadcaster struct {
	mu     sync.RWMutex
	subs   map[chan entity.Diagnosis]struct{}
	buffer int
}

// NewDiagnosisBroadcaster creates a broadcaster with the given
// per-subscriber buffer.
func NewDiagnosisBroadcaster(buffer int) *DiagnosisBroadcaster {
	if buffer < 1 {
		buffer = 16
	}
	return &DiagnosisBroadcaster{
		subs:   make(map[chan entity.Diagnosis]struct{}),
		buffer: buffer,
	}
}

// Publish sends the diagnosis to all subscribers, dropping it for any
// reader that is not keeping up.
func (b *DiagnosisBroadcaster) Publish(d entity.Diagnosis) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- d:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel receiving diagnoses until Unsubscribe.
func (b *DiagnosisBroadcaster) Subscribe() chan entity.Diagnosis {
	ch := make(chan entity.Diagnosis, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *DiagnosisBroadcaster) Unsubscribe(ch chan entity.Diagnosis) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
