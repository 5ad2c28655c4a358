package rewards

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/navigate-learning/navigate/internal/domain"
)

// DefaultBusBuffer is the per-subscriber channel capacity.
const DefaultBusBuffer = 32

// Bus fans ledger updates out to subscribers.
// Publish never blocks: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan domain.RewardUpdate
	nextID int
	buffer int
}

// NewBus creates a bus with the given per-subscriber buffer.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBusBuffer
	}
	return &Bus{
		subs:   make(map[int]chan domain.RewardUpdate),
		buffer: buffer,
	}
}

// Subscribe registers a listener. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe() (<-chan domain.RewardUpdate, func()) {
	ch := make(chan domain.RewardUpdate, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers u to every subscriber that has room.
func (b *Bus) Publish(u domain.RewardUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- u:
		default:
			log.WithFields(log.Fields{
				"subscriber": id,
				"user":       u.UserID,
				"kind":       u.Kind,
			}).Warn("rewards: subscriber buffer full, dropping update")
		}
	}
}

// Subscribers returns the number of active listeners.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
