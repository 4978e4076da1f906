package changefeed

import "sync"

// RingBuffer is a bounded, thread-safe buffer of pending messages.
// When full, the oldest messages are dropped to make room for new ones.
type RingBuffer struct {
	mu       sync.Mutex
	messages []Message
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	dropped int64
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1024
	}
	return &RingBuffer{
		messages: make([]Message, capacity),
		capacity: capacity,
	}
}

// Enqueue adds a message, dropping the oldest if necessary. It reports whether
// a message was dropped.
func (b *RingBuffer) Enqueue(msg Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := false
	if b.count >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		dropped = true
	}

	b.messages[b.head] = msg
	b.head = (b.head + 1) % b.capacity
	b.count++
	return dropped
}

// DequeueBatch removes up to n messages in FIFO order.
func (b *RingBuffer) DequeueBatch(n int) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	out := make([]Message, n)
	for i := 0; i < n; i++ {
		out[i] = b.messages[b.tail]
		b.messages[b.tail] = Message{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return out
}

// Requeue puts a batch back at the front so it is retried first. Messages that
// no longer fit are dropped from the end of the batch.
func (b *RingBuffer) Requeue(batch []Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(batch) - 1; i >= 0; i-- {
		if b.count >= b.capacity {
			b.dropped += int64(i + 1)
			return
		}
		b.tail = (b.tail - 1 + b.capacity) % b.capacity
		b.messages[b.tail] = batch[i]
		b.count++
	}
}

func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns the total number of dropped messages.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
