package mqtt

import "log"

// DefaultBufferSize is the number of messages kept while the broker is unreachable.
const DefaultBufferSize = 100

// pending is a message held for replay after reconnection.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO of messages published while disconnected.
// When full the oldest message is overwritten. Callers synchronize.
type outbox struct {
	msgs    []pending
	head    int // next write position
	count   int
	dropped int // overwritten since the last drain, reported on replay
}

func newOutbox(capacity int) *outbox {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &outbox{msgs: make([]pending, capacity)}
}

func (o *outbox) push(msg pending) {
	size := len(o.msgs)
	if o.count == size {
		if o.dropped == 0 {
			log.Printf("mqtt: offline buffer full (%d messages), dropping oldest", size)
		}
		o.dropped++
	} else {
		o.count++
	}
	o.msgs[o.head] = msg
	o.head = (o.head + 1) % size
}

// drain returns the held messages oldest first and empties the outbox.
func (o *outbox) drain() []pending {
	if o.count == 0 {
		return nil
	}
	size := len(o.msgs)
	out := make([]pending, 0, o.count)
	for i := o.head - o.count; i < o.head; i++ {
		out = append(out, o.msgs[(i+size)%size])
	}
	o.head, o.count, o.dropped = 0, 0, 0
	return out
}

func (o *outbox) len() int {
	return o.count
}
