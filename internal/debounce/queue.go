package debounce

import (
	"sync/atomic"
	"time"

	"github.com/thatsimonsguy/array-controller/internal/model"
)

// Event is a raw level captured by an edge handler.
type Event struct {
	Pin    model.GPIOPin
	Active bool
	At     time.Time
}

// Queue carries raw edges from edge handlers to the main loop. Push never
// blocks; when the queue is full the event is dropped and counted.
type Queue struct {
	ch    chan Event
	drops uint32
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{ch: make(chan Event, size)}
}

func (q *Queue) Push(ev Event) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		atomic.AddUint32(&q.drops, 1)
		return false
	}
}

// Drain hands every queued event to fn without blocking and returns the count.
func (q *Queue) Drain(fn func(Event)) int {
	n := 0
	for {
		select {
		case ev := <-q.ch:
			fn(ev)
			n++
		default:
			return n
		}
	}
}

func (q *Queue) Len() int { return len(q.ch) }

func (q *Queue) Drops() uint32 { return atomic.LoadUint32(&q.drops) }
