package logsink

import (
	"context"
	"sync/atomic"
)

// Queue hands messages across a buffered channel so the producer never blocks
// on the destination. When the buffer is full the message is dropped and
// counted.
type Queue struct {
	ch      chan Entry
	dropped atomic.Int64
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{ch: make(chan Entry, size)}
}

func (q *Queue) Log(level Level, msg string) {
	select {
	case q.ch <- Entry{Level: level, Msg: msg}:
	default:
		q.dropped.Add(1)
	}
}

// Dropped is the number of messages lost to a full buffer.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }

// Run forwards queued messages to dst until ctx is done, then drains what is
// already buffered.
func (q *Queue) Run(ctx context.Context, dst Sink) {
	for {
		select {
		case e := <-q.ch:
			dst.Log(e.Level, e.Msg)
		case <-ctx.Done():
			for {
				select {
				case e := <-q.ch:
					dst.Log(e.Level, e.Msg)
				default:
					return
				}
			}
		}
	}
}
