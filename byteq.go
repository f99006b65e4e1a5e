// Copyright 2022 MaoLongLong. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package byteq

import (
	"errors"
	"sync/atomic"
)

// Queue is a lock-free, concurrent FIFO queue of byte payloads. The zero
// value is not usable; construct one with New. A *Queue is safe for
// concurrent use by any number of producers and consumers.
type Queue struct {
	head *node // sentinel; head.next is the first live node, or tail
	tail *node // sentinel; tail.prev is the last live node, or head

	size           atomic.Int64
	maxSize        atomic.Int64
	enqueuedTotal  atomic.Uint64
	dequeuedTotal  atomic.Uint64
	enqueueRetries atomic.Uint64
	dequeueRetries atomic.Uint64

	hazards *hazardDomain
	closed  atomic.Bool
}

// New returns an empty Queue with its HEAD and TAIL sentinels already
// linked directly to each other.
func New() *Queue {
	head := &node{}
	tail := &node{}
	head.next.Store(tail)
	tail.prev.Store(head)
	return &Queue{
		head:    head,
		tail:    tail,
		hazards: newHazardDomain(),
	}
}

// Enqueue copies payload into a freshly allocated node and splices it
// immediately before TAIL. payload may be nil or empty. The caller's slice
// is never retained; mutating it after Enqueue returns has no effect on
// the queued copy.
func (q *Queue) Enqueue(payload []byte) error {
	if q == nil {
		return ErrInvalidArgument
	}
	if q.closed.Load() {
		return ErrClosed
	}

	n, err := allocateNode(payload)
	if err != nil {
		return err
	}

	for {
		p := q.tail.prev.Load()
		n.next.Store(q.tail)
		n.prev.Store(p)

		if p.next.CompareAndSwap(q.tail, n) {
			q.tail.prev.Store(n)
			sz := q.size.Add(1)
			q.bumpMaxSize(sz)
			q.enqueuedTotal.Add(1)
			return nil
		}
		q.enqueueRetries.Add(1)
	}
}

// allocateNode copies payload into a new node, translating an allocation
// panic (an absurd or overflowing length) into ErrOutOfMemory rather than
// letting it propagate.
func allocateNode(payload []byte) (n *node, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = nil, ErrOutOfMemory
		}
	}()
	return newNode(payload), nil
}

func (q *Queue) bumpMaxSize(observed int64) {
	for {
		cur := q.maxSize.Load()
		if observed <= cur {
			return
		}
		if q.maxSize.CompareAndSwap(cur, observed) {
			return
		}
	}
}

// Dequeue removes and returns the payload at the head of the queue, or
// ErrEmpty if no live node exists at the moment of observation.
func (q *Queue) Dequeue() ([]byte, error) {
	if q == nil {
		return nil, ErrInvalidArgument
	}
	if q.closed.Load() {
		return nil, ErrClosed
	}
	return q.dequeue()
}

func (q *Queue) dequeue() ([]byte, error) {
	for {
		rec := q.hazards.acquire()

		f := q.head.next.Load()
		if f == q.tail {
			q.hazards.releaseRecord(rec)
			return nil, ErrEmpty
		}

		rec.protect(f)
		if q.head.next.Load() != f {
			// f may already be mid-retirement; re-observe rather than
			// dereference a candidate we only protected a moment late.
			q.hazards.releaseRecord(rec)
			continue
		}

		if !f.claim() {
			q.hazards.releaseRecord(rec)
			q.dequeueRetries.Add(1)
			continue
		}

		n := f.next.Load()
		if q.head.next.CompareAndSwap(f, n) {
			if n != q.tail {
				n.prev.Store(q.head)
			} else {
				q.tail.prev.Store(q.head)
			}
			q.size.Add(-1)
			q.dequeuedTotal.Add(1)

			payload := f.payload
			f.release()
			q.hazards.releaseRecord(rec)
			q.hazards.retire(f)
			return payload, nil
		}

		f.release()
		q.hazards.releaseRecord(rec)
		q.dequeueRetries.Add(1)
	}
}

// IsEmpty reports whether the queue had no live node at the moment of
// observation. It is conservative toward false: it may report non-empty
// during the brief window between an enqueue's publishing CAS and its
// tail.prev fixup, but it never reports empty while a node is fully linked
// between HEAD and TAIL.
func (q *Queue) IsEmpty() bool {
	return q.head.next.Load() == q.tail && q.tail.prev.Load() == q.head
}

// Close drains all remaining payloads (discarding them) and releases the
// queue's reclamation bookkeeping. Close must not be called concurrently
// with any in-flight Enqueue or Dequeue; doing so is undefined behavior per
// spec.md §4.6. A second call to Close returns ErrClosed.
func (q *Queue) Close() error {
	if q == nil {
		return ErrInvalidArgument
	}
	if !q.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	for {
		if _, err := q.dequeue(); errors.Is(err, ErrEmpty) {
			break
		}
	}
	q.hazards.drain()
	return nil
}
