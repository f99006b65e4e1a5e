// Copyright 2022 MaoLongLong. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package byteq

// Stats is a snapshot of a Queue's size and counters. It is read
// field-by-field from independent atomics, so under concurrent mutation
// the fields may not be mutually consistent with one another; they agree
// only at a quiescent point (spec.md §3, invariant 6).
type Stats struct {
	Size           int64
	MaxSize        int64
	EnqueuedTotal  uint64
	DequeuedTotal  uint64
	EnqueueRetries uint64
	DequeueRetries uint64
}

// Size returns the current size estimate. It is a point-in-time read under
// concurrent mutation, not a consistency signal.
func (q *Queue) Size() int64 {
	return q.size.Load()
}

// MaxSize returns the monotone high-water mark of Size ever observed
// immediately after a successful Enqueue.
func (q *Queue) MaxSize() int64 {
	return q.maxSize.Load()
}

// Stats returns a snapshot of every counter named in spec.md §6's
// statistics readout.
func (q *Queue) Stats() Stats {
	return Stats{
		Size:           q.size.Load(),
		MaxSize:        q.maxSize.Load(),
		EnqueuedTotal:  q.enqueuedTotal.Load(),
		DequeuedTotal:  q.dequeuedTotal.Load(),
		EnqueueRetries: q.enqueueRetries.Load(),
		DequeueRetries: q.dequeueRetries.Load(),
	}
}
