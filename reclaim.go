// Copyright 2022 MaoLongLong. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package byteq

import (
	"sync/atomic"

	"github.com/gammazero/deque"
)

// hazardRecordBatch is how many hazard records the domain grows by when
// every existing record is in use.
const hazardRecordBatch = 8

// hazardRecord is a single published hazard pointer. A dequeuer owns a
// record for the duration of one claim attempt; the domain never reclaims
// a retired node that any live record still points at. nextFree links idle
// records together into the domain's free-list, a lock-free stack of its
// own, kept separate from the node-graph's next/prev links.
type hazardRecord struct {
	ptr      atomic.Pointer[node]
	nextFree atomic.Pointer[hazardRecord]
}

func (r *hazardRecord) protect(candidate *node) {
	r.ptr.Store(candidate)
}

func (r *hazardRecord) clear() {
	r.ptr.Store(nil)
}

// hazardDomain is the per-Queue reclamation authority: a scannable table of
// hazard records plus a lock-free stack of retired-but-not-yet-safe-to-drop
// nodes. It implements the hazard-pointer scheme named as option (a) in
// spec.md's node-reclamation open question.
//
// Every field here is either an atomic scalar or a pointer swapped in by
// CAS — retire and scan, which run synchronously inside Dequeue's call
// path, never take a mutex, matching spec.md §5's "no mutexes in the
// critical path" and the teacher's own pure-CAS style.
type hazardDomain struct {
	records     atomic.Pointer[[]*hazardRecord] // copy-on-write; replaced wholesale by grow
	recordCount atomic.Int64
	freeTop     atomic.Pointer[hazardRecord] // Treiber-stack free-list of idle records

	retiredTop atomic.Pointer[node] // Treiber stack of retired, unreclaimed nodes
	pending    atomic.Int64
}

func newHazardDomain() *hazardDomain {
	d := &hazardDomain{}
	d.grow()
	return d
}

// grow appends hazardRecordBatch fresh records by CAS-swapping in a new
// records slice built from the old one, then threads each new record onto
// the free-list. Only called when the free-list is observed empty, never
// from retire/scan, so the copy-on-write cost never lands on a dequeuer
// that already has a free record to use.
func (d *hazardDomain) grow() {
	for {
		oldPtr := d.records.Load()
		var oldSlice []*hazardRecord
		if oldPtr != nil {
			oldSlice = *oldPtr
		}

		added := make([]*hazardRecord, hazardRecordBatch)
		for i := range added {
			added[i] = &hazardRecord{}
		}

		newSlice := make([]*hazardRecord, len(oldSlice)+hazardRecordBatch)
		copy(newSlice, oldSlice)
		copy(newSlice[len(oldSlice):], added)

		if d.records.CompareAndSwap(oldPtr, &newSlice) {
			d.recordCount.Store(int64(len(newSlice)))
			for _, r := range added {
				d.pushFree(r)
			}
			return
		}
	}
}

func (d *hazardDomain) pushFree(r *hazardRecord) {
	for {
		top := d.freeTop.Load()
		r.nextFree.Store(top)
		if d.freeTop.CompareAndSwap(top, r) {
			return
		}
	}
}

func (d *hazardDomain) popFree() (*hazardRecord, bool) {
	for {
		top := d.freeTop.Load()
		if top == nil {
			return nil, false
		}
		next := top.nextFree.Load()
		if d.freeTop.CompareAndSwap(top, next) {
			top.nextFree.Store(nil)
			return top, true
		}
	}
}

// acquire returns a hazard record for exclusive use by the caller until it
// calls releaseRecord. The table grows rather than blocks when exhausted,
// since a dequeuer must never spin waiting on reclamation bookkeeping.
func (d *hazardDomain) acquire() *hazardRecord {
	for {
		if r, ok := d.popFree(); ok {
			return r
		}
		d.grow()
	}
}

func (d *hazardDomain) releaseRecord(r *hazardRecord) {
	r.clear()
	d.pushFree(r)
}

// pushRetired CAS-links n onto the head of the retired stack via its
// retiredNext field, which is only ever touched while a node is staged
// here — live nodes use next/prev exclusively.
func (d *hazardDomain) pushRetired(n *node) {
	for {
		top := d.retiredTop.Load()
		n.retiredNext.Store(top)
		if d.retiredTop.CompareAndSwap(top, n) {
			return
		}
	}
}

// popAllRetired atomically detaches the entire retired stack in one CAS
// and returns its head; the caller walks the rest via retiredNext.
func (d *hazardDomain) popAllRetired() *node {
	for {
		top := d.retiredTop.Load()
		if top == nil {
			return nil
		}
		if d.retiredTop.CompareAndSwap(top, nil) {
			return top
		}
	}
}

func (d *hazardDomain) snapshotProtected() map[*node]struct{} {
	slicePtr := d.records.Load()
	if slicePtr == nil {
		return nil
	}
	slice := *slicePtr
	protected := make(map[*node]struct{}, len(slice))
	for _, r := range slice {
		if p := r.ptr.Load(); p != nil {
			protected[p] = struct{}{}
		}
	}
	return protected
}

// retire stages a node that a dequeuer has fully detached from the live
// chain. The node is not dropped here: a concurrent dequeuer may have
// published a hazard pointer to it moments before the detaching CAS
// succeeded, and scan is what verifies that is no longer the case. Staging
// is a single CAS push; scan only runs once every ~2*len(records)
// retirements, so the common case of retire is one atomic op.
func (d *hazardDomain) retire(n *node) {
	d.pushRetired(n)
	if d.pending.Add(1) >= 2*d.recordCount.Load() {
		d.scan()
	}
}

// scan detaches the whole retired stack in one CAS, re-publishes every
// node still protected by a live hazard pointer, and clears the links of
// everything else so it becomes eligible for garbage collection. No
// mutex is taken: the detach is a single CAS, the snapshot of hazard
// pointers is a sequence of atomic loads over an append-only (copy-on-
// write) slice, and re-publishing survivors is the same lock-free push
// used by retire.
func (d *hazardDomain) scan() {
	head := d.popAllRetired()
	if head == nil {
		return
	}

	protected := d.snapshotProtected()

	var total, kept int64
	for cand := head; cand != nil; {
		next := cand.retiredNext.Load()
		total++
		if _, hazardous := protected[cand]; hazardous {
			d.pushRetired(cand)
			kept++
		} else {
			cand.next.Store(nil)
			cand.prev.Store(nil)
			cand.retiredNext.Store(nil)
		}
		cand = next
	}
	d.pending.Add(kept - total)
}

// drain unconditionally releases every staged node. Only safe to call once
// the owning Queue guarantees no concurrent operation remains in flight
// (Close's documented precondition), which is also why this is the one
// place in the reclaimer allowed to use a plain, non-concurrent structure:
// github.com/gammazero/deque stages the popped chain, which runs from the
// most recently retired node to the oldest, and releases it in that same
// order (newest first), the same access pattern
// petenewcomb-psg-go's simulator uses it for (internal/sim/estimate.go:130,
// 158: a plain `deque.Deque[*Task]` pushed and popped single-threaded
// within one simulation step).
func (d *hazardDomain) drain() {
	head := d.popAllRetired()

	var staged deque.Deque[*node]
	for cand := head; cand != nil; {
		next := cand.retiredNext.Load()
		staged.PushBack(cand)
		cand = next
	}
	for staged.Len() > 0 {
		cand := staged.PopFront()
		cand.next.Store(nil)
		cand.prev.Store(nil)
		cand.retiredNext.Store(nil)
	}
	d.pending.Store(0)
}
