// Copyright 2022 MaoLongLong. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package byteq

import "sync/atomic"

// busy-flag states. A node's busy flag serializes the claim step between
// concurrent dequeuers racing on the same candidate node; it plays no part
// in enqueue.
const (
	free  uint32 = 0
	held  uint32 = 1
)

// node is a single element of the queue's doubly linked list. Sentinels
// (head and tail) are nodes with a nil payload and a stable identity for
// the lifetime of the Queue; non-sentinel nodes are allocated by Enqueue
// and retired by the dequeuer that claims them.
type node struct {
	payload []byte

	next atomic.Pointer[node]
	prev atomic.Pointer[node]
	busy atomic.Uint32

	// retiredNext links a node into the reclaimer's retired-node stack
	// (see reclaim.go). It is only ever touched once a node has left the
	// live chain; next/prev remain the sole links while a node is live.
	retiredNext atomic.Pointer[node]
}

// newNode allocates a detached node carrying a private copy of payload.
// The copy is made here, not by the caller, so that mutating the caller's
// slice after Enqueue returns can never be observed by a dequeuer.
func newNode(payload []byte) *node {
	n := &node{}
	if len(payload) > 0 {
		n.payload = append([]byte(nil), payload...)
	}
	return n
}

// claim attempts to move the node from free to held, returning whether the
// caller won the race. Only a dequeuer that has already observed this node
// as head.next calls claim; losing it means another dequeuer is ahead.
func (n *node) claim() bool {
	return n.busy.CompareAndSwap(free, held)
}

// release moves the node back to free. Called either after a dequeuer
// loses the HEAD-advance race (the node stays live for a future dequeuer)
// or after a successful HEAD advance, just before the node is retired.
func (n *node) release() {
	n.busy.Store(free)
}
