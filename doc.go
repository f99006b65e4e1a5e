// Copyright 2022 MaoLongLong. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

/*
Package byteq implements a lock-free, FIFO queue of variable-length byte
payloads, backed by a doubly linked list with HEAD/TAIL sentinels.

See H. Sundell and P. Tsigas, "Lock-Free and Practical Doubly Linked
List-Based Deques Using Single-Word Compare-and-Swap", OPODIS 2004, for the
family of algorithms this queue belongs to: forward links are always kept
consistent by CAS, while backward links are allowed to lag and are fixed up
after the fact, which is why IsEmpty and traversal never treat prev as
authoritative.

Non-Blocking Concurrent Queue (splice-before-TAIL / advance-past-HEAD):

	structure node_t {payload: []byte, next: atomic *node_t, prev: atomic *node_t, busy: atomic bool}
	structure queue_t {head: *node_t, tail: *node_t, size, maxSize, enqueued, dequeued, enqRetry, deqRetry: atomic}

	enqueue(Q, payload)
	   new = allocate_node(payload)
	   loop
	      p = load(Q.tail.prev)
	      new.next = Q.tail; new.prev = p
	      if CAS(&p.next, Q.tail, new)
	         store(&Q.tail.prev, new)
	         bump size, maxSize, enqueued
	         return success
	      bump enqRetry

	dequeue(Q)
	   loop
	      f = load(Q.head.next)
	      if f == Q.tail
	         return Empty
	      if !CAS(&f.busy, free, held)
	         bump deqRetry; continue
	      n = load(f.next)
	      if CAS(&Q.head.next, f, n)
	         if n != Q.tail: store(&n.prev, Q.head) else store(&Q.tail.prev, Q.head)
	         bump size (down), dequeued
	         clear f.busy; retire(f)
	         return f.payload
	      clear f.busy; bump deqRetry

Node reclamation uses hazard pointers (see reclaim.go): a dequeuer publishes
the address of the node it is about to dereference before touching it, and a
retired node is only released once a scan of all published hazard pointers
confirms nothing still protects it. Because the Go runtime is garbage
collected, "release" here means dropping byteq's own retired-node
bookkeeping reference, not calling a manual allocator free — the scan exists
to prevent a concurrent reader from observing a node whose fields have
already been reused for something else, which hazard pointers guarantee by
construction rather than by relying on the collector's timing.
*/
package byteq // import "go.forge.dev/byteq"
