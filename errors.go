// Copyright 2022 MaoLongLong. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package byteq

import "errors"

var (
	// ErrInvalidArgument is returned for a nil *Queue receiver. The C-style
	// "positive length with a nil payload pointer" case from spec.md §7
	// cannot arise through this API: a Go []byte already couples pointer
	// and length, so a non-nil length>0 slice cannot carry a nil backing
	// pointer.
	ErrInvalidArgument = errors.New("byteq: invalid argument")

	// ErrOutOfMemory is returned when copying a payload into the queue's
	// private buffer panics, which in practice means a payload length Go's
	// allocator refuses outright rather than true system memory
	// exhaustion (see SPEC_FULL.md §4.2).
	ErrOutOfMemory = errors.New("byteq: out of memory")

	// ErrEmpty is the distinguished non-error result of Dequeue finding no
	// live node at the moment of observation. Callers should compare with
	// errors.Is, not treat it as a retry signal.
	ErrEmpty = errors.New("byteq: queue is empty")

	// ErrClosed is returned by any operation on a Queue after Close has
	// run, and by a second call to Close itself.
	ErrClosed = errors.New("byteq: queue is closed")
)
