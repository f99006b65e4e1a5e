// Copyright 2022 MaoLongLong. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package byteq

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTagged(threadID, i int) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(threadID)*1000+uint64(i))
	return b
}

// S7 — 10 concurrent producers x 100 payloads, then, once every producer
// has finished, 10 concurrent consumers; no loss, no duplication, and the
// queue drains to empty with matching totals. Producers and consumers
// running at the same time are covered by
// TestNoLossNoDuplicationUnderInterleaving.
func TestConcurrentProducersConsumers(t *testing.T) {
	const (
		producers    = 10
		perProducer  = 100
		consumers    = 10
		totalPayload = producers * perProducer
	)

	q := New()

	var produceWG sync.WaitGroup
	for p := 0; p < producers; p++ {
		produceWG.Add(1)
		go func(id int) {
			defer produceWG.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, q.Enqueue(encodeTagged(id, i)))
			}
		}(p)
	}
	produceWG.Wait()

	require.Equal(t, int64(totalPayload), q.Size())
	require.Equal(t, uint64(totalPayload), q.Stats().EnqueuedTotal)

	seen := make([]int64, producers*perProducer)
	var consumed atomic.Int64

	var consumeWG sync.WaitGroup
	for c := 0; c < consumers; c++ {
		consumeWG.Add(1)
		go func() {
			defer consumeWG.Done()
			for {
				payload, err := q.Dequeue()
				if err != nil {
					return
				}
				v := binary.LittleEndian.Uint64(payload)
				threadID, i := v/1000, v%1000
				idx := int(threadID)*perProducer + int(i)
				if !assert.Less(t, idx, len(seen)) {
					continue
				}
				atomic.AddInt64(&seen[idx], 1)
				consumed.Add(1)
			}
		}()
	}
	consumeWG.Wait()

	assert.Equal(t, int64(totalPayload), consumed.Load())
	assert.Equal(t, int64(0), q.Size())
	assert.Equal(t, uint64(totalPayload), q.Stats().DequeuedTotal)
	assert.Equal(t, uint64(totalPayload), q.Stats().EnqueuedTotal)

	for idx, count := range seen {
		assert.Equalf(t, int64(1), count, "payload %d seen %d times, want exactly 1", idx, count)
	}
}

// Interleaved producers and consumers: no payload is lost or duplicated
// across the run, whether dequeued or still resident at quiescence.
func TestNoLossNoDuplicationUnderInterleaving(t *testing.T) {
	const (
		producers   = 8
		perProducer = 200
		consumers   = 4
	)

	q := New()
	seen := make([]int64, producers*perProducer)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, q.Enqueue(encodeTagged(id, i)))
			}
		}(p)
	}

	stop := make(chan struct{})
	var consumeWG sync.WaitGroup
	for c := 0; c < consumers; c++ {
		consumeWG.Add(1)
		go func() {
			defer consumeWG.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				payload, err := q.Dequeue()
				if err != nil {
					continue
				}
				v := binary.LittleEndian.Uint64(payload)
				threadID, i := v/1000, v%1000
				idx := int(threadID)*perProducer + int(i)
				if !assert.Less(t, idx, len(seen)) {
					continue
				}
				prev := atomic.AddInt64(&seen[idx], 1)
				assert.Equal(t, int64(1), prev, "duplicate dequeue of payload %d", idx)
			}
		}()
	}

	wg.Wait()

	// Drain what remains, then stop consumers.
	for {
		payload, err := q.Dequeue()
		if err != nil {
			break
		}
		v := binary.LittleEndian.Uint64(payload)
		threadID, i := v/1000, v%1000
		idx := int(threadID)*perProducer + int(i)
		prev := atomic.AddInt64(&seen[idx], 1)
		require.Equal(t, int64(1), prev, "duplicate dequeue of payload %d", idx)
	}
	close(stop)
	consumeWG.Wait()

	for idx, count := range seen {
		assert.Equalf(t, int64(1), count, "payload %d accounted %d times, want exactly 1", idx, count)
	}
	assert.Equal(t, int64(0), q.Size())
}
