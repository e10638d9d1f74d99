package pipeline

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetrySetInsertIsIdempotent(t *testing.T) {
	s := NewRetrySet()
	e := RetryEntry{Account: "a", MessageID: "m"}

	s.Insert(e)
	s.Insert(e)

	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains(e))
}

func TestRetrySetDrainClears(t *testing.T) {
	s := NewRetrySet()
	s.Insert(RetryEntry{Account: "a", MessageID: "m1"})
	s.Insert(RetryEntry{Account: "a", MessageID: "m2"})

	drained := s.Drain()
	assert.Len(t, drained, 2)
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Drain())
}

func TestRetrySetConcurrentAccess(t *testing.T) {
	s := NewRetrySet()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Insert(RetryEntry{Account: "a", MessageID: fmt.Sprintf("m%d", n)})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())

	// Concurrent drains must hand every entry to exactly one caller.
	results := make(chan []RetryEntry, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Drain()
		}()
	}
	wg.Wait()
	close(results)

	total := 0
	for batch := range results {
		total += len(batch)
	}
	assert.Equal(t, 50, total)
	assert.Zero(t, s.Len())
}
