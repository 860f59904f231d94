package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDAllocator_StartsAboveSeed(t *testing.T) {
	a := NewIDAllocator()

	assert.Equal(t, "DEF-100", a.Next())
	assert.Equal(t, "DEF-101", a.Next())
}

func TestIDAllocator_Observe(t *testing.T) {
	a := NewIDAllocator()

	a.Observe("DEF-012")
	assert.Equal(t, "DEF-100", a.Next())

	a.Observe("DEF-250")
	a.Observe("DEF-120")
	a.Observe("EVT-20250101")
	a.Observe("DEF-")
	assert.Equal(t, "DEF-251", a.Next())
}

func TestIDAllocator_Concurrent(t *testing.T) {
	a := NewIDAllocator()
	const n = 200

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := a.Next()
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, n)
}

func TestParseID(t *testing.T) {
	n, ok := ParseID("DEF-042")
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	n, ok = ParseID("DEF-1234")
	assert.True(t, ok)
	assert.Equal(t, 1234, n)

	_, ok = ParseID("DEF-x1")
	assert.False(t, ok)
	_, ok = ParseID("42")
	assert.False(t, ok)
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]Status{
		"pending":     StatusPending,
		"progress":    StatusInProgress,
		"inProgress":  StatusInProgress,
		"in_progress": StatusInProgress,
		"resolved":    StatusResolved,
	} {
		got, err := ParseStatus(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStatus("closed")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSeed(t *testing.T) {
	reg := Seed()

	assert.Len(t, reg, 12)
	assertOrdered(t, reg)
	ids := map[string]bool{}
	for _, d := range reg {
		assert.False(t, d.Active())
		assert.NotEmpty(t, d.RiskLabel)
		n, ok := ParseID(d.ID)
		assert.True(t, ok)
		assert.Less(t, n, FirstAllocatedID)
		ids[d.ID] = true
	}
	assert.Len(t, ids, 12)
}
