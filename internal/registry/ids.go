package registry

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

const (
	idPrefix = "DEF-"

	// FirstAllocatedID sits above the seeded DEF-001..DEF-012 range.
	FirstAllocatedID = 100
)

// IDAllocator hands out DEF-NNN identifiers. Ids are never reissued, even for
// entries that were truncated out of the registry.
type IDAllocator struct {
	mu   sync.Mutex
	next int
}

// NewIDAllocator returns an allocator whose first id is DEF-100.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: FirstAllocatedID}
}

// Next returns the next unused id.
func (a *IDAllocator) Next() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := FormatID(a.next)
	a.next++
	return id
}

// Observe moves the counter past id so restored entries are never shadowed.
// Ids that are not DEF-NNN are ignored.
func (a *IDAllocator) Observe(id string) {
	n, ok := ParseID(id)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if n >= a.next {
		a.next = n + 1
	}
}

// FormatID renders n as DEF-NNN.
func FormatID(n int) string {
	return fmt.Sprintf("%s%03d", idPrefix, n)
}

// ParseID extracts the sequence number from a DEF-NNN id.
func ParseID(id string) (int, bool) {
	digits, ok := strings.CutPrefix(id, idPrefix)
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
