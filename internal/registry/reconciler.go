package registry

import (
	"slices"
	"strings"
	"time"

	"github.com/irisdrone/pipewatch/internal/detection"
)

const (
	minConfidence = 85
	maxConfidence = 99
)

// Reconciler merges snapshots into a registry. It is safe for concurrent use
// as long as its RandSource is.
type Reconciler struct {
	ids *IDAllocator
	rnd detection.RandSource
}

// NewReconciler returns a reconciler that allocates ids from ids and draws
// confidence scores from rnd.
func NewReconciler(ids *IDAllocator, rnd detection.RandSource) *Reconciler {
	return &Reconciler{ids: ids, rnd: rnd}
}

// Observe registers the ids of an existing registry with the allocator.
func (r *Reconciler) Observe(reg []Defect) {
	for _, d := range reg {
		r.ids.Observe(d.ID)
	}
}

type pair struct {
	control *detection.RawDetection
	drone   *detection.RawDetection
}

// Reconcile returns the registry that results from merging snap into reg at
// now. Only (location, type) pairs reported by both subsystems touch the
// registry. reg is not modified.
func (r *Reconciler) Reconcile(reg []Defect, snap detection.Snapshot, now time.Time) []Defect {
	out := Clone(reg)

	index := make(map[key]int, len(out))
	for i, d := range out {
		index[keyOf(d)] = i
	}

	pairs := make(map[key]*pair)
	var order []key
	lookup := func(d detection.RawDetection) *pair {
		k := key{location: d.Location, defectType: d.DefectType}
		p, ok := pairs[k]
		if !ok {
			p = &pair{}
			pairs[k] = p
			order = append(order, k)
		}
		return p
	}
	for _, d := range snap.ControlSystem.Detections {
		lookup(d).control = &d
	}
	for _, d := range snap.Drone.Detections {
		lookup(d).drone = &d
	}

	for _, k := range order {
		p := pairs[k]
		if p.control == nil || p.drone == nil {
			continue
		}

		i, ok := index[k]
		if !ok {
			out = append(out, Defect{
				ID:                r.ids.Next(),
				DefectType:        k.defectType,
				Location:          k.location,
				FirstDetectedDate: now.Format(DateLayout),
			})
			i = len(out) - 1
			index[k] = i
		}
		r.redetect(&out[i], p, now)
	}

	Sort(out)
	if len(out) > MaxRegistrySize {
		out = out[:MaxRegistrySize]
	}
	return out
}

func (r *Reconciler) redetect(d *Defect, p *pair, now time.Time) {
	at := now
	d.LastDetectedAt = &at
	d.classify()
	d.Status = statusFor(d.RiskLevel)
	d.ControlSystemSign = p.control.Sign
	d.ControlSystemSource = p.control.Source
	d.DroneSign = p.drone.Sign
	d.DroneSource = p.drone.Source
	d.AIConfidence = min(maxConfidence, minConfidence+r.rnd.IntN(10))
}

// Sort orders a registry in place: active entries first by LastDetectedAt
// descending, then the rest by FirstDetectedDate descending. The sort is
// stable.
func Sort(reg []Defect) {
	slices.SortStableFunc(reg, compare)
}

func compare(a, b Defect) int {
	switch {
	case a.Active() && b.Active():
		return b.LastDetectedAt.Compare(*a.LastDetectedAt)
	case a.Active():
		return -1
	case b.Active():
		return 1
	default:
		return strings.Compare(b.FirstDetectedDate, a.FirstDetectedDate)
	}
}
