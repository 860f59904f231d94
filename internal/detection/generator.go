package detection

import (
	"context"

	"github.com/irisdrone/pipewatch/internal/catalog"
)

const (
	DefaultIssueProbability = 0.8
	maxScenarios            = 3
)

// Generator produces synthetic snapshots in which both subsystems always
// agree on every scenario.
type Generator struct {
	cat         *catalog.Catalog
	rnd         RandSource
	probability float64
	candidates  []catalog.Defect
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithIssueProbability sets the chance that a snapshot contains detections.
// Values outside [0, 1] are clamped.
func WithIssueProbability(p float64) GeneratorOption {
	return func(g *Generator) {
		switch {
		case p < 0:
			p = 0
		case p > 1:
			p = 1
		}
		g.probability = p
	}
}

// WithCatalog replaces the embedded defect catalog.
func WithCatalog(c *catalog.Catalog) GeneratorOption {
	return func(g *Generator) { g.cat = c }
}

// NewGenerator returns a generator drawing from rnd.
func NewGenerator(rnd RandSource, opts ...GeneratorOption) *Generator {
	g := &Generator{
		rnd:         rnd,
		probability: DefaultIssueProbability,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.cat == nil {
		g.cat = catalog.Default()
	}
	g.candidates = g.cat.Corroborable()
	return g
}

// Generate returns the next synthetic snapshot.
func (g *Generator) Generate() Snapshot {
	if len(g.candidates) == 0 || g.rnd.Float64() >= g.probability {
		return Empty()
	}

	n := 1 + g.rnd.IntN(maxScenarios)
	control := make([]RawDetection, 0, n)
	drone := make([]RawDetection, 0, n)

	for range n {
		d := g.candidates[g.rnd.IntN(len(g.candidates))]
		location := g.cat.Locations[g.rnd.IntN(len(g.cat.Locations))]
		cs := d.ControlSystem[g.rnd.IntN(len(d.ControlSystem))]
		ds := d.Drone[g.rnd.IntN(len(d.Drone))]

		control = append(control, RawDetection{
			DefectType: d.Type,
			Sign:       cs.Sign,
			Source:     cs.Source,
			Location:   location,
		})
		drone = append(drone, RawDetection{
			DefectType: d.Type,
			Sign:       ds.Sign,
			Source:     ds.Source,
			Location:   location,
		})
	}

	return NewSnapshot(control, drone, n)
}

// Acquire implements Acquirer. It only fails when ctx is already done.
func (g *Generator) Acquire(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	return g.Generate(), nil
}
