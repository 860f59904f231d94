package detection

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/irisdrone/pipewatch/internal/catalog"
	"github.com/irisdrone/pipewatch/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRand replays fixed values and fails the test when it runs dry.
type scriptedRand struct {
	t      *testing.T
	ints   []int
	floats []float64
}

func (s *scriptedRand) IntN(n int) int {
	require.NotEmpty(s.t, s.ints, "scriptedRand: out of ints")
	v := s.ints[0]
	s.ints = s.ints[1:]
	require.Less(s.t, v, n)
	return v
}

func (s *scriptedRand) Float64() float64 {
	require.NotEmpty(s.t, s.floats, "scriptedRand: out of floats")
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func TestNewSnapshot_StatusMatchesDetections(t *testing.T) {
	s := NewSnapshot([]RawDetection{{DefectType: risk.MajorSuddenLeak, Location: "Section A-B"}}, nil, 1)

	assert.Equal(t, StatusDetected, s.ControlSystem.Status)
	assert.Equal(t, StatusOK, s.Drone.Status)
	assert.NotNil(t, s.Drone.Detections)
	assert.True(t, s.HasDetections())
	assert.False(t, Empty().HasDetections())
}

func TestNormalize_RepairsStatus(t *testing.T) {
	s := Snapshot{
		ControlSystem: SubsystemReading{Status: StatusDetected},
		Drone: SubsystemReading{
			Status:     StatusOK,
			Detections: []RawDetection{{DefectType: risk.CorrosionErosion, Location: "Branch Line"}},
		},
	}.Normalize()

	assert.Equal(t, StatusOK, s.ControlSystem.Status)
	assert.Equal(t, StatusDetected, s.Drone.Status)
}

func TestGenerator_NoIssue(t *testing.T) {
	g := NewGenerator(&scriptedRand{t: t, floats: []float64{0.85}})

	s := g.Generate()

	assert.Equal(t, Empty(), s)
}

func TestGenerator_ScriptedScenario(t *testing.T) {
	cat := catalog.Default()
	// Candidate index 0 is Major/Sudden Leak, location 4 is Station Area,
	// control sign 1 is the mass-flow imbalance, drone sign 2 is thermal.
	rnd := &scriptedRand{t: t, floats: []float64{0.1}, ints: []int{0, 0, 4, 1, 2}}
	g := NewGenerator(rnd, WithCatalog(cat))

	s := g.Generate()

	want := NewSnapshot(
		[]RawDetection{{
			DefectType: risk.MajorSuddenLeak,
			Sign:       "Imbalance mass flow",
			Source:     "FT",
			Location:   "Station Area",
		}},
		[]RawDetection{{
			DefectType: risk.MajorSuddenLeak,
			Sign:       "Distinct thermal anomaly on the ground",
			Source:     "Thermal imaging camera",
			Location:   "Station Area",
		}},
		1,
	)
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Generate() mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerator_SubsystemsAlwaysAgree(t *testing.T) {
	g := NewGenerator(NewSeededRand(42))

	for i := 0; i < 500; i++ {
		s := g.Generate()
		require.Len(t, s.Drone.Detections, len(s.ControlSystem.Detections))
		assert.Equal(t, s.TotalCount, len(s.ControlSystem.Detections))
		assert.LessOrEqual(t, s.TotalCount, 3)

		for j, c := range s.ControlSystem.Detections {
			d := s.Drone.Detections[j]
			assert.Equal(t, c.DefectType, d.DefectType)
			assert.Equal(t, c.Location, d.Location)
			assert.NotEqual(t, risk.MechanicalDamage, c.DefectType)
		}
	}
}

func TestGenerator_ProbabilityBounds(t *testing.T) {
	never := NewGenerator(NewSeededRand(7), WithIssueProbability(-1))
	always := NewGenerator(NewSeededRand(7), WithIssueProbability(2))

	for i := 0; i < 100; i++ {
		assert.False(t, never.Generate().HasDetections())
		assert.True(t, always.Generate().HasDetections())
	}
}

func TestGenerator_SeedIsDeterministic(t *testing.T) {
	a := NewGenerator(NewSeededRand(99))
	b := NewGenerator(NewSeededRand(99))

	for i := 0; i < 20; i++ {
		if diff := cmp.Diff(a.Generate(), b.Generate()); diff != "" {
			t.Fatalf("seeded generators diverged at %d:\n%s", i, diff)
		}
	}
}

func TestGenerator_AcquireHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGenerator(NewSeededRand(1)).Acquire(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecode(t *testing.T) {
	raw := []byte(`{
		"control_system": {"status": "ok", "detections": [
			{"defect_type": "Major/Sudden Leak", "sign": "High pressure drop", "source": "PT", "location": "Section A-B"}
		]},
		"drone": {"status": "ok", "detections": null},
		"total_leakages": 1
	}`)

	s, err := Decode(raw)

	require.NoError(t, err)
	assert.Equal(t, StatusDetected, s.ControlSystem.Status)
	assert.Equal(t, StatusOK, s.Drone.Status)
	assert.Equal(t, 1, s.TotalCount)
}

func TestDecode_RejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"missing drone":    `{"control_system": {"status": "ok"}}`,
		"bad status":       `{"control_system": {"status": "maybe"}, "drone": {"status": "ok"}}`,
		"missing location": `{"control_system": {"status": "detected", "detections": [{"defect_type": "Mechanical Damage"}]}, "drone": {"status": "ok"}}`,
		"negative total":   `{"control_system": {"status": "ok"}, "drone": {"status": "ok"}, "total_leakages": -1}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestFingerprint(t *testing.T) {
	g := NewGenerator(NewSeededRand(5), WithIssueProbability(1))
	s := g.Generate()

	a, err := Fingerprint(s)
	require.NoError(t, err)

	// Round-tripping through JSON must not change the fingerprint.
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	decoded, err := Decode(raw)
	require.NoError(t, err)
	b, err := Fingerprint(decoded)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	other, err := Fingerprint(Empty())
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}
