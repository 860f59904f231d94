package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_KnownTypes(t *testing.T) {
	tests := []struct {
		defect DefectType
		want   Level
	}{
		{MajorSuddenLeak, Critical},
		{MinorGradualLeak, Warning},
		{CorrosionErosion, Low},
		{MechanicalDamage, Critical},
		{InsulationCoatingFailure, Low},
		{PoorPipeSupport, Warning},
	}

	for _, tt := range tests {
		t.Run(string(tt.defect), func(t *testing.T) {
			c := Classify(tt.defect)
			assert.Equal(t, tt.want, c.Level)
			assert.NotEmpty(t, c.Label)
			assert.NotEqual(t, "Unknown", c.Label)
			assert.True(t, Known(tt.defect))
		})
	}
}

func TestClassify_UnknownFallsBackToWarning(t *testing.T) {
	c := Classify("Alien Abduction")

	assert.Equal(t, Warning, c.Level)
	assert.Equal(t, "Unknown", c.Label)
	assert.False(t, Known("Alien Abduction"))
}

func TestTypes_CoversTable(t *testing.T) {
	types := Types()

	assert.Len(t, types, len(table))
	for _, dt := range types {
		assert.True(t, Known(dt), "type %q missing from table", dt)
	}
}
