package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/irisdrone/pipewatch/internal/detection"
	"github.com/irisdrone/pipewatch/internal/registry"
	"github.com/irisdrone/pipewatch/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"abc", 5, "abc  "},
		{"abcdef", 4, "abc…"},
		{"exact", 5, "exact"},
	}
	for _, tt := range tests {
		got := cell(tt.in, tt.width)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.width, lipgloss.Width(got))
	}
}

func TestRenderer_Registry(t *testing.T) {
	at := time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)
	defects := registry.Seed()
	defects[0].LastDetectedAt = &at

	var buf bytes.Buffer
	newRenderer(&buf, false).Registry(defects, at)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, len(defects)+2)
	assert.True(t, strings.HasPrefix(lines[0], "ID "))
	assert.Contains(t, lines[1], defects[0].ID)
	assert.Contains(t, lines[1], "Critical")
	assert.Contains(t, lines[1], "✓ resolved")
	assert.Contains(t, lines[len(lines)-1], "12 entries, 1 active")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestRenderer_Empty(t *testing.T) {
	var buf bytes.Buffer
	newRenderer(&buf, false).Registry(nil, time.Now())

	assert.Contains(t, buf.String(), "No defects recorded")
}

func TestRenderer_Snapshot(t *testing.T) {
	snap := detection.NewSnapshot(
		[]detection.RawDetection{{DefectType: risk.MajorSuddenLeak, Sign: "High pressure drop", Source: "PT", Location: "Branch Line"}},
		nil,
		1,
	)

	var buf bytes.Buffer
	newRenderer(&buf, false).Snapshot(snap)

	out := buf.String()
	assert.Contains(t, out, "Control system  detected (1)")
	assert.Contains(t, out, "Drone           ok (0)")
	assert.Contains(t, out, "Scenarios       1")
}
