package registry

import (
	"github.com/irisdrone/pipewatch/internal/risk"
)

type seedEntry struct {
	defectType                 risk.DefectType
	location, date             string
	status                     Status
	controlSign, controlSource string
	droneSign, droneSource     string
	confidence                 int
}

var seedEntries = []seedEntry{
	{risk.MajorSuddenLeak, "Section A-B", "2025-01-14", StatusResolved,
		"High pressure drop", "PT", "Detection of gas cloud", "Spectroscopic sensor", 96},
	{risk.MinorGradualLeak, "Station Area", "2025-01-12", StatusInProgress,
		"Small, persistent deviation in mass balance", "FT", "Consistently elevated gas concentration at a specific point", "Spectroscopic sensor", 91},
	{risk.CorrosionErosion, "Main Pipeline KM 12.5", "2025-01-10", StatusPending,
		"Decrease in pressure", "PT", "Visual signs of rust, coating damage, or corrosion on exposed pipe", "Visible spectrum camera", 88},
	{risk.InsulationCoatingFailure, "Branch Line", "2025-01-08", StatusResolved,
		"Increased heat loss", "TT", "Hot or cold spots along the pipe", "Thermal imaging camera", 90},
	{risk.PoorPipeSupport, "Section C-D", "2025-01-06", StatusInProgress,
		"Unusual vibrations", "Seismometer", "Identification of soil erosion or subsidence under the pipe", "Visible spectrum camera", 87},
	{risk.MajorSuddenLeak, "Main Pipeline KM 18.3", "2025-01-04", StatusResolved,
		"Imbalance mass flow", "FT", "Direct visual sighting of spill", "Visible spectrum camera", 98},
	{risk.MinorGradualLeak, "Section B-C", "2025-01-02", StatusResolved,
		"Slow pressure decline", "PT", "Gradual discoloration", "Visible spectrum camera", 86},
	{risk.CorrosionErosion, "Station Area", "2024-12-28", StatusResolved,
		"Decrease in pressure", "PT", "Visual signs of rust, coating damage, or corrosion on exposed pipe", "Visible spectrum camera", 89},
	{risk.InsulationCoatingFailure, "Section A-B", "2024-12-22", StatusResolved,
		"Increased heat loss", "TT", "Detection of insulation failures", "Visible spectrum camera", 92},
	{risk.PoorPipeSupport, "Main Pipeline KM 12.5", "2024-12-18", StatusResolved,
		"Unusual vibrations", "Seismometer", "Visual identification of loose, shifted, or broken pipe supports", "Visible spectrum camera", 85},
	{risk.MinorGradualLeak, "Branch Line", "2024-12-11", StatusResolved,
		"Slow pressure decline", "PT", "Long-term changes in soil temperature", "Thermal imaging camera", 93},
	{risk.MajorSuddenLeak, "Section C-D", "2024-12-03", StatusResolved,
		"High pressure drop", "PT", "Distinct thermal anomaly on the ground", "Thermal imaging camera", 97},
}

// Seed returns the historical registry DEF-001..DEF-012 used when no stored
// registry exists. None of the entries are active.
func Seed() []Defect {
	out := make([]Defect, 0, len(seedEntries))
	for i, e := range seedEntries {
		d := Defect{
			ID:                  FormatID(i + 1),
			DefectType:          e.defectType,
			Location:            e.location,
			FirstDetectedDate:   e.date,
			Status:              e.status,
			ControlSystemSign:   e.controlSign,
			ControlSystemSource: e.controlSource,
			DroneSign:           e.droneSign,
			DroneSource:         e.droneSource,
			AIConfidence:        e.confidence,
		}
		d.classify()
		out = append(out, d)
	}
	Sort(out)
	return out
}
