// Package risk maps pipeline defect types to their operational risk level.
package risk

// DefectType identifies a known pipeline failure category. Values are the
// wire names used by the detection API.
type DefectType string

const (
	MajorSuddenLeak          DefectType = "Major/Sudden Leak"
	MinorGradualLeak         DefectType = "Minor/Gradual Leak"
	CorrosionErosion         DefectType = "Corrosion & Erosion"
	MechanicalDamage         DefectType = "Mechanical Damage"
	InsulationCoatingFailure DefectType = "Insulation/Coating Failure"
	PoorPipeSupport          DefectType = "Poor Pipe Support"
)

// Level enum
type Level string

const (
	Critical Level = "critical"
	Warning  Level = "warning"
	Low      Level = "low"
)

// Classification is the display and triage information for a defect type.
type Classification struct {
	Level             Level  `json:"level"`
	Label             string `json:"label"`
	Icon              string `json:"icon"`
	Color             string `json:"color"`
	RecommendedAction string `json:"recommendedAction"`
}

var (
	critical = Classification{
		Level:             Critical,
		Label:             "Critical",
		Icon:              "alert-octagon",
		Color:             "#dc2626",
		RecommendedAction: "Immediate action required",
	}
	warning = Classification{
		Level:             Warning,
		Label:             "Warning",
		Icon:              "alert-triangle",
		Color:             "#f59e0b",
		RecommendedAction: "Enhanced monitoring and targeted inspection",
	}
	low = Classification{
		Level:             Low,
		Label:             "Low",
		Icon:              "info",
		Color:             "#16a34a",
		RecommendedAction: "Schedule preventive maintenance",
	}

	// unknown is returned for types outside the table.
	unknown = Classification{
		Level:             Warning,
		Label:             "Unknown",
		Icon:              "help-circle",
		Color:             "#6b7280",
		RecommendedAction: "Manual review required",
	}
)

var table = map[DefectType]Classification{
	MajorSuddenLeak:          critical,
	MinorGradualLeak:         warning,
	CorrosionErosion:         low,
	MechanicalDamage:         critical,
	InsulationCoatingFailure: low,
	PoorPipeSupport:          warning,
}

// Classify returns the classification for t. Unrecognized types fall back to
// a Warning level labelled "Unknown".
func Classify(t DefectType) Classification {
	if c, ok := table[t]; ok {
		return c
	}
	return unknown
}

// Known reports whether t is one of the catalogued defect types.
func Known(t DefectType) bool {
	_, ok := table[t]
	return ok
}

// Types returns every known defect type in a stable order.
func Types() []DefectType {
	return []DefectType{
		MajorSuddenLeak,
		MinorGradualLeak,
		CorrosionErosion,
		MechanicalDamage,
		InsulationCoatingFailure,
		PoorPipeSupport,
	}
}
