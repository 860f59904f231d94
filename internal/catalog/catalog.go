// Package catalog holds the static defect catalog: the signatures each sensing
// subsystem reports for a defect type, the monitored pipeline locations, and
// the operator knowledge base used for briefings and chat context.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/irisdrone/pipewatch/internal/risk"
	"gopkg.in/yaml.v3"
)

//go:embed defects.yaml
var defectsYAML []byte

// Signature is one observable sign of a defect and the sensor reporting it.
type Signature struct {
	Sign   string `yaml:"sign" json:"sign"`
	Source string `yaml:"source" json:"source"`
}

// AgreementCase describes which subsystems currently report a defect.
type AgreementCase string

const (
	BothAgree        AgreementCase = "both_agree"
	ControlIndicates AgreementCase = "control_indicates"
	DroneIndicates   AgreementCase = "drone_indicates"
)

// Assessment is the guidance attached to one agreement case.
type Assessment struct {
	Confidence  string `yaml:"confidence" json:"confidence"`
	Message     string `yaml:"message" json:"message"`
	Instruction string `yaml:"instruction" json:"instruction"`
}

// ActionGroup is a named list of recommended operator actions.
type ActionGroup struct {
	Category string   `yaml:"category" json:"category"`
	Actions  []string `yaml:"actions" json:"actions"`
}

// Knowledge is the operator guidance for one defect type.
type Knowledge struct {
	ActionLevel           string                       `yaml:"action_level" json:"actionLevel"`
	ActionDescription     string                       `yaml:"action_description" json:"actionDescription"`
	PrimaryRecommendation string                       `yaml:"primary_recommendation" json:"primaryRecommendation"`
	ProblemDetail         string                       `yaml:"problem_detail" json:"problemDetail"`
	Causes                []string                     `yaml:"causes" json:"causes"`
	DetailedActions       []ActionGroup                `yaml:"detailed_actions" json:"detailedActions"`
	UIMessage             string                       `yaml:"ui_message" json:"uiMessage"`
	Agreement             map[AgreementCase]Assessment `yaml:"agreement" json:"agreement"`
}

// Defect is the catalog entry for one defect type.
type Defect struct {
	Type          risk.DefectType `yaml:"type" json:"type"`
	ControlSystem []Signature     `yaml:"control_system" json:"controlSystem"`
	Drone         []Signature     `yaml:"drone" json:"drone"`
	Knowledge     Knowledge       `yaml:"knowledge" json:"knowledge"`
}

// Corroborable reports whether both subsystems can observe this defect.
func (d Defect) Corroborable() bool {
	return len(d.ControlSystem) > 0 && len(d.Drone) > 0
}

// Catalog is the full set of defect entries and monitored locations.
type Catalog struct {
	Locations []string `yaml:"locations"`
	Defects   []Defect `yaml:"defects"`

	byType map[risk.DefectType]int
}

// Parse decodes a catalog document and checks it against the risk table.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse defect catalog: %w", err)
	}
	if len(c.Locations) == 0 {
		return nil, fmt.Errorf("defect catalog has no locations")
	}

	c.byType = make(map[risk.DefectType]int, len(c.Defects))
	for i, d := range c.Defects {
		if !risk.Known(d.Type) {
			return nil, fmt.Errorf("defect catalog entry %q is not a known defect type", d.Type)
		}
		if _, dup := c.byType[d.Type]; dup {
			return nil, fmt.Errorf("defect catalog entry %q is duplicated", d.Type)
		}
		c.byType[d.Type] = i
	}
	return &c, nil
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the embedded catalog. It panics if the embedded document is
// malformed, which the package tests guard against.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(defectsYAML)
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultCat
}

// Lookup returns the entry for t.
func (c *Catalog) Lookup(t risk.DefectType) (Defect, bool) {
	i, ok := c.byType[t]
	if !ok {
		return Defect{}, false
	}
	return c.Defects[i], true
}

// Corroborable returns the entries observable by both subsystems, in catalog
// order.
func (c *Catalog) Corroborable() []Defect {
	out := make([]Defect, 0, len(c.Defects))
	for _, d := range c.Defects {
		if d.Corroborable() {
			out = append(out, d)
		}
	}
	return out
}

// ControlSigns returns every control-system sign in the catalog.
func (c *Catalog) ControlSigns() []string {
	var out []string
	for _, d := range c.Defects {
		for _, s := range d.ControlSystem {
			out = append(out, s.Sign)
		}
	}
	return out
}

// DroneSigns returns every drone sign in the catalog.
func (c *Catalog) DroneSigns() []string {
	var out []string
	for _, d := range c.Defects {
		for _, s := range d.Drone {
			out = append(out, s.Sign)
		}
	}
	return out
}
