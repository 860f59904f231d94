package catalog

import (
	"fmt"
	"strings"

	"github.com/irisdrone/pipewatch/internal/risk"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// negativeSigns are subsystem readings that do not count as a detection.
var negativeSigns = map[string]bool{
	"":             true,
	"unknown":      true,
	"none":         true,
	"n/a":          true,
	"ok":           true,
	"normal":       true,
	"no":           true,
	"negative":     true,
	"not detected": true,
}

// positive reports whether a subsystem reading counts as a detection. Besides
// the literal flags ("detected", "confirmed", ...) any concrete signature text
// counts, since registry entries carry the matched sign itself.
func positive(sign string) bool {
	return !negativeSigns[strings.ToLower(strings.TrimSpace(sign))]
}

// AgreementCaseFor picks the agreement case for a pair of subsystem readings.
// When neither subsystem reports anything the defect came from the registry,
// which only admits corroborated entries, so it is treated as BothAgree.
func AgreementCaseFor(controlSign, droneSign string) AgreementCase {
	c, d := positive(controlSign), positive(droneSign)
	switch {
	case c && d:
		return BothAgree
	case c:
		return ControlIndicates
	case d:
		return DroneIndicates
	default:
		return BothAgree
	}
}

// Finding identifies one defect occurrence for a briefing.
type Finding struct {
	Type        risk.DefectType
	Location    string
	Severity    string
	ControlSign string
	DroneSign   string
}

func (f Finding) signs() (string, string) {
	c, d := f.ControlSign, f.DroneSign
	if c == "" {
		c = "Unknown"
	}
	if d == "" {
		d = "Unknown"
	}
	return c, d
}

func categoryTitle(category string) string {
	words := strings.Split(category, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func section(b *strings.Builder, title string) {
	fmt.Fprintf(b, "%s\n**%s**\n%s\n\n", rule, title, rule)
}

// Briefing renders the detailed defect analysis shown when an operator opens
// a defect. Unknown types get a one-line notice.
func (c *Catalog) Briefing(f Finding) string {
	d, ok := c.Lookup(f.Type)
	if !ok {
		return fmt.Sprintf("Defect type '%s' information not available.", f.Type)
	}
	k := d.Knowledge
	controlSign, droneSign := f.signs()

	var b strings.Builder
	section(&b, "DEFECT ANALYSIS: "+string(f.Type))
	fmt.Fprintf(&b, "**📍 Location:** %s\n", f.Location)
	fmt.Fprintf(&b, "**⚠️ Severity:** %s\n", f.Severity)
	fmt.Fprintf(&b, "**🎯 Action Level:** %s\n\n", k.ActionLevel)

	section(&b, "🔍 PROBLEM DETAIL")
	b.WriteString(k.ProblemDetail + "\n\n")

	section(&b, "💡 WHAT CAUSES THIS PROBLEM")
	b.WriteString("Common causes include:\n")
	for i, cause := range k.Causes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, cause)
	}
	b.WriteString("\n")

	section(&b, "📋 RECOMMENDED ACTIONS")
	fmt.Fprintf(&b, "**Primary Recommendation:**\n%s\n", k.PrimaryRecommendation)
	for _, group := range k.DetailedActions {
		fmt.Fprintf(&b, "\n**%s:**\n", categoryTitle(group.Category))
		for _, action := range group.Actions {
			fmt.Fprintf(&b, "• %s\n", action)
		}
	}
	b.WriteString("\n")

	if a, ok := k.Agreement[AgreementCaseFor(f.ControlSign, f.DroneSign)]; ok {
		section(&b, "📊 DATA AGREEMENT ANALYSIS")
		fmt.Fprintf(&b, "**Control System:** %s\n", controlSign)
		fmt.Fprintf(&b, "**Drone Status:** %s\n\n", droneSign)
		fmt.Fprintf(&b, "**AI Confidence:** %s\n", a.Confidence)
		fmt.Fprintf(&b, "**Assessment:** %s\n", a.Message)
		fmt.Fprintf(&b, "**Operator Instruction:** %s\n\n", a.Instruction)
	}

	b.WriteString(rule + "\n\n")
	b.WriteString("**❓ How can I help you further?**\n\n")
	b.WriteString("You can ask me:\n")
	for _, topic := range []string{
		"Specific repair procedures",
		"Required tools and materials",
		"Safety precautions",
		"Time and resource estimates",
		"Regulatory compliance requirements",
		"Any other questions about addressing this defect",
	} {
		fmt.Fprintf(&b, "• %s\n", topic)
	}

	return strings.TrimSpace(b.String())
}

// ContextPrompt renders the specialist context appended to the chat system
// prompt for follow-up questions about one defect. It returns "" for unknown
// types.
func (c *Catalog) ContextPrompt(f Finding) string {
	d, ok := c.Lookup(f.Type)
	if !ok {
		return ""
	}
	k := d.Knowledge
	a := k.Agreement[AgreementCaseFor(f.ControlSign, f.DroneSign)]
	controlSign, droneSign := f.signs()

	var b strings.Builder
	fmt.Fprintf(&b, "%s\nDEFECT SPECIALIST MODE - ENHANCED CONTEXT\n%s\n\n", rule, rule)
	b.WriteString("You are a pipeline repair and maintenance specialist consulting with an operator about a specific defect.\n\n")

	b.WriteString("**Defect Information:**\n")
	fmt.Fprintf(&b, "- Type: %s\n", f.Type)
	fmt.Fprintf(&b, "- Location: %s\n", f.Location)
	fmt.Fprintf(&b, "- Severity: %s\n", f.Severity)
	fmt.Fprintf(&b, "- Control System Status: %s\n", controlSign)
	fmt.Fprintf(&b, "- Drone Status: %s\n\n", droneSign)

	fmt.Fprintf(&b, "**Action Level:** %s\n", k.ActionLevel)
	fmt.Fprintf(&b, "**Primary Recommendation:** %s\n\n", k.PrimaryRecommendation)

	b.WriteString("**Known Causes:**\n")
	for _, cause := range k.Causes {
		fmt.Fprintf(&b, "• %s\n", cause)
	}
	b.WriteString("\n")

	b.WriteString("**Data Agreement Assessment:**\n")
	fmt.Fprintf(&b, "- AI Confidence: %s\n", orNA(a.Confidence))
	fmt.Fprintf(&b, "- Status: %s\n", orNA(a.Message))
	fmt.Fprintf(&b, "- Instruction: %s\n\n", orNA(a.Instruction))

	b.WriteString(`**CRITICAL INSTRUCTIONS:**
1. The operator has already received the initial detailed problem analysis
2. Answer follow-up questions within the context of THIS SPECIFIC DEFECT
3. Provide practical, actionable advice based on the defect type and severity
4. ALWAYS respond in the SAME language as the operator's question
5. Focus on repair procedures, safety, tools, materials, and compliance
6. If the question is outside the scope of this defect, politely redirect to the defect context

**Response Guidelines:**
- Be specific and practical
- Prioritize safety and pipeline integrity
- Reference the defect's known causes and recommended actions
- Provide step-by-step guidance when appropriate
- Include resource requirements (time, materials, personnel)
- Address regulatory and compliance considerations when relevant
`)

	return strings.TrimSpace(b.String())
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
