package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/irisdrone/pipewatch/internal/detection"
	"github.com/irisdrone/pipewatch/internal/registry"
	"github.com/irisdrone/pipewatch/internal/risk"
	"github.com/mattn/go-isatty"
)

var (
	colorAccent = lipgloss.Color("#20B9B4")
	colorMuted  = lipgloss.Color("#6b7280")
	colorOK     = lipgloss.Color("#16a34a")
	colorAlert  = lipgloss.Color("#dc2626")
)

type column struct {
	title string
	width int
}

var columns = []column{
	{"ID", 8},
	{"RISK", 9},
	{"STATUS", 10},
	{"DEFECT", 27},
	{"LOCATION", 22},
	{"FIRST SEEN", 11},
	{"LAST SEEN", 9},
	{"CONF", 4},
}

// renderer prints registry views. Without color every style is a no-op so
// piped output stays plain text.
type renderer struct {
	out   io.Writer
	color bool

	title  lipgloss.Style
	header lipgloss.Style
	muted  lipgloss.Style
	box    lipgloss.Style
}

func newRenderer(out io.Writer, color bool) *renderer {
	r := &renderer{
		out:    out,
		color:  color,
		title:  lipgloss.NewStyle(),
		header: lipgloss.NewStyle(),
		muted:  lipgloss.NewStyle(),
		box:    lipgloss.NewStyle(),
	}
	if color {
		r.title = r.title.Bold(true).Foreground(colorAccent)
		r.header = r.header.Bold(true).Underline(true)
		r.muted = r.muted.Foreground(colorMuted)
		r.box = r.box.Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent).Padding(0, 1)
	}
	return r
}

// stdoutRenderer colors output only when stdout is a terminal.
func stdoutRenderer(out io.Writer) *renderer {
	color := !rootFlags.noColor && os.Getenv("NO_COLOR") == ""
	if f, ok := out.(*os.File); !ok || !isTerminal(f) {
		color = false
	}
	return newRenderer(out, color)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *renderer) style(fg lipgloss.Color) lipgloss.Style {
	if !r.color {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(fg)
}

// cell truncates or pads s to width display cells.
func cell(s string, width int) string {
	if lipgloss.Width(s) > width {
		runes := []rune(s)
		for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
			runes = runes[:len(runes)-1]
		}
		s = string(runes) + "…"
	}
	return s + strings.Repeat(" ", width-lipgloss.Width(s))
}

func statusIcon(s registry.Status) string {
	switch s {
	case registry.StatusResolved:
		return "✓ resolved"
	case registry.StatusInProgress:
		return "◐ progress"
	default:
		return "○ pending"
	}
}

// Snapshot prints a one-line summary per subsystem.
func (r *renderer) Snapshot(snap detection.Snapshot) {
	line := func(name string, s detection.SubsystemReading) string {
		st := r.style(colorOK).Render(string(s.Status))
		if s.Status == detection.StatusDetected {
			st = r.style(colorAlert).Render(string(s.Status))
		}
		return fmt.Sprintf("%-15s %s (%d)", name, st, len(s.Detections))
	}
	body := strings.Join([]string{
		line("Control system", snap.ControlSystem),
		line("Drone", snap.Drone),
		fmt.Sprintf("%-15s %d", "Scenarios", snap.TotalCount),
	}, "\n")
	fmt.Fprintln(r.out, r.box.Render(body))
}

// Registry prints the registry as a table, newest activity first.
func (r *renderer) Registry(defects []registry.Defect, now time.Time) {
	var b strings.Builder
	for i, c := range columns {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(cell(c.title, c.width))
	}
	fmt.Fprintln(r.out, r.header.Render(b.String()))

	if len(defects) == 0 {
		fmt.Fprintln(r.out, r.muted.Render("No defects recorded"))
		return
	}

	for _, d := range defects {
		cls := risk.Classify(d.DefectType)
		last := "-"
		if d.LastDetectedAt != nil {
			last = d.LastDetectedAt.Local().Format("15:04:05")
		}
		cells := []string{
			cell(d.ID, columns[0].width),
			r.style(lipgloss.Color(cls.Color)).Render(cell(cls.Label, columns[1].width)),
			cell(statusIcon(d.Status), columns[2].width),
			cell(string(d.DefectType), columns[3].width),
			cell(d.Location, columns[4].width),
			cell(d.FirstDetectedDate, columns[5].width),
			cell(last, columns[6].width),
			cell(fmt.Sprintf("%d%%", d.AIConfidence), columns[7].width),
		}
		row := strings.Join(cells, " ")
		if !d.Active() {
			row = r.muted.Render(row)
		}
		fmt.Fprintln(r.out, row)
	}
	fmt.Fprintln(r.out, r.muted.Render(fmt.Sprintf("%d entries, %d active · %s", len(defects), countActive(defects), now.Local().Format(time.DateTime))))
}

// Update prints the view for one registry update.
func (r *renderer) Update(u registry.Update) {
	if r.color {
		// clear screen and home cursor
		fmt.Fprint(r.out, "\x1b[2J\x1b[H")
	}
	fmt.Fprintln(r.out, r.title.Render("Pipeline defect registry"))
	if u.Kind == registry.UpdateReconciled {
		r.Snapshot(u.Snapshot)
	}
	r.Registry(u.Defects, u.At)
}

func countActive(ds []registry.Defect) int {
	n := 0
	for _, d := range ds {
		if d.Active() {
			n++
		}
	}
	return n
}
