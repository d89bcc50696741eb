package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/randalmurphal/featureplus/internal/counts"
	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/hierarchy"
)

// styles colours terminal output. Styles are only applied when the writer
// is a terminal.
type styles struct {
	color bool

	title  lipgloss.Style
	subtle lipgloss.Style
	tag    lipgloss.Style
	ok     lipgloss.Style
	status map[entity.Status]lipgloss.Style
}

func newStyles(w io.Writer) styles {
	return styles{
		color: isTerminal(w),
		title: lipgloss.NewStyle().
			Bold(true),
		subtle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		tag: lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")),
		ok: lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")),
		status: map[entity.Status]lipgloss.Style{
			entity.StatusTodo:       lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
			entity.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			entity.StatusDone:       lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (s styles) paint(st lipgloss.Style, text string) string {
	if !s.color {
		return text
	}
	return st.Render(text)
}

// chips renders tags as "#a #b".
func (s styles) chips(tags []string) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = s.paint(s.tag, "#"+t)
	}
	return strings.Join(parts, " ")
}

func (s styles) statusLabel(st entity.Status) string {
	return s.paint(s.status[st], "["+string(st)+"]")
}

// featureLine renders "Title [status] #tags (rollup)".
func (s styles) featureLine(f *entity.Feature, sum counts.Summary) string {
	var b strings.Builder
	b.WriteString(s.paint(s.title, f.Title))
	b.WriteString(" ")
	b.WriteString(s.paint(s.subtle, "("+f.ID+")"))
	b.WriteString(" ")
	b.WriteString(s.statusLabel(f.Status))
	if len(f.Tags) > 0 {
		b.WriteString(" ")
		b.WriteString(s.chips(f.Tags))
	}
	if rollup := describeSummary(sum); rollup != "" {
		b.WriteString("  ")
		b.WriteString(s.paint(s.subtle, rollup))
	}
	return b.String()
}

func describeSummary(sum counts.Summary) string {
	var parts []string
	if sum.Children > 0 {
		parts = append(parts, plural(sum.Children, "sub-feature"))
	}
	if sum.DescendantTasks > 0 {
		parts = append(parts, plural(sum.DescendantTasks, "task"))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// treeSource is what renderTree needs from the session.
type treeSource struct {
	hierarchy *hierarchy.Index
	counts    *counts.Aggregator
	feature   func(id string) (*entity.Feature, bool)
}

// renderTree writes the project's features as an indented tree.
func (s styles) renderTree(w io.Writer, src treeSource, projectID string) {
	var walk func(id, prefix string, last bool, root bool)
	walk = func(id, prefix string, last bool, root bool) {
		f, ok := src.feature(id)
		if !ok {
			return
		}
		branch, indent := "", ""
		if !root {
			branch, indent = "├── ", "│   "
			if last {
				branch, indent = "└── ", "    "
			}
		}
		fmt.Fprintf(w, "%s%s%s\n", prefix, s.paint(s.subtle, branch), s.featureLine(f, src.counts.Summary(id)))
		children := src.hierarchy.ChildrenOf(id)
		for i, c := range children {
			walk(c, prefix+s.paint(s.subtle, indent), i == len(children)-1, false)
		}
	}
	for _, id := range src.hierarchy.Roots(projectID) {
		walk(id, "", true, true)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
