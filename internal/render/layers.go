package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"smartclass/internal/builder"
	"smartclass/internal/domain"
)

var (
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4f46e5"))
	typeStyle     = lipgloss.NewStyle().Faint(true)
	markerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#64748b"))
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	emptyStyle    = lipgloss.NewStyle().Italic(true).Faint(true)
)

func icon(t domain.ElementType) string {
	switch t {
	case domain.ElementTypeContainer:
		return "▢"
	case domain.ElementTypeHeading:
		return "H"
	case domain.ElementTypeParagraph, domain.ElementTypeText, domain.ElementTypeRichText:
		return "¶"
	case domain.ElementTypeImage:
		return "▣"
	case domain.ElementTypeVideo:
		return "▶"
	case domain.ElementTypeButton:
		return "◉"
	case domain.ElementTypeConnectionText, domain.ElementTypeConnectionImg:
		return "⇄"
	}
	return "•"
}

// LayerTree prints the rows of a layers panel, one line per row, indented by
// depth. Selected rows are highlighted.
func LayerTree(title string, rows []builder.LayerRow) string {
	var b strings.Builder
	if title != "" {
		b.WriteString(titleStyle.Render(title))
		b.WriteByte('\n')
	}
	if len(rows) == 0 {
		b.WriteString(emptyStyle.Render("(no elements)"))
		b.WriteByte('\n')
		return b.String()
	}
	for _, r := range rows {
		b.WriteString(strings.Repeat("  ", r.Depth))
		switch {
		case r.HasChildren && r.IsExpanded:
			b.WriteString(markerStyle.Render("▾ "))
		case r.HasChildren:
			b.WriteString(markerStyle.Render("▸ "))
		default:
			b.WriteString("  ")
		}
		name := icon(r.Type) + " " + r.Name
		if r.IsSelected {
			name = selectedStyle.Render(name)
		}
		b.WriteString(name)
		b.WriteString(" ")
		b.WriteString(typeStyle.Render(string(r.Type)))
		b.WriteByte('\n')
	}
	return b.String()
}

// ExpandedRows lists every element as a layer row with all containers open,
// ignoring what a user collapsed in the panel.
func ExpandedRows(elements []domain.Element) []builder.LayerRow {
	var rows []builder.LayerRow
	var walk func([]*builder.HierarchyNode)
	walk = func(ns []*builder.HierarchyNode) {
		for _, n := range ns {
			rows = append(rows, builder.LayerRow{
				ID: n.Element.ID, Name: n.Element.Name, Type: n.Element.Type,
				Depth: n.Depth, HasChildren: len(n.Children) > 0, IsExpanded: true,
			})
			walk(n.Children)
		}
	}
	walk(builder.BuildHierarchy(elements, nil))
	return rows
}
