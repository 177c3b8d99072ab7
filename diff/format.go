package diff

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gusuku-oknw/peerdiffx/element"
)

// FormatText formats a changeset as human-readable text.
func (cs *Changeset) FormatText() string {
	var sb strings.Builder

	for _, e := range cs.Added {
		sb.WriteString(fmt.Sprintf("  + %s\n", describe(e)))
	}
	for _, e := range cs.Deleted {
		sb.WriteString(fmt.Sprintf("  - %s\n", describe(e)))
	}
	for _, m := range cs.Modified {
		sb.WriteString(formatModified(m))
	}

	return sb.String()
}

func formatModified(m Modified) string {
	fields := element.ChangedFields(m.Before, m.After)
	var parts []string
	for _, f := range fields {
		switch f {
		case "x":
			parts = append(parts, fmt.Sprintf("x: %d -> %d", m.Before.X, m.After.X))
		case "y":
			parts = append(parts, fmt.Sprintf("y: %d -> %d", m.Before.Y, m.After.Y))
		case "width":
			parts = append(parts, fmt.Sprintf("width: %d -> %d", m.Before.Width, m.After.Width))
		case "height":
			parts = append(parts, fmt.Sprintf("height: %d -> %d", m.Before.Height, m.After.Height))
		case "content":
			parts = append(parts, fmt.Sprintf("content: %s -> %s", truncateValue(m.Before.Content), truncateValue(m.After.Content)))
		case "type":
			parts = append(parts, fmt.Sprintf("type: %s -> %s", m.Before.Kind, m.After.Kind))
		default:
			parts = append(parts, f)
		}
	}
	return fmt.Sprintf("  ~ %s: %s\n", describe(m.After), strings.Join(parts, ", "))
}

func describe(e element.Element) string {
	return fmt.Sprintf("%s %s", e.Kind, e.ID)
}

func getActionChar(action Action) string {
	switch action {
	case ActionAdded:
		return "+"
	case ActionDeleted:
		return "-"
	case ActionModified:
		return "~"
	default:
		return " "
	}
}

func truncateValue(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 40 {
		return fmt.Sprintf("%q", s[:37]+"...")
	}
	return fmt.Sprintf("%q", s)
}

// FormatText formats a presentation diff as human-readable text.
func (pd *PresentationDiff) FormatText() string {
	var sb strings.Builder

	for _, s := range pd.Slides {
		sb.WriteString(fmt.Sprintf("%s slide %d\n", getActionChar(s.Action), s.SlideNumber))
		if s.Changes != nil && !s.Changes.Empty() {
			sb.WriteString(s.Changes.FormatText())
			sb.WriteString("\n")
		}
	}

	sum := pd.Summary
	if sum.SlidesAdded > 0 || sum.SlidesModified > 0 || sum.SlidesDeleted > 0 {
		sb.WriteString(fmt.Sprintf("\nSummary: %d slides (%d added, %d modified, %d deleted)\n",
			sum.SlidesAdded+sum.SlidesModified+sum.SlidesDeleted,
			sum.SlidesAdded, sum.SlidesModified, sum.SlidesDeleted))
		sb.WriteString(fmt.Sprintf("         %d elements (%d added, %d modified, %d deleted)\n",
			sum.ElementsAdded+sum.ElementsModified+sum.ElementsDeleted,
			sum.ElementsAdded, sum.ElementsModified, sum.ElementsDeleted))
	}

	return sb.String()
}

// FormatJSON formats a changeset as indented JSON.
func (cs *Changeset) FormatJSON() ([]byte, error) {
	return json.MarshalIndent(cs, "", "  ")
}

// FormatCompact formats a changeset as one line per changed element id.
func (cs *Changeset) FormatCompact() string {
	var parts []string
	for _, e := range cs.Added {
		parts = append(parts, "+ "+e.ID)
	}
	for _, e := range cs.Deleted {
		parts = append(parts, "- "+e.ID)
	}
	for _, m := range cs.Modified {
		parts = append(parts, "~ "+m.After.ID)
	}
	return strings.Join(parts, "\n")
}

// FormatStats returns just the statistics line.
func (cs *Changeset) FormatStats() string {
	return fmt.Sprintf("%d elements changed (%d+, %d~, %d-)",
		len(cs.Added)+len(cs.Modified)+len(cs.Deleted),
		len(cs.Added), len(cs.Modified), len(cs.Deleted))
}
