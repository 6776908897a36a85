package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/suiteloader/internal/loader"
	"github.com/zjrosen/suiteloader/internal/pubsub"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#3C3C3C", Dark: "#EDEDED"})
	kindStyle    = lipgloss.NewStyle().Width(26).Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"})
	idStyle      = lipgloss.NewStyle().Width(28)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#C47B00", Dark: "#FFB86C"})
	createdStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#1E8C3A", Dark: "#50FA7B"})
	updatedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#0B6FBF", Dark: "#8BE9FD"})
	deletedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF5555"})
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// FormatJSON writes v as indented JSON
func (f *Formatter) FormatJSON(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatCatalog writes a catalog listing as an aligned table followed by
// the unresolved ids, if any.
func (f *Formatter) FormatCatalog(c CatalogDTO) error {
	var b strings.Builder
	b.WriteString(headerStyle.Render(kindStyle.Render("KIND") + idStyle.Render("ID") + "LABEL"))
	b.WriteByte('\n')
	for _, it := range c.Items {
		b.WriteString(kindStyle.Render(it.Kind) + idStyle.Render(it.ID) + it.Label)
		if refs := formatRefs(it.Refs); refs != "" {
			b.WriteString(" " + subtleStyle.Render(refs))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%d items\n", len(c.Items))
	if len(c.Unresolved) > 0 {
		b.WriteString(warnStyle.Render("unresolved: " + strings.Join(c.Unresolved, ", ")))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(f.writer, b.String())
	return err
}

// FormatChange writes one lifecycle event as a styled line.
func (f *Formatter) FormatChange(ev pubsub.Event[loader.Change]) error {
	_, err := io.WriteString(f.writer, ChangeLine(ev)+"\n")
	return err
}

// ChangeLine renders a lifecycle event, e.g. "created Tag smoke".
func ChangeLine(ev pubsub.Event[loader.Change]) string {
	var label string
	switch ev.Type {
	case pubsub.CreatedEvent:
		label = createdStyle.Render("created")
	case pubsub.UpdatedEvent:
		label = updatedStyle.Render("updated")
	case pubsub.DeletedEvent:
		label = deletedStyle.Render("deleted")
	default:
		label = string(ev.Type)
	}
	return fmt.Sprintf("%s %s %s", label, kindStyle.UnsetWidth().Render(string(ev.Payload.Kind)), ev.Payload.ID)
}

func formatRefs(refs map[string][]string) string {
	if len(refs) == 0 {
		return ""
	}
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	slices.Sort(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + strings.Join(refs[name], ",")
	}
	return strings.Join(parts, " ")
}
