package formatter

import (
	"fmt"
	"io"

	"github.com/tordrt/sqlitemigrate/internal/differ"
	"github.com/tordrt/sqlitemigrate/internal/planner"
)

// MarkdownFormatter formats a migration report as markdown, for pasting
// into a PR description or a review tool.
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter.
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes changes, steps, and outcome as markdown.
func (f *MarkdownFormatter) Format(changes []differ.Change, steps []planner.Step, outcome string) error {
	_, _ = fmt.Fprintln(f.writer, "# Migration Report")
	_, _ = fmt.Fprintln(f.writer)

	_, _ = fmt.Fprintln(f.writer, "## Changes")
	_, _ = fmt.Fprintln(f.writer)
	if len(changes) == 0 {
		_, _ = fmt.Fprintln(f.writer, "_no changes_")
	}
	for _, c := range changes {
		f.formatChange(c)
	}
	_, _ = fmt.Fprintln(f.writer)

	_, _ = fmt.Fprintln(f.writer, "## Steps")
	_, _ = fmt.Fprintln(f.writer)
	for i, s := range steps {
		f.formatStep(i, s)
	}
	_, _ = fmt.Fprintln(f.writer)

	_, _ = fmt.Fprintf(f.writer, "**Outcome:** %s\n", outcome)
	return nil
}

func (f *MarkdownFormatter) formatChange(c differ.Change) {
	key := c.Key()
	switch c.Kind {
	case differ.ChangeCreate:
		_, _ = fmt.Fprintf(f.writer, "- **add** `%s` %s\n", key.Kind, c.Target.Name)
	case differ.ChangeDrop:
		_, _ = fmt.Fprintf(f.writer, "- **drop** `%s` %s\n", key.Kind, c.Live.Name)
	case differ.ChangeRecreate:
		_, _ = fmt.Fprintf(f.writer, "- **replace** `%s` %s\n", key.Kind, c.Target.Name)
	}
}

func (f *MarkdownFormatter) formatStep(i int, s planner.Step) {
	name := s.Name
	if s.Kind == planner.StepRebuildTable && s.Plan != nil {
		name = s.Plan.TableName
	}
	_, _ = fmt.Fprintf(f.writer, "%d. `%s` %s\n", i+1, s.Kind, name)
}
