// Package formatter renders a migration report — the change list, the
// planned steps, and the outcome — for a terminal, in the compact style
// the teacher used for schema dumps: one object per line, indented detail
// underneath.
package formatter

import (
	"fmt"
	"io"

	"github.com/tordrt/sqlitemigrate/internal/differ"
	"github.com/tordrt/sqlitemigrate/internal/planner"
)

// TextFormatter formats a migration report as compact text.
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter.
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes changes, steps, and outcome in compact text form.
func (f *TextFormatter) Format(changes []differ.Change, steps []planner.Step, outcome string) error {
	if len(changes) == 0 {
		_, _ = fmt.Fprintln(f.writer, "no changes")
		return nil
	}

	_, _ = fmt.Fprintln(f.writer, "CHANGES:")
	for _, c := range changes {
		f.formatChange(c)
	}

	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintln(f.writer, "STEPS:")
	for i, s := range steps {
		f.formatStep(i, s)
	}

	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintf(f.writer, "OUTCOME: %s\n", outcome)
	return nil
}

func (f *TextFormatter) formatChange(c differ.Change) {
	key := c.Key()
	switch c.Kind {
	case differ.ChangeCreate:
		_, _ = fmt.Fprintf(f.writer, "  + %s %s\n", key.Kind, c.Target.Name)
	case differ.ChangeDrop:
		_, _ = fmt.Fprintf(f.writer, "  - %s %s\n", key.Kind, c.Live.Name)
	case differ.ChangeRecreate:
		_, _ = fmt.Fprintf(f.writer, "  ~ %s %s\n", key.Kind, c.Target.Name)
	}
}

func (f *TextFormatter) formatStep(i int, s planner.Step) {
	name := s.Name
	if s.Kind == planner.StepRebuildTable && s.Plan != nil {
		name = s.Plan.TableName
	}
	_, _ = fmt.Fprintf(f.writer, "  %2d. %-16s %s\n", i+1, s.Kind, name)
}
