// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/kusari-oss/nodeprep/internal/core/models"
)

// Printer renders a run recap for a terminal
type Printer struct {
	out    io.Writer
	colors map[models.Outcome]*color.Color
	bold   *color.Color
	red    *color.Color
}

// NewPrinter creates a printer writing to out. With noColor the output is plain text.
func NewPrinter(out io.Writer, noColor bool) *Printer {
	p := &Printer{
		out: out,
		colors: map[models.Outcome]*color.Color{
			models.OutcomeChanged:   color.New(color.FgYellow),
			models.OutcomeUnchanged: color.New(color.FgGreen),
			models.OutcomeSkipped:   color.New(color.FgCyan),
			models.OutcomeFailed:    color.New(color.FgRed, color.Bold),
		},
		bold: color.New(color.Bold),
		red:  color.New(color.FgRed),
	}

	if noColor {
		for _, c := range p.colors {
			c.DisableColor()
		}
		p.bold.DisableColor()
		p.red.DisableColor()
	}
	return p
}

// Print writes every step outcome per node followed by a recap line
func (p *Printer) Print(run *models.RunResult) {
	p.bold.Fprintf(p.out, "Run %s, plan %s\n", run.RunID, run.Plan)

	for _, node := range run.Nodes {
		fmt.Fprintln(p.out)
		p.bold.Fprintf(p.out, "NODE [%s]", node.Node)
		if node.Group != "" {
			fmt.Fprintf(p.out, " (%s)", node.Group)
		}
		fmt.Fprintln(p.out)

		for _, r := range node.Results {
			p.colors[r.Outcome].Fprintf(p.out, "  %-9s", r.Outcome)
			fmt.Fprintf(p.out, " %3d. %s [%s]\n", r.Index+1, r.Name, r.Action)
		}

		switch {
		case node.Failure != nil:
			p.red.Fprintf(p.out, "  FAILED %s\n", node.Failure.Error())
		case node.Err != nil:
			p.red.Fprintf(p.out, "  FAILED %v\n", node.Err)
		}
	}

	fmt.Fprintln(p.out)
	p.bold.Fprintln(p.out, "RECAP")
	for _, node := range run.Nodes {
		fmt.Fprintf(p.out, "%-24s ", node.Node)
		p.colors[models.OutcomeChanged].Fprintf(p.out, "changed=%d ", node.Count(models.OutcomeChanged))
		p.colors[models.OutcomeUnchanged].Fprintf(p.out, "unchanged=%d ", node.Count(models.OutcomeUnchanged))
		p.colors[models.OutcomeSkipped].Fprintf(p.out, "skipped=%d ", node.Count(models.OutcomeSkipped))
		failed := node.Count(models.OutcomeFailed)
		if node.Err != nil {
			failed++
		}
		p.colors[models.OutcomeFailed].Fprintf(p.out, "failed=%d\n", failed)
	}
}
