package ui

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/jobwork/pkg/layering"
	"github.com/vanderheijden86/jobwork/pkg/model"
)

const minColumnWidth = 18

// jobMarkdown describes a job for the detail pane.
func jobMarkdown(j *model.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", j.Title())
	fmt.Fprintf(&b, "**Status:** %s · **Priority:** %s · **Serial:** %t\n\n",
		j.Status(), strconv.FormatFloat(j.Record.Priority, 'g', -1, 64), j.Record.Serial)
	writeLabels(&b, "Consumes", j.Consumes)
	writeLabels(&b, "Produces", j.Produces)

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(j.Text), "", "  "); err != nil {
		pretty.Reset()
		pretty.WriteString(j.Text)
	}
	b.WriteString("```json\n")
	b.Write(pretty.Bytes())
	b.WriteString("\n```\n")
	return b.String()
}

func writeLabels(b *strings.Builder, name string, labels []string) {
	fmt.Fprintf(b, "**%s:** ", name)
	if len(labels) == 0 {
		b.WriteString("none\n\n")
		return
	}
	for i, l := range labels {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "`%s`", l)
	}
	b.WriteString("\n\n")
}

// columnHeader names a column by its hop distance from the selected job.
func columnHeader(lay layering.Layout, c int) string {
	switch d := c - lay.Center; {
	case d < 0:
		return fmt.Sprintf("upstream %d", -d)
	case d > 0:
		return fmt.Sprintf("downstream %d", d)
	default:
		return fmt.Sprintf("job #%d", lay.Columns[c][0].ID)
	}
}

// columnWindow picks the columns that fit in width, centred on the
// selected job when they do not all fit.
func columnWindow(lay layering.Layout, width int) (start, end int) {
	n := len(lay.Columns)
	fits := max(1, (width+1)/(minColumnWidth+1))
	if n <= fits {
		return 0, n
	}
	start = clamp(lay.Center-fits/2, 0, n-fits)
	return start, start + fits
}

// renderColumns lays out the upstream and downstream columns side by side.
func renderColumns(t Theme, lay layering.Layout, width int) string {
	if len(lay.Columns) == 0 || width <= 0 {
		return ""
	}
	start, end := columnWindow(lay, width)
	shown := end - start
	colW := min(40, max(1, (width-(shown-1))/shown))

	var lines []string
	if shown < len(lay.Columns) {
		lines = append(lines, t.MutedText.Render(
			fmt.Sprintf("columns %d-%d of %d", start+1, end, len(lay.Columns))))
	}

	rows := 0
	for c := start; c < end; c++ {
		rows = max(rows, len(lay.Columns[c]))
	}

	header := make([]string, 0, shown)
	for c := start; c < end; c++ {
		h := fit(columnHeader(lay, c), colW)
		if c == lay.Center {
			header = append(header, t.PrimaryBold.Render(h))
		} else {
			header = append(header, t.MutedText.Render(h))
		}
	}
	lines = append(lines, strings.Join(header, " "))

	for r := range rows {
		cells := make([]string, 0, shown)
		for c := start; c < end; c++ {
			col := lay.Columns[c]
			if r >= len(col) {
				cells = append(cells, strings.Repeat(" ", colW))
				continue
			}
			j := col[r]
			cell := fit(t.StatusIcon(j.Status())+" "+j.Title(), colW)
			style := t.Renderer.NewStyle().Foreground(t.StatusColor(j.Status()))
			if c == lay.Center {
				style = t.Selected
			}
			cells = append(cells, style.Render(cell))
		}
		lines = append(lines, strings.Join(cells, " "))
	}
	return strings.Join(lines, "\n")
}
