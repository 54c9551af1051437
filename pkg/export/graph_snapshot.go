// Package export renders a job's layered neighbourhood to SVG or PNG files.
package export

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/jobwork/pkg/jobgraph"
	"github.com/vanderheijden86/jobwork/pkg/layering"
	"github.com/vanderheijden86/jobwork/pkg/model"
)

// ErrNoGraph is returned when there is nothing to render.
var ErrNoGraph = errors.New("no job graph to export")

// SnapshotOptions controls a columns snapshot.
type SnapshotOptions struct {
	Path   string // Output path; format inferred from extension when Format is empty
	Format string // "svg" or "png" (case-insensitive)
	Title  string // Header title; defaults to "Job #<id>"
	Preset string // "compact" (default) or "roomy"

	Graph    *jobgraph.Graph
	JobID    int
	Layering layering.Options
}

// FormatFor resolves the output format and path: an explicit format wins,
// then the path extension, then svg (appending .svg to an extensionless path).
func FormatFor(format, path string) (string, string, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".svg", ".png":
			format = ext[1:]
		case "":
			format = "svg"
			if path != "" {
				path += ".svg"
			}
		default:
			format = ext[1:]
		}
	}
	if format != "svg" && format != "png" {
		return "", path, fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	return format, path, nil
}

// SaveColumnsSnapshot renders the upstream/downstream columns of opts.JobID.
func SaveColumnsSnapshot(opts SnapshotOptions) error {
	if opts.Graph == nil || opts.Graph.Len() == 0 {
		return ErrNoGraph
	}
	format, path, err := FormatFor(opts.Format, opts.Path)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("output path is required")
	}
	opts.Path = path

	layout, err := buildLayout(opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	switch format {
	case "png":
		return renderPNG(opts.Path, layout)
	default:
		f, err := os.Create(opts.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		return renderSVG(f, layout)
	}
}

// --- layout ----------------------------------------------------------------

type layoutNode struct {
	Job    *model.Job
	Column int
	Center bool
	X, Y   float64
	W, H   float64
}

type layoutEdge struct {
	From, To int // indexes into layoutResult.Nodes
}

type layoutResult struct {
	Nodes   []layoutNode
	Edges   []layoutEdge
	Width   int
	Height  int
	Header  float64
	Summary summaryInfo
}

type summaryInfo struct {
	Title    string
	Policy   string
	Columns  int
	Upstream int
	Down     int
}

func buildLayout(opts SnapshotOptions) (layoutResult, error) {
	const (
		padding      = 36.0
		headerHeight = 110.0
	)
	nodeW, nodeH, colGap, rowGap := 190.0, 64.0, 70.0, 28.0
	if strings.EqualFold(opts.Preset, "roomy") {
		nodeW, nodeH, colGap, rowGap = 220.0, 78.0, 100.0, 42.0
	}

	lay, err := layering.Compute(opts.Graph, opts.JobID, opts.Layering)
	if err != nil {
		return layoutResult{}, err
	}

	var res layoutResult
	maxRows := 0
	// Column start offsets into res.Nodes.
	starts := make([]int, len(lay.Columns)+1)
	for c, col := range lay.Columns {
		starts[c] = len(res.Nodes)
		maxRows = max(maxRows, len(col))
		for r, job := range col {
			res.Nodes = append(res.Nodes, layoutNode{
				Job:    job,
				Column: c,
				Center: c == lay.Center,
				X:      padding + float64(c)*(nodeW+colGap),
				Y:      padding + headerHeight + float64(r)*(nodeH+rowGap),
				W:      nodeW,
				H:      nodeH,
			})
		}
	}
	starts[len(lay.Columns)] = len(res.Nodes)

	// Adjacent columns are producer -> consumer; draw the label edges
	// between them.
	for c := 0; c+1 < len(lay.Columns); c++ {
		for i := starts[c]; i < starts[c+1]; i++ {
			for k := starts[c+1]; k < starts[c+2]; k++ {
				if feeds(res.Nodes[i].Job, res.Nodes[k].Job) {
					res.Edges = append(res.Edges, layoutEdge{From: i, To: k})
				}
			}
		}
	}

	res.Header = headerHeight
	res.Width = max(640, int(padding*2+float64(len(lay.Columns))*(nodeW+colGap)))
	res.Height = max(360, int(padding*2+headerHeight+float64(maxRows)*(nodeH+rowGap)))

	title := opts.Title
	if strings.TrimSpace(title) == "" {
		title = fmt.Sprintf("Job #%d", opts.JobID)
	}
	res.Summary = summaryInfo{
		Title:    title,
		Policy:   opts.Layering.Policy.String(),
		Columns:  len(lay.Columns),
		Upstream: lay.Center,
		Down:     len(lay.Columns) - lay.Center - 1,
	}
	return res, nil
}

// feeds reports whether p produces a label c consumes.
func feeds(p, c *model.Job) bool {
	for _, out := range p.Produces {
		for _, in := range c.Consumes {
			if out == in {
				return true
			}
		}
	}
	return false
}

// --- rendering -------------------------------------------------------------

var (
	colorDone     = color.RGBA{0xc8, 0xe6, 0xc9, 0xff}
	colorPending  = color.RGBA{0xff, 0xf3, 0xe0, 0xff}
	colorCenter   = color.RGBA{0xbb, 0xde, 0xfb, 0xff}
	colorStroke   = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorEdge     = color.RGBA{0x6b, 0x80, 0xbf, 0xff}
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
)

func nodeColor(n layoutNode) color.RGBA {
	switch {
	case n.Center:
		return colorCenter
	case n.Job.Record.Successed:
		return colorDone
	default:
		return colorPending
	}
}

func summaryLines(s summaryInfo) []string {
	return []string{
		fmt.Sprintf("policy: %s  columns: %d", s.Policy, s.Columns),
		fmt.Sprintf("upstream depth: %d  downstream depth: %d", s.Upstream, s.Down),
	}
}

func labelLine(j *model.Job) string {
	return fmt.Sprintf("%s -> %s", strings.Join(j.Consumes, ","), strings.Join(j.Produces, ","))
}

func renderPNG(path string, layout layoutResult) error {
	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(layout.Width)-32, layout.Header-24, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(layout.Summary.Title, 32, 44, 0, 0.5)
	dc.SetColor(colorSubtle)
	for i, line := range summaryLines(layout.Summary) {
		dc.DrawStringAnchored(line, 32, 66+float64(i)*20, 0, 0.5)
	}

	dc.SetColor(colorEdge)
	dc.SetLineWidth(2)
	for _, e := range layout.Edges {
		from, to := layout.Nodes[e.From], layout.Nodes[e.To]
		x2, y2 := to.X, to.Y+to.H/2
		dc.DrawLine(from.X+from.W, from.Y+from.H/2, x2, y2)
		dc.Stroke()
		dc.NewSubPath()
		dc.MoveTo(x2, y2)
		dc.LineTo(x2-8, y2+4)
		dc.LineTo(x2-8, y2-4)
		dc.ClosePath()
		dc.Fill()
	}

	for _, n := range layout.Nodes {
		dc.SetColor(nodeColor(n))
		dc.DrawRoundedRectangle(n.X, n.Y, n.W, n.H, 8)
		dc.Fill()
		dc.SetColor(colorStroke)
		dc.SetLineWidth(1.2)
		dc.DrawRoundedRectangle(n.X, n.Y, n.W, n.H, 8)
		dc.Stroke()

		dc.SetColor(colorText)
		dc.DrawStringAnchored(truncate(n.Job.Title(), 26), n.X+10, n.Y+18, 0, 0.5)
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(truncate(labelLine(n.Job), 26), n.X+10, n.Y+38, 0, 0.5)
		dc.DrawStringAnchored(n.Job.Status(), n.X+10, n.Y+54, 0, 0.5)
	}

	return dc.SavePNG(path)
}

func renderSVG(w io.Writer, layout layoutResult) error {
	canvas := svg.New(w)
	canvas.Start(layout.Width, layout.Height)
	canvas.Rect(0, 0, layout.Width, layout.Height, "fill:"+css(colorBackdrop))
	canvas.Roundrect(16, 16, layout.Width-32, int(layout.Header-24), 10, 10, "fill:"+css(colorHeaderBG))

	canvas.Text(32, 44, layout.Summary.Title,
		fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	for i, line := range summaryLines(layout.Summary) {
		canvas.Text(32, 66+i*20, line,
			fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorSubtle)))
	}

	for _, e := range layout.Edges {
		from, to := layout.Nodes[e.From], layout.Nodes[e.To]
		x1, y1 := int(from.X+from.W), int(from.Y+from.H/2)
		x2, y2 := int(to.X), int(to.Y+to.H/2)
		canvas.Line(x1, y1, x2, y2, fmt.Sprintf("stroke:%s;stroke-width:2", css(colorEdge)))
		canvas.Polygon([]int{x2, x2 - 8, x2 - 8}, []int{y2, y2 + 4, y2 - 4}, "fill:"+css(colorEdge))
	}

	for _, n := range layout.Nodes {
		x, y := int(n.X), int(n.Y)
		canvas.Roundrect(x, y, int(n.W), int(n.H), 8, 8,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.2", css(nodeColor(n)), css(colorStroke)))
		canvas.Text(x+10, y+20, truncate(n.Job.Title(), 28),
			fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(colorText)))
		canvas.Text(x+10, y+38, truncate(labelLine(n.Job), 30),
			fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
		canvas.Text(x+10, y+54, n.Job.Status(),
			fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
	}

	canvas.End()
	return nil
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
