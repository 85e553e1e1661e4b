package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/beadring/pkg/assets"
	"github.com/matzehuels/beadring/pkg/bead"
	"github.com/matzehuels/beadring/pkg/errors"
	pkgio "github.com/matzehuels/beadring/pkg/io"
	"github.com/matzehuels/beadring/pkg/pipeline"
	"github.com/matzehuels/beadring/pkg/ring"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	previewCols = 41
	previewRows = 21 // terminal cells are about twice as tall as wide
)

// editCommand creates the interactive ring editor.
func (c *CLI) editCommand() *cobra.Command {
	opts := renderOpts{
		concurrency: assets.DefaultConcurrency,
		cacheMB:     assets.DefaultMaxBytes >> 20,
	}

	cmd := &cobra.Command{
		Use:   "edit [beads.toml|beads.json]",
		Short: "Rearrange a ring interactively",
		Long: `Rearrange a ring interactively.

Select beads, rotate the ring, move or delete beads and watch the layout
update. Press s to save the bead file and enter to render it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			req, bf, err := loadRequest(path)
			if err != nil {
				return err
			}

			// Logs would tear the alternate screen.
			eng, err := c.newEngine(cmd.Context(), opts, newLogger(io.Discard, LogInfo))
			if err != nil {
				return err
			}
			defer eng.Close()

			m := newEditModel(path, bf, req)
			m.render = func(ctx context.Context, r pipeline.Request) (*pipeline.Result, error) {
				return eng.runner.Generate(ctx, r)
			}
			m.ctx = cmd.Context()

			final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			if err != nil {
				return err
			}
			if fm, ok := final.(editModel); ok && fm.dirty {
				printWarning("Unsaved changes to %s discarded", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the artifact cache")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", opts.concurrency, "maximum parallel image downloads")

	return cmd
}

// =============================================================================
// editModel - Interactive ring editor
// =============================================================================

type renderDoneMsg struct {
	res *pipeline.Result
	err error
}

// editModel is the bubbletea model for the ring editor. Every edit produces
// a new bead slice and a fresh layout.
type editModel struct {
	path   string
	file   *pkgio.BeadFile
	req    pipeline.Request
	layout ring.Layout
	err    error

	cursor    int
	status    string
	dirty     bool
	rendering bool

	ctx    context.Context
	render func(context.Context, pipeline.Request) (*pipeline.Result, error)
	save   func(string, *pkgio.BeadFile) error
}

func newEditModel(path string, bf *pkgio.BeadFile, req pipeline.Request) editModel {
	m := editModel{path: path, file: bf, req: req, ctx: context.Background(), save: pkgio.ExportBeads}
	m.relayout()
	return m
}

func (m *editModel) relayout() {
	m.layout, m.err = pipeline.ComputeLayout(m.ctx, m.req)
	m.cursor = max(0, min(m.cursor, len(m.req.Beads)-1))
}

func (m *editModel) edit(beads []bead.Bead, cursor int, status string) {
	m.req.Beads = beads
	m.cursor = cursor
	m.status = status
	m.dirty = true
	m.relayout()
}

func (m editModel) Init() tea.Cmd {
	return nil
}

func (m editModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case renderDoneMsg:
		m.rendering = false
		switch {
		case msg.err != nil && msg.res != nil:
			m.status = "generation failed, please retry: " + msg.res.Reason
		case msg.err != nil:
			m.status = "generation failed, please retry: " + errors.UserMessage(msg.err)
		default:
			m.status = fmt.Sprintf("rendered %s (%d warnings)", msg.res.Path, len(msg.res.Warnings))
		}
		return m, nil

	case tea.KeyMsg:
		n := len(m.req.Beads)
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < n-1 {
				m.cursor++
			}
		case "r", ">":
			if n > 0 {
				m.edit(bead.RotateClockwise(m.req.Beads, 1), (m.cursor+1)%n, "rotated clockwise")
			}
		case "R", "<":
			if n > 0 {
				m.edit(bead.RotateCounterClockwise(m.req.Beads, 1), (m.cursor+n-1)%n, "rotated counter-clockwise")
			}
		case "K", "shift+up":
			if m.cursor > 0 {
				m.edit(bead.Move(m.req.Beads, m.cursor, m.cursor-1), m.cursor-1, "moved up")
			}
		case "J", "shift+down":
			if m.cursor < n-1 {
				m.edit(bead.Move(m.req.Beads, m.cursor, m.cursor+1), m.cursor+1, "moved down")
			}
		case "d", "x", "delete":
			if n > 0 {
				m.edit(bead.Remove(m.req.Beads, m.cursor), m.cursor, fmt.Sprintf("removed bead %d", m.cursor))
			}
		case "s":
			m.file.Beads = m.req.Beads
			if err := m.save(m.path, m.file); err != nil {
				m.status = "save failed: " + err.Error()
			} else {
				m.dirty = false
				m.status = "saved " + m.path
			}
		case "enter":
			if m.rendering || m.err != nil || m.render == nil {
				return m, nil
			}
			m.rendering = true
			m.status = "rendering..."
			return m, m.renderCmd()
		}
	}
	return m, nil
}

func (m editModel) renderCmd() tea.Cmd {
	ctx, req, render := m.ctx, m.req, m.render
	req.Beads = append([]bead.Bead(nil), m.req.Beads...)
	return func() tea.Msg {
		res, err := render(ctx, req)
		return renderDoneMsg{res: res, err: err}
	}
}

func (m editModel) View() string {
	var b strings.Builder

	title := "Ring Editor " + listDimStyle.Render(m.path)
	if m.dirty {
		title += StyleWarning.Render(" *")
	}
	b.WriteString(StyleTitle.Render(title))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ select  r/R rotate  J/K move  d delete  s save  ⏎ render  q quit"))
	b.WriteString("\n\n")

	var left string
	if m.err != nil {
		left = StyleWarning.Render(errors.UserMessage(m.err))
	} else {
		left = ringPreview(m.layout, m.cursor)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", m.beadList()))
	b.WriteString("\n\n")

	if m.err == nil {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("radius %.2f  drift %.1e rad  %d beads",
			m.layout.Radius, m.layout.Drift(), len(m.layout.Placements))))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(StyleHighlight.Render(m.status))
		b.WriteString("\n")
	}
	return b.String()
}

func (m editModel) beadList() string {
	var b strings.Builder
	for i, bd := range m.req.Beads {
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		kind := ""
		if bd.Floating {
			kind = " (floating)"
		}
		line := fmt.Sprintf("%s%2d  %-28s d=%g%s", cursor, i, truncate(bd.Image, 28), bd.Diameter, kind)
		if i == m.cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}
	if len(m.req.Beads) == 0 {
		b.WriteString(listDimStyle.Render("  no beads"))
	}
	return b.String()
}

// ringPreview plots bead centers on a character grid. The selected bead is
// highlighted; floating beads use a distinct glyph.
func ringPreview(l ring.Layout, selected int) string {
	grid := make([][]string, previewRows)
	for r := range grid {
		grid[r] = make([]string, previewCols)
		for c := range grid[r] {
			grid[r][c] = " "
		}
	}

	if len(l.Placements) > 0 {
		bounds := l.Bounds()
		scale := math.Inf(1)
		if w := bounds.Width(); w > 0 {
			scale = float64(previewCols-1) / w
		}
		if h := bounds.Height(); h > 0 {
			scale = math.Min(scale, 2*float64(previewRows-1)/h)
		}
		if math.IsInf(scale, 1) {
			scale = 0
		}
		for _, p := range l.Placements {
			col := int(math.Round((p.X-bounds.CenterX())*scale)) + previewCols/2
			row := int(math.Round((p.Y-bounds.CenterY())*scale/2)) + previewRows/2
			if row < 0 || row >= previewRows || col < 0 || col >= previewCols {
				continue
			}
			glyph := listDimStyle.Render("o")
			if p.Floating {
				glyph = StyleWarning.Render("◆")
			}
			if p.Index == selected {
				glyph = listSelectedStyle.Render("●")
			}
			grid[row][col] = glyph
		}
	}

	lines := make([]string, previewRows)
	for r, cells := range grid {
		lines[r] = strings.Join(cells, "")
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorDim).
		Render(strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n+1:])
}
