package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	pkgio "github.com/matzehuels/beadring/pkg/io"
	"github.com/matzehuels/beadring/pkg/pipeline"
	"github.com/matzehuels/beadring/pkg/ring"
)

// layoutCommand creates the layout command for inspecting placements.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output  string
		asJSON  bool
		spacing float64
		mode    string
		rotate  int
	)

	cmd := &cobra.Command{
		Use:   "layout [beads.toml|beads.json]",
		Short: "Compute bead placements without rendering",
		Long: `Compute bead placements without rendering.

Prints a table of bead centers, rotations and sizes in layout units. With
--json (or -o) the full layout is written as JSON for external tools.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, _, err := loadRequest(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("spacing") {
				req.Spacing = spacing
			}
			if cmd.Flags().Changed("mode") {
				req.Mode = ring.Mode(mode)
			}
			req.Beads = rotateBeads(req.Beads, rotate)
			return c.runLayout(cmd.Context(), cmd.OutOrStdout(), req, output, asJSON)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write layout JSON to file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print layout JSON instead of a table")
	cmd.Flags().Float64Var(&spacing, "spacing", 0, "gap between neighbouring beads")
	cmd.Flags().StringVar(&mode, "mode", string(pipeline.DefaultMode), "angle mode: arc (default), chord")
	cmd.Flags().IntVar(&rotate, "rotate", 0, "rotate bead order clockwise by n (negative: counter-clockwise)")

	return cmd
}

func (c *CLI) runLayout(ctx context.Context, w io.Writer, req pipeline.Request, output string, asJSON bool) error {
	l, err := pipeline.ComputeLayout(ctx, req)
	if err != nil {
		return fmt.Errorf("compute layout: %w", err)
	}
	c.Logger.Debug("layout computed", "beads", len(l.Placements), "radius", l.Radius, "drift", l.Drift())

	switch {
	case output != "":
		if err := pkgio.ExportLayoutJSON(output, l); err != nil {
			return err
		}
		printSuccess("Layout complete")
		printFile(filepath.Clean(output))
		return nil
	case asJSON:
		return pkgio.WriteLayoutJSON(w, l)
	}

	fmt.Fprintln(w, StyleTitle.Render("Ring layout"))
	fmt.Fprintf(w, "%s %s   %s %s   %s %s\n",
		StyleDim.Render("radius"), StyleNumber.Render(fmt.Sprintf("%.3f", l.Radius)),
		StyleDim.Render("mode"), StyleValue.Render(string(l.Config.Mode)),
		StyleDim.Render("drift"), StyleNumber.Render(fmt.Sprintf("%.2e rad", l.Drift())))
	fmt.Fprintln(w, layoutTable(l))
	return nil
}

// layoutTable renders placements as a table. Angles are in degrees.
func layoutTable(l ring.Layout) string {
	rows := make([][]string, len(l.Placements))
	for i, p := range l.Placements {
		kind := "ring"
		if p.Floating {
			kind = "floating"
		}
		rows[i] = []string{
			fmt.Sprint(p.Index),
			p.Bead.Image,
			fmt.Sprintf("%.2f", p.X),
			fmt.Sprintf("%.2f", p.Y),
			fmt.Sprintf("%.1f°", p.Angle*180/math.Pi),
			fmt.Sprintf("%.1f×%.1f", p.Width, p.Height),
			kind,
		}
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("#", "Image", "X", "Y", "Angle", "Size", "Kind").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return headerStyle
			case col == 6 && l.Placements[row].Floating:
				return lipgloss.NewStyle().Foreground(colorYellow)
			case col >= 2 && col <= 5:
				return lipgloss.NewStyle().Foreground(colorCyan)
			}
			return lipgloss.NewStyle()
		}).
		String()
}
