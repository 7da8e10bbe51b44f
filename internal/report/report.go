// Package report renders the verification and archive summary reports.
// Aggregation lives in the storage layer; this package only formats.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/skymerge/saucer/internal/cli"
	"github.com/skymerge/saucer/internal/model"
	"github.com/skymerge/saucer/internal/service"
)

// summaryClip is how many runes of a sighting summary the top-pairs list
// shows per side.
const summaryClip = 70

// Renderer formats reports over the stored archive and candidates.
type Renderer struct {
	storage service.Storage
	printer *message.Printer
	styled  bool
}

// New creates a renderer. Styled output colors headings with lipgloss;
// callers pass false when stdout is not a terminal.
func New(storage service.Storage, styled bool) *Renderer {
	return &Renderer{
		storage: storage,
		printer: message.NewPrinter(language.English),
		styled:  styled,
	}
}

// Verify writes the candidate verification report: totals, per-method
// aggregates, the score histogram, the highest-confidence pairs and the
// share of sightings involved in any candidate.
func (r *Renderer) Verify(ctx context.Context, w io.Writer, top int) error {
	total, err := r.storage.CountCandidates(ctx)
	if err != nil {
		return fmt.Errorf("failed to count candidates: %w", err)
	}

	fmt.Fprintln(w, r.heading("Verification report"))
	fmt.Fprintln(w)
	r.printer.Fprintf(w, "Duplicate candidates: %d\n", total)

	if total == 0 {
		fmt.Fprintln(w, "Nothing to report; run a match first.")
		return nil
	}

	if err := r.writeMethodTable(ctx, w); err != nil {
		return err
	}
	if err := r.writeDistribution(ctx, w, total); err != nil {
		return err
	}
	if err := r.writeTopPairs(ctx, w, top); err != nil {
		return err
	}
	return r.writeInvolved(ctx, w)
}

func (r *Renderer) writeMethodTable(ctx context.Context, w io.Writer) error {
	stats, err := r.storage.GetMethodStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to load method stats: %w", err)
	}

	rows := make([]table.Row, 0, len(stats))
	for _, stat := range stats {
		rows = append(rows, table.Row{
			stat.Method,
			r.printer.Sprintf("%d", stat.Count),
			fmt.Sprintf("%.3f", stat.Avg),
			fmt.Sprintf("%.3f", stat.Min),
			fmt.Sprintf("%.3f", stat.Max),
		})
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, r.heading("By match method"))
	fmt.Fprintln(w, renderTable(
		table.Row{"Method", "Pairs", "Avg", "Min", "Max"},
		rows, 2, 3, 4, 5))
	return nil
}

func (r *Renderer) writeDistribution(ctx context.Context, w io.Writer, total int64) error {
	bands, err := r.storage.GetScoreDistribution(ctx)
	if err != nil {
		return fmt.Errorf("failed to load score distribution: %w", err)
	}

	rows := make([]table.Row, 0, len(bands))
	for _, band := range bands {
		share := percent(band.Count, total)
		rows = append(rows, table.Row{
			band.Label,
			fmt.Sprintf("%.1f-%.1f", band.Low, band.High),
			r.printer.Sprintf("%d", band.Count),
			fmt.Sprintf("%5.1f%%", share),
			strings.Repeat("#", int(share/2)),
		})
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, r.heading("Score distribution"))
	fmt.Fprintln(w, renderTable(
		table.Row{"Band", "Range", "Pairs", "Share", ""},
		rows, 3, 4))
	return nil
}

func (r *Renderer) writeTopPairs(ctx context.Context, w io.Writer, top int) error {
	details, err := r.storage.GetTopCandidates(ctx, top)
	if err != nil {
		return fmt.Errorf("failed to load top candidates: %w", err)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, r.heading(fmt.Sprintf("Top %d pairs", len(details))))
	for i, d := range details {
		fmt.Fprintf(w, "\n#%d  score %.3f  (%s)\n", i+1, d.Score, d.Method)
		r.writePairSide(w, "A", d.SourceA, d.DayA, d.SightingA, d.SummaryA)
		r.writePairSide(w, "B", d.SourceB, d.DayB, d.SightingB, d.SummaryB)
	}
	return nil
}

func (r *Renderer) writePairSide(w io.Writer, label string, source model.SourceID, day string, id int64, summary string) {
	if day == "" {
		day = "undated"
	}
	head := fmt.Sprintf("  %s [%s] %s  #%d", label, source.Name(), day, id)
	if r.styled {
		head = cli.SubtleStyle.Render(head)
	}
	fmt.Fprintln(w, head)
	if summary = clip(summary, summaryClip); summary != "" {
		fmt.Fprintf(w, "     %s\n", summary)
	}
}

func (r *Renderer) writeInvolved(ctx context.Context, w io.Writer) error {
	involved, err := r.storage.CountInvolvedSightings(ctx)
	if err != nil {
		return fmt.Errorf("failed to count involved sightings: %w", err)
	}
	sightings, err := r.storage.CountSightings(ctx)
	if err != nil {
		return fmt.Errorf("failed to count sightings: %w", err)
	}

	fmt.Fprintln(w)
	r.printer.Fprintf(w, "Sightings involved in candidates: %d of %d (%.1f%%)\n",
		involved, sightings, percent(involved, sightings))
	return nil
}

// Stats writes the archive summary: per-source row counts with dated and
// located shares, the shape leaderboard and candidate totals by status.
func (r *Renderer) Stats(ctx context.Context, w io.Writer) error {
	summary, err := r.storage.GetArchiveSummary(ctx)
	if err != nil {
		return fmt.Errorf("failed to load archive summary: %w", err)
	}

	fmt.Fprintln(w, r.heading("Archive summary"))
	fmt.Fprintln(w)

	rows := make([]table.Row, 0, len(summary.BySource))
	for _, src := range summary.BySource {
		rows = append(rows, table.Row{
			src.Name,
			r.printer.Sprintf("%d", src.Count),
			r.printer.Sprintf("%d", src.Dated),
			fmt.Sprintf("%.1f%%", percent(src.Dated, src.Count)),
			r.printer.Sprintf("%d", src.Located),
			fmt.Sprintf("%.1f%%", percent(src.Located, src.Count)),
		})
	}
	tw := newTableWriter(
		table.Row{"Source", "Rows", "Dated", "", "Located", ""},
		rows, 2, 3, 4, 5, 6)
	tw.AppendFooter(table.Row{"Total", r.printer.Sprintf("%d", summary.TotalSightings)})
	fmt.Fprintln(w, tw.Render())

	if len(summary.TopShapes) > 0 {
		shapeRows := make([]table.Row, 0, len(summary.TopShapes))
		for _, shape := range summary.TopShapes {
			shapeRows = append(shapeRows, table.Row{shape.Shape, r.printer.Sprintf("%d", shape.Count)})
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, r.heading("Top shapes"))
		fmt.Fprintln(w, renderTable(table.Row{"Shape", "Reports"}, shapeRows, 2))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, r.heading("Duplicate candidates"))
	statusRows := make([]table.Row, 0, 3)
	for _, status := range []model.CandidateStatus{
		model.StatusPending, model.StatusConfirmed, model.StatusRejected,
	} {
		statusRows = append(statusRows, table.Row{
			string(status),
			r.printer.Sprintf("%d", summary.CandidatesByStatus[status]),
		})
	}
	tw = newTableWriter(table.Row{"Status", "Pairs"}, statusRows, 2)
	tw.AppendFooter(table.Row{"Total", r.printer.Sprintf("%d", summary.TotalCandidates)})
	fmt.Fprintln(w, tw.Render())
	return nil
}

func (r *Renderer) heading(s string) string {
	if r.styled {
		return cli.StyleTitle(s)
	}
	return s
}

// newTableWriter builds the standard table: rounded style, headers as
// given, the named columns right-aligned.
func newTableWriter(header table.Row, rows []table.Row, rightCols ...int) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)
	tw.AppendRows(rows)

	configs := make([]table.ColumnConfig, 0, len(rightCols))
	for _, col := range rightCols {
		configs = append(configs, table.ColumnConfig{Number: col, Align: text.AlignRight, AlignFooter: text.AlignRight})
	}
	tw.SetColumnConfigs(configs)
	return tw
}

func renderTable(header table.Row, rows []table.Row, rightCols ...int) string {
	return newTableWriter(header, rows, rightCols...).Render()
}

// clip collapses whitespace and truncates to n runes.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func percent(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
