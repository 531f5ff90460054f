package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jacoelho/i5validator/internal/runner"
)

func writeSummary(w io.Writer, results []runner.FileResult) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Format.Footer = text.FormatDefault
	tbl.AppendHeader(table.Row{"Document", "Size", "Compression", "Verdict", "Findings", "Duration"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	var (
		size     int64
		findings int
		invalid  int
		elapsed  time.Duration
	)
	for _, res := range results {
		size += res.Size
		findings += res.Findings
		elapsed += res.Duration
		if !res.Valid {
			invalid++
		}
		tbl.AppendRow(table.Row{
			res.Name,
			humanize.Bytes(uint64(max(res.Size, 0))),
			res.Compression.String(),
			verdict(res.Valid),
			humanize.Comma(int64(res.Findings)),
			res.Duration.Round(time.Millisecond).String(),
		})
	}
	tbl.AppendFooter(table.Row{
		fmt.Sprintf("%d documents, %d did not validate", len(results), invalid),
		humanize.Bytes(uint64(max(size, 0))),
		"",
		"",
		humanize.Comma(int64(findings)),
		elapsed.Round(time.Millisecond).String(),
	})

	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}

func verdict(valid bool) string {
	if valid {
		return color.GreenString("valid")
	}
	return color.RedString("not valid")
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
