package main

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/hpungsan/fishscroll/internal/ops"
)

// isTTY reports whether w is an interactive terminal.
func isTTY(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// renderHistoryTable formats list output for humans.
func renderHistoryTable(out *ops.ListOutput) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "Fish", "English", "Conf", "Price", "Season", "Image", "When"})

	for _, item := range out.Items {
		tw.AppendRow(table.Row{
			item.ID,
			item.FishName,
			item.FishNameEn,
			strconv.Itoa(item.Confidence) + "%",
			string(item.Price),
			item.Season,
			humanize.IBytes(uint64(max(item.ImageKB, 0)) * 1024),
			humanize.Time(time.UnixMilli(item.Timestamp)),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 7, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	caption := strconv.Itoa(out.Pagination.Total) + " entries"
	if out.Pagination.HasMore {
		caption += ", more with --offset " + strconv.Itoa(out.Pagination.Offset+len(out.Items))
	}
	tw.SetCaption(caption)

	return tw.Render()
}
