package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"phraseindex/internal/pipeline"
	"phraseindex/internal/queue"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	if len(headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render() + "\n"
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const statusLabelWidth = 18

// statusColor picks a colour for video and run statuses.
func statusColor(status string) string {
	switch status {
	case string(queue.VideoProcessed), string(pipeline.StatusCompleted):
		return ansiGreen
	case string(queue.VideoPartial), string(queue.VideoNoSubtitles), string(pipeline.StatusSkipped):
		return ansiYellow
	case string(queue.VideoFailed):
		return ansiRed
	case string(queue.VideoProcessing):
		return ansiBlue
	default:
		return ""
	}
}

func colorStatus(status string, colorize bool) string {
	if !colorize {
		return status
	}
	if color := statusColor(status); color != "" {
		return color + status + ansiReset
	}
	return status
}

func renderStatusLine(label, value string, colorize bool) string {
	return fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", colorStatus(value, colorize))
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func printRunResult(out io.Writer, result pipeline.Result, colorize bool) {
	for _, line := range renderSectionHeader(fmt.Sprintf("Video %d", result.VideoID), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", string(result.Status), colorize))
	fmt.Fprintln(out, renderStatusLine("Phrases indexed", fmt.Sprint(result.PhrasesIndexed), false))
	if result.Strategy != "" {
		fmt.Fprintln(out, renderStatusLine("Strategy", result.Strategy, false))
	}
	if result.Duplicates > 0 {
		fmt.Fprintln(out, renderStatusLine("Duplicates", fmt.Sprint(result.Duplicates), false))
	}
	if result.ChunksQueued > 0 || result.Pending > 0 {
		fmt.Fprintln(out, renderStatusLine("Chunks queued", fmt.Sprint(result.ChunksQueued), false))
		fmt.Fprintln(out, renderStatusLine("Chunks pending", fmt.Sprint(result.Pending), false))
	}
	if result.ChunksFailed > 0 {
		fmt.Fprintln(out, renderStatusLine("Chunks failed", fmt.Sprint(result.ChunksFailed), false))
	}
	if result.Message != "" {
		fmt.Fprintln(out, renderStatusLine("Message", result.Message, false))
	}
}

func formatTimestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
