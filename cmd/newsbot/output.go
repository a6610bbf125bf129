package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed)
)

// newTable creates a borderless, left-aligned table.
func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
	if len(headers) > 0 {
		table.Header(headers)
	}
	return table
}

// renderTable writes rows under headers.
func renderTable(w io.Writer, headers []string, rows [][]string) error {
	table := newTable(w, headers...)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func heading(w io.Writer, format string, args ...any) {
	titleColor.Fprintf(w, format+"\n", args...)
}

func yesNo(ok bool) string {
	if ok {
		return okColor.Sprint("yes")
	}
	return warnColor.Sprint("no")
}

func printErr(w io.Writer, err error) {
	errColor.Fprintln(w, fmt.Sprintf("error: %v", err))
}
