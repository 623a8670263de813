package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	return renderGroupedTable(headers, [][][]string{rows}, aligns)
}

// renderGroupedTable draws each group of rows with a rule between groups.
// Missing cells render empty.
func renderGroupedTable(headers []string, groups [][][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for g, rows := range groups {
		if g > 0 && len(rows) > 0 {
			tw.AppendSeparator()
		}
		for _, row := range rows {
			r := make(table.Row, columns)
			for i := range r {
				if i < len(row) {
					r[i] = row[i]
				} else {
					r[i] = ""
				}
			}
			tw.AppendRow(r)
		}
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
