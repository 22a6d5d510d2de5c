package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/kursadbilgin/extraction-orchestrator/internal/dataset"
)

func renderGroups(view dataset.View) string {
	if len(view.Groups) == 0 {
		return "No records extracted."
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"", "Payee", "Records", "Total"})

	var total float64
	for _, g := range view.Groups {
		mark := ""
		if g.Selected {
			mark = "x"
		}
		tw.AppendRow(table.Row{mark, g.Key, strconv.Itoa(g.Count), formatAmount(g.Total)})
		total += g.Total
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d groups", len(view.Groups)), strconv.Itoa(view.RecordCount), formatAmount(total)})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return tw.Render()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
