package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/alanyang/nlq-bench/internal/domain/agent"
	domainrun "github.com/alanyang/nlq-bench/internal/domain/run"
)

func renderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(header)
	table.AppendBulk(rows)
	table.Render()
}

func printSummary(w io.Writer, rn domainrun.Run) {
	s := rn.Summary
	fmt.Fprintf(w, "Run %s  task=%s  model=%s  status=%s\n\n", rn.ID, rn.Kind, rn.Model, rn.Status)

	rows := [][]string{
		{"Total", strconv.Itoa(s.Total)},
		{"Passed", strconv.Itoa(s.Passed)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Errors", strconv.Itoa(s.Errors)},
		{"Skipped", strconv.Itoa(s.Skipped)},
		{"Exact match", strconv.Itoa(s.ExactMatch)},
		{"Partial match", strconv.Itoa(s.PartialMatch)},
		{"Avg similarity", fmt.Sprintf("%.3f", s.AvgSimilarity)},
		{"Avg latency (ms)", fmt.Sprintf("%.1f", s.AvgLatencyMS)},
	}
	labels := make([]string, 0, len(s.Distribution))
	for c := range s.Distribution {
		labels = append(labels, string(c))
	}
	sort.Strings(labels)
	for _, label := range labels {
		rows = append(rows, []string{"Classified " + label, strconv.Itoa(s.Distribution[agent.Classification(label)])})
	}
	renderTable(w, []string{"Metric", "Value"}, rows)
}

func printComparison(w io.Writer, cmp domainrun.Comparison) {
	rows := make([][]string, 0, len(cmp.Models))
	for _, m := range cmp.Models {
		row := []string{m.Model, string(m.Status), "-", "-", "-", "-"}
		if m.Summary != nil {
			row[2] = fmt.Sprintf("%d/%d", m.Summary.Passed, m.Summary.Total)
			row[3] = fmt.Sprintf("%.3f", m.Summary.AvgSimilarity)
			row[4] = fmt.Sprintf("%.1f", m.Summary.AvgLatencyMS)
		}
		if m.Error != "" {
			row[5] = m.Error
		}
		rows = append(rows, row)
	}
	fmt.Fprintf(w, "Task %s on %s: %d/%d models completed in %.1fs\n\n",
		cmp.Kind, cmp.Dataset, cmp.Completed(), len(cmp.Models), cmp.TotalTimeSeconds)
	renderTable(w, []string{"Model", "Status", "Passed", "Avg similarity", "Avg latency (ms)", "Error"}, rows)
}
