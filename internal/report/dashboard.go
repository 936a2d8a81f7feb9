// Package report renders diagnostic artifacts from a processing run's
// flux statistics: an interactive go-echarts HTML dashboard and gonum/plot
// PNG charts, written to a report/ folder under the same output directory
// as the tab-separated logs (spec §6).
package report

import (
	"io"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// DayRow is one (instrument, day) flux summary, the dashboard's input
// shape (mirrors internal/driver.StatRow without importing the driver
// package, so report has no dependency on the pipeline that produces it).
type DayRow struct {
	Serial         string
	Day            time.Time
	Mean, Min, Max float64
	GoodScans, TotalScans int
}

// WriteDashboardHTML renders an interactive HTML dashboard summarising a
// run's flux statistics: one line series of daily mean flux per
// instrument, plus a bar chart of good-vs-total scan counts. Grounded on
// internal/lidar/monitor/echarts_handlers.go's chart-then-page-then-Render
// pattern (handleTrafficChart's bar chart, handleBackgroundGridPolar's
// chart assembly).
func WriteDashboardHTML(w io.Writer, rows []DayRow) error {
	rows = sortedRows(rows)

	page := components.NewPage()
	page.AddCharts(fluxLineChart(rows), scanCountBarChart(rows))
	return page.Render(w)
}

func sortedRows(rows []DayRow) []DayRow {
	out := make([]DayRow, len(rows))
	copy(out, rows)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Serial != out[j].Serial {
			return out[i].Serial < out[j].Serial
		}
		return out[i].Day.Before(out[j].Day)
	})
	return out
}

func fluxLineChart(rows []DayRow) *charts.Line {
	bySerial, days := groupBySerial(rows)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "450px"}),
		charts.WithTitleOpts(opts.Title{Title: "Daily mean flux", Subtitle: "kg/s"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(days)

	for _, serial := range sortedKeys(bySerial) {
		byDay := indexByDay(bySerial[serial])
		data := make([]opts.LineData, 0, len(days))
		for _, day := range days {
			if row, ok := byDay[day]; ok {
				data = append(data, opts.LineData{Value: row.Mean})
			} else {
				data = append(data, opts.LineData{Value: nil})
			}
		}
		line.AddSeries(serial, data)
	}
	return line
}

func scanCountBarChart(rows []DayRow) *charts.Bar {
	labels := make([]string, 0, len(rows))
	good := make([]opts.BarData, 0, len(rows))
	total := make([]opts.BarData, 0, len(rows))
	for _, row := range rows {
		labels = append(labels, row.Serial+" "+row.Day.Format("2006-01-02"))
		good = append(good, opts.BarData{Value: row.GoodScans})
		total = append(total, opts.BarData{Value: row.TotalScans})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "450px"}),
		charts.WithTitleOpts(opts.Title{Title: "Scan counts"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).
		AddSeries("good", good).
		AddSeries("total", total)
	return bar
}

func groupBySerial(rows []DayRow) (map[string][]DayRow, []string) {
	bySerial := make(map[string][]DayRow)
	daySeen := make(map[string]bool)
	var days []string
	for _, row := range rows {
		bySerial[row.Serial] = append(bySerial[row.Serial], row)
		d := row.Day.Format("2006-01-02")
		if !daySeen[d] {
			daySeen[d] = true
			days = append(days, d)
		}
	}
	sort.Strings(days)
	return bySerial, days
}

func indexByDay(rows []DayRow) map[string]DayRow {
	out := make(map[string]DayRow, len(rows))
	for _, row := range rows {
		out[row.Day.Format("2006-01-02")] = row
	}
	return out
}

func sortedKeys(m map[string][]DayRow) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
