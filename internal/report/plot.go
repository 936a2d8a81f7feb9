package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ColumnProfilePoint is one spectrum's (scan angle, fitted column) pair, the
// per-scan diagnostic plot's input (spec §12 supplement: "per-scan
// column-vs-angle plot").
type ColumnProfilePoint struct {
	ScanAngle float64
	Column    float64
}

// WriteColumnProfilePNG plots a scan's column density against scan angle,
// grounded on internal/lidar/monitor/gridplotter.go's
// plot.New/plotter.NewLine/Save sequence.
func WriteColumnProfilePNG(path, title string, points []ColumnProfilePoint) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Scan angle (deg)"
	p.Y.Label.Text = "Column (molec/cm^2)"

	pts := make(plotter.XYs, len(points))
	for i, pt := range points {
		pts[i] = plotter.XY{X: pt.ScanAngle, Y: pt.Column}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("report: build column profile line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line)

	return p.Save(10*vg.Inch, 4*vg.Inch, path)
}

// WriteFluxSeriesPNG plots a run's per-day mean flux as a time series,
// grounded on the same gridplotter.go save sequence (spec §12 supplement:
// "per-day flux time series plot").
func WriteFluxSeriesPNG(path, title string, rows []DayRow) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Day index"
	p.Y.Label.Text = "Mean flux (kg/s)"

	pts := make(plotter.XYs, len(rows))
	for i, row := range rows {
		pts[i] = plotter.XY{X: float64(i), Y: row.Mean}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("report: build flux series line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line)

	return p.Save(10*vg.Inch, 4*vg.Inch, path)
}
