package driver

import "github.com/novacgo/ppp/internal/scaneval"

// goodSeries extracts the scan-angle and target-species column series from
// one evaluated scan, for plume-property extraction (which wants every
// point plus an exclude mask) and flux (which wants only the already-good
// points, per flux.Input's "already filtered" contract).
func goodSeries(result *scaneval.ScanResult, speciesIndex int) (angles, secondary, columns []float64, exclude []bool) {
	n := len(result.Infos)
	angles = make([]float64, n)
	secondary = make([]float64, n)
	columns = make([]float64, n)
	exclude = make([]bool, n)
	for i, info := range result.Infos {
		angles[i] = info.ScanAngle
		secondary[i] = info.SecondaryScanAngle
		bad := result.BadEvaluation[i] || result.Deleted[i]
		exclude[i] = bad
		if bad {
			continue
		}
		refs := result.FitResults[i].PerReference
		if speciesIndex < len(refs) {
			columns[i] = refs[speciesIndex].Column
		}
	}
	return angles, secondary, columns, exclude
}

// filteredSeries returns only the non-excluded points, the shape
// flux.Input and plumeprops' centre/offset consumers other than Extract
// itself expect.
func filteredSeries(angles, secondary, columns []float64, exclude []bool) (a, s, c []float64) {
	for i := range angles {
		if exclude[i] {
			continue
		}
		a = append(a, angles[i])
		s = append(s, secondary[i])
		c = append(c, columns[i])
	}
	return a, s, c
}
