package driver

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novacgo/ppp/internal/doasfit"
	"github.com/novacgo/ppp/internal/dualbeam"
	"github.com/novacgo/ppp/internal/metdb"
	"github.com/novacgo/ppp/internal/scaneval"
)

func columnScan(serial string, start time.Time, largestColumn float64) *evaluatedScan {
	return &evaluatedScan{
		Identity: scanIdentity{Serial: serial, StartTime: start},
		Result:   &scaneval.ScanResult{LargestColumn: largestColumn, FitResults: []doasfit.Result{{}}},
	}
}

func TestBuildColumnSeriesSkipsRejectedScans(t *testing.T) {
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	good := columnScan("A", base, 100)
	rejected := columnScan("A", base.Add(time.Second), 999)
	rejected.Result.Rejected = errTest

	series := buildColumnSeries([]*evaluatedScan{good, rejected})
	require.Equal(t, []time.Time{base}, series.Times)
	require.Equal(t, []float64{100}, series.Columns)
}

func TestRunDualBeamPairsInsertsWindSpeedForCorrelatedSeries(t *testing.T) {
	windDB, plumeDB := openTestStores(t)

	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	n := 120
	shiftSamples := 5.0

	var upwindScans, downwindScans []*evaluatedScan
	for i := 0; i < n; i++ {
		tUp := float64(i)
		tDown := float64(i) - shiftSamples
		upwindScans = append(upwindScans, columnScan("UP", base.Add(time.Duration(i)*time.Second), 100+50*math.Sin(2*math.Pi*tUp/40)))
		downwindScans = append(downwindScans, columnScan("DOWN", base.Add(time.Duration(i)*time.Second), 100+50*math.Sin(2*math.Pi*tDown/40)))
	}

	require.NoError(t, plumeDB.InsertPlumeHeight(metdb.PlumeHeightRecord{
		Altitude: 1000, Source: metdb.PlumeSourceUser, IsGlobal: true,
		ValidFrom: base, ValidTo: base.Add(time.Hour),
	}))

	cfg := Config{
		Instruments: []Instrument{
			{Serial: "UP", ViewingGeom: dualbeam.ViewingGeometry{Type: dualbeam.Flat, ScanAngle: 0}, Geometry: flatGeom(0, 0, 0, 500)},
			{Serial: "DOWN", ViewingGeom: dualbeam.ViewingGeometry{Type: dualbeam.Flat, ScanAngle: 0}, Geometry: flatGeom(0, 0, 0, 500)},
		},
		DualBeamPairs: []DualBeamPairConfig{{
			Upwind: "UP", Downwind: "DOWN",
			ValidTime: time.Hour, MaxWindSpeedError: 1000,
			Settings: dualbeam.Settings{
				BinomialIterations: 4, MaxPhysicalDelay: 8 * time.Second,
				TestLength: 20, MinPlumeColumn: 10,
			},
			DeltaThetaDeg: 2.0,
		}},
		WindDB: windDB, PlumeDB: plumeDB,
	}

	scans := append(append([]*evaluatedScan{}, upwindScans...), downwindScans...)
	runDualBeamPairs(cfg, scans, NewTally())

	got, err := windDB.GetWindField(base, metdb.Location{}, true, metdb.MethodExact)
	require.NoError(t, err)
	require.Equal(t, metdb.SourceDualBeam, got.Source)
	require.Greater(t, got.Speed, 0.0)
}
