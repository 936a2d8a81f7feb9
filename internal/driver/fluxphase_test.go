package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novacgo/ppp/internal/doasfit"
	"github.com/novacgo/ppp/internal/metdb"
	"github.com/novacgo/ppp/internal/plumeprops"
	"github.com/novacgo/ppp/internal/scaneval"
)

func fluxReadyScan(serial string, start time.Time) *evaluatedScan {
	infos := make([]scaneval.SpectrumInfo, 9)
	fits := make([]doasfit.Result, 9)
	bad := make([]bool, 9)
	deleted := make([]bool, 9)
	for i := range infos {
		infos[i] = scaneval.SpectrumInfo{ScanAngle: float64(i*10 - 40)}
		fits[i] = doasfit.Result{PerReference: []doasfit.ReferenceResult{{Column: 1e18 * float64(i+1)}}}
	}
	return &evaluatedScan{
		Instrument: &Instrument{Serial: serial, Geometry: flatGeom(0, 0, 0, 500), MainSpeciesIndex: 0},
		Identity:   scanIdentity{Serial: serial, StartTime: start},
		Result: &scaneval.ScanResult{
			Mode:          scaneval.ModeFlux,
			Infos:         infos,
			FitResults:    fits,
			BadEvaluation: bad,
			Deleted:       deleted,
			PlumeProperties: &plumeprops.Result{
				Centre: 0, Completeness: 0.9, Visible: true,
			},
		},
	}
}

func TestRunFluxSkipsScansNotInFluxMode(t *testing.T) {
	windDB, plumeDB := openTestStores(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	es := fluxReadyScan("A", base)
	es.Result.Mode = scaneval.ModeWindSpeed

	cfg := Config{WindDB: windDB, PlumeDB: plumeDB}
	runFlux(cfg, []*evaluatedScan{es}, MoleculeSO2, NewTally())
	require.Nil(t, es.Result.Flux)
}

func TestRunFluxComputesWhenDatabasesHaveCurrentReadings(t *testing.T) {
	windDB, plumeDB := openTestStores(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, windDB.InsertWindField(metdb.WindField{
		Speed: 5, Direction: 0, Source: metdb.SourceUser, IsGlobal: true,
		ValidFrom: base.Add(-time.Hour), ValidTo: base.Add(time.Hour),
	}))
	require.NoError(t, plumeDB.InsertPlumeHeight(metdb.PlumeHeightRecord{
		Altitude: 1500, Source: metdb.PlumeSourceUser, IsGlobal: true,
		ValidFrom: base.Add(-time.Hour), ValidTo: base.Add(time.Hour),
	}))

	es := fluxReadyScan("A", base)
	cfg := Config{WindDB: windDB, PlumeDB: plumeDB, Discarding: DiscardingConfig{CompletenessLimitFlux: 0.5}}

	runFlux(cfg, []*evaluatedScan{es}, MoleculeSO2, NewTally())

	require.NotNil(t, es.Result.Flux)
	require.Greater(t, es.Result.Flux.Flux, 0.0)
}

func TestRunFluxSkipsWhenNoDatabaseCoverage(t *testing.T) {
	windDB, plumeDB := openTestStores(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	es := fluxReadyScan("A", base)
	cfg := Config{WindDB: windDB, PlumeDB: plumeDB}

	tally := NewTally()
	runFlux(cfg, []*evaluatedScan{es}, MoleculeSO2, tally)

	require.Nil(t, es.Result.Flux)
	rows := tally.Rows()
	require.Len(t, rows, 1)
	require.NotEmpty(t, rows[0].Reasons)
}
